package snapshot

import (
	"sort"

	"brewpulse/internal/order"
)

// SortNewestFirst returns a copy of orders sorted by timestamp, newest first.
// Ties are broken by id so the order is stable across renders.
func SortNewestFirst(orders []order.Order) []order.Order {
	out := make([]order.Order, len(orders))
	copy(out, orders)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Newest returns the order with the largest timestamp.
func Newest(orders []order.Order) (order.Order, bool) {
	if len(orders) == 0 {
		return order.Order{}, false
	}
	newest := orders[0]
	for _, o := range orders[1:] {
		if o.Timestamp > newest.Timestamp || (o.Timestamp == newest.Timestamp && o.ID > newest.ID) {
			newest = o
		}
	}
	return newest, true
}

// FilterIDs keeps the orders whose id is in ids, newest first.
func FilterIDs(orders []order.Order, ids []string) []order.Order {
	if len(ids) == 0 {
		return nil
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []order.Order
	for _, o := range orders {
		if _, ok := want[o.ID]; ok {
			out = append(out, o)
		}
	}
	return SortNewestFirst(out)
}

// Stats are the derived counters shown on the admin board.
type Stats struct {
	Total           int     `json:"total"`
	Active          int     `json:"active"`
	Completed       int     `json:"completed"`
	CompletionRatio float64 `json:"completionRatio"`
}

// Summarize computes the board counters. The ratio is 0 for an empty collection.
func Summarize(orders []order.Order) Stats {
	s := Stats{Total: len(orders)}
	for _, o := range orders {
		if o.Status == order.StatusCompleted {
			s.Completed++
		} else {
			s.Active++
		}
	}
	if s.Total > 0 {
		s.CompletionRatio = float64(s.Completed) / float64(s.Total)
	}
	return s
}
