package snapshot

import "brewpulse/internal/order"

// EventKind classifies a change between two snapshots.
type EventKind string

const (
	Inserted EventKind = "inserted"
	Removed  EventKind = "removed"
	Updated  EventKind = "updated"
)

// Event is one change between two consecutive snapshots.
// For Removed events Order carries the last known state.
type Event struct {
	Kind     EventKind    `json:"kind"`
	Order    order.Order  `json:"order"`
	Previous *order.Order `json:"previous,omitempty"`
}

// Diff compares two snapshots and lists what changed.
// Inserted and Updated events follow the order of curr, Removed events the order of prev.
func Diff(prev, curr []order.Order) []Event {
	before := make(map[string]order.Order, len(prev))
	for _, o := range prev {
		before[o.ID] = o
	}

	var events []Event
	seen := make(map[string]struct{}, len(curr))
	for _, o := range curr {
		seen[o.ID] = struct{}{}
		old, ok := before[o.ID]
		switch {
		case !ok:
			events = append(events, Event{Kind: Inserted, Order: o})
		case !equal(old, o):
			p := old
			events = append(events, Event{Kind: Updated, Order: o, Previous: &p})
		}
	}
	for _, o := range prev {
		if _, ok := seen[o.ID]; !ok {
			events = append(events, Event{Kind: Removed, Order: o})
		}
	}
	return events
}

// Inserts returns only the Inserted events.
func Inserts(events []Event) []order.Order {
	var out []order.Order
	for _, e := range events {
		if e.Kind == Inserted {
			out = append(out, e.Order)
		}
	}
	return out
}

func equal(a, b order.Order) bool {
	if a.ID != b.ID || a.GuestName != b.GuestName || a.CoffeeType != b.CoffeeType ||
		a.Size != b.Size || a.Percentage != b.Percentage || a.Timestamp != b.Timestamp ||
		a.Status != b.Status {
		return false
	}
	if (a.MilkLevel == nil) != (b.MilkLevel == nil) {
		return false
	}
	return a.MilkLevel == nil || *a.MilkLevel == *b.MilkLevel
}
