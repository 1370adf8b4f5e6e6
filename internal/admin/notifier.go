package admin

import (
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"brewpulse/internal/order"
	"brewpulse/internal/snapshot"
)

// DefaultToastTTL is how long a new-order toast stays visible.
const DefaultToastTTL = 6 * time.Second

const toastKey = "toast"

// Toast announces the newest order after the collection grew.
type Toast struct {
	Order  order.Order `json:"order"`
	Others int         `json:"others"` // other orders inserted in the same snapshot
}

// Message is the text shown to the barista.
func (t Toast) Message() string {
	msg := fmt.Sprintf("New order: %s would like %s", t.Order.GuestName, t.Order.CoffeeType)
	if t.Others > 0 {
		msg += fmt.Sprintf(" (+%d more)", t.Others)
	}
	return msg
}

// Notifier watches consecutive snapshots and raises one toast whenever the
// collection grows. The first snapshot it sees, and the first one after
// Reset, only sets the baseline.
type Notifier struct {
	ttl     time.Duration
	toasts  *cache.Cache
	onToast func(Toast)

	mu     sync.Mutex
	prev   []order.Order
	primed bool
}

// NewNotifier creates a notifier whose toasts expire after ttl.
// onToast, when non-nil, is called for every toast raised.
func NewNotifier(ttl time.Duration, onToast func(Toast)) *Notifier {
	if ttl <= 0 {
		ttl = DefaultToastTTL
	}
	return &Notifier{
		ttl:     ttl,
		toasts:  cache.New(ttl, 2*ttl),
		onToast: onToast,
	}
}

// Observe compares curr with the previous snapshot. When the collection grew
// it announces the order with the largest timestamp and counts the other
// insertions; several simultaneous orders still produce a single toast.
func (n *Notifier) Observe(curr []order.Order) (Toast, bool) {
	n.mu.Lock()
	if !n.primed {
		n.prev = curr
		n.primed = true
		n.mu.Unlock()
		return Toast{}, false
	}
	prev := n.prev
	n.prev = curr
	n.mu.Unlock()

	if len(curr) <= len(prev) {
		return Toast{}, false
	}
	newest, ok := snapshot.Newest(curr)
	if !ok {
		return Toast{}, false
	}

	others := 0
	for _, o := range snapshot.Inserts(snapshot.Diff(prev, curr)) {
		if o.ID != newest.ID {
			others++
		}
	}

	t := Toast{Order: newest, Others: others}
	n.toasts.Set(toastKey, t, n.ttl)
	if n.onToast != nil {
		n.onToast(t)
	}
	return t, true
}

// Reset forgets the baseline so the next snapshot does not raise a toast.
func (n *Notifier) Reset() {
	n.mu.Lock()
	n.prev = nil
	n.primed = false
	n.mu.Unlock()
}

// Current returns the toast that is still visible, if any.
func (n *Notifier) Current() (Toast, bool) {
	v, ok := n.toasts.Get(toastKey)
	if !ok {
		return Toast{}, false
	}
	return v.(Toast), true
}

// Dismiss hides the visible toast.
func (n *Notifier) Dismiss() {
	n.toasts.Delete(toastKey)
}
