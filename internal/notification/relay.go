package notification

import (
	"log"
	"time"

	"brewpulse/internal/admin"
	"brewpulse/internal/order"
	"brewpulse/internal/store"
)

// Relay watches the hosted store and turns collection growth into push
// announcements, using the same rules as the admin board toast.
type Relay struct {
	store    store.OrderStore
	pool     *WorkerPool
	notifier *admin.Notifier
}

// NewRelay creates a relay feeding pool.
func NewRelay(s store.OrderStore, pool *WorkerPool) *Relay {
	r := &Relay{store: s, pool: pool}
	r.notifier = admin.NewNotifier(time.Second, r.announce)
	return r
}

// Start subscribes to the store. The returned function stops the relay.
func (r *Relay) Start() func() {
	return r.store.Subscribe(
		func(orders []order.Order) { r.notifier.Observe(orders) },
		func(err error) {
			log.Printf("notification relay: subscription error: %v", err)
			r.notifier.Reset()
		},
	)
}

func (r *Relay) announce(t admin.Toast) {
	r.pool.Dispatch(Announcement{
		OrderID:    t.Order.ID,
		GuestName:  t.Order.GuestName,
		CoffeeType: t.Order.CoffeeType,
		Others:     t.Others,
	})
}
