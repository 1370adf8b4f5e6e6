// Package admin implements the barista side: the live order board, status
// changes, clearing orders, the service switch and new-order toasts.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log"

	"brewpulse/internal/order"
	"brewpulse/internal/snapshot"
	"brewpulse/internal/store"
	"brewpulse/internal/syncctl"
)

// Board is what the admin view renders.
type Board struct {
	Orders      []order.Order  `json:"orders"`
	Stats       snapshot.Stats `json:"stats"`
	ServiceOpen bool           `json:"serviceOpen"`
}

// Flow is the admin flow over a shared controller.
type Flow struct {
	ctl      *syncctl.Controller
	notifier *Notifier
	detach   func()
}

// New attaches the notifier to ctl so every snapshot is observed. A controller
// that is already live provides the baseline at once. Whenever the controller
// is not live the notifier baseline is reset.
func New(ctl *syncctl.Controller, notifier *Notifier) *Flow {
	f := &Flow{ctl: ctl, notifier: notifier}
	ctl.Exclusive(func() {
		f.detach = ctl.OnChange(f.observe)
		f.observe()
	})
	return f
}

func (f *Flow) observe() {
	if f.ctl.State() != syncctl.Live {
		f.notifier.Reset()
		return
	}
	if t, ok := f.notifier.Observe(f.ctl.Orders()); ok {
		log.Printf("admin: %s", t.Message())
	}
}

// Close stops observing the controller.
func (f *Flow) Close() {
	f.detach()
}

// Board returns the orders newest first with their counters.
func (f *Flow) Board() Board {
	orders := f.ctl.Orders()
	return Board{
		Orders:      orders,
		Stats:       snapshot.Summarize(orders),
		ServiceOpen: f.ctl.ServiceOpen(),
	}
}

// Actions returns the statuses the order can be moved to next.
func (f *Flow) Actions(id string) []order.Status {
	o, ok := f.ctl.Lookup(id)
	if !ok {
		return nil
	}
	return order.NextStatuses(o.Status)
}

// SetStatus moves an order to status. The change becomes visible through the
// next snapshot; nothing is recorded locally. An order that no longer exists
// is not an error. Orders missing from the mirror are still checked by the
// store, which never reopens a completed order.
func (f *Flow) SetStatus(ctx context.Context, id string, status order.Status) error {
	if !status.IsValid() {
		return &order.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}
	if o, ok := f.ctl.Lookup(id); ok {
		if o.Status == status {
			return nil
		}
		if err := order.CheckTransition(o.Status, status); err != nil {
			return err
		}
	}

	err := f.ctl.Store().Update(ctx, id, order.StatusPatch(status))
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("admin: order %s is already gone", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

// ServeOrder marks the order as completed.
func (f *Flow) ServeOrder(ctx context.Context, id string) error {
	return f.SetStatus(ctx, id, order.StatusCompleted)
}

// ClearOrder removes the order from the queue. Clearing an order that is
// already gone succeeds.
func (f *Flow) ClearOrder(ctx context.Context, id string) error {
	err := f.ctl.Store().Remove(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("clear order: %w", err)
	}
	return nil
}

// ToggleService switches new-order submission on or off for every guest.
func (f *Flow) ToggleService(ctx context.Context, open bool) error {
	if err := f.ctl.Store().SetServiceOpen(ctx, open); err != nil {
		return fmt.Errorf("toggle service: %w", err)
	}
	return nil
}

// Toast returns the visible new-order toast, if any.
func (f *Flow) Toast() (Toast, bool) {
	return f.notifier.Current()
}

// Banner is the persistent connection advisory, empty while healthy.
func (f *Flow) Banner() string {
	return f.ctl.Advisory()
}
