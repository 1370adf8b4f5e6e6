// Package guest implements the guest side: placing orders and following the
// ones this device created.
package guest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"

	"brewpulse/internal/order"
	"brewpulse/internal/profile"
	"brewpulse/internal/snapshot"
	"brewpulse/internal/suggest"
	"brewpulse/internal/syncctl"
)

// ErrServiceClosed rejects a submission while the service is switched off.
var ErrServiceClosed = errors.New("the coffee service is closed; new orders are not accepted")

// Mode is what the guest view is showing.
type Mode int

const (
	Ordering Mode = iota
	Tracking
)

// NewForm returns an order form with the defaults preselected.
func NewForm(guestName string) order.Draft {
	return order.Draft{
		GuestName:  guestName,
		Size:       order.SizeMedium,
		Percentage: order.DefaultPercentage,
	}
}

// Flow is the guest order flow over a shared controller.
type Flow struct {
	ctl       *syncctl.Controller
	menu      order.Menu
	profiles  profile.Store
	suggester suggest.Suggester

	mu   sync.Mutex
	prof profile.Profile
	mode Mode
}

// New restores the saved profile and returns a flow. A device that already
// tracks orders starts in tracking mode.
func New(ctl *syncctl.Controller, menu order.Menu, profiles profile.Store, suggester suggest.Suggester) (*Flow, error) {
	p, err := profiles.Load()
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	f := &Flow{
		ctl:       ctl,
		menu:      menu,
		profiles:  profiles,
		suggester: suggester,
		prof:      p,
	}
	if len(p.TrackedOrderIDs) > 0 {
		f.mode = Tracking
	}
	return f, nil
}

// Menu returns the coffees that can be ordered.
func (f *Flow) Menu() order.Menu {
	return f.menu.Orderable()
}

// ServiceOpen reports whether new orders are accepted.
func (f *Flow) ServiceOpen() bool {
	return f.ctl.ServiceOpen()
}

// SubmitOrder validates the form and creates the order. Validation problems
// and a closed service are reported without contacting the store. The new id
// is only tracked once the store has accepted the order.
func (f *Flow) SubmitOrder(ctx context.Context, form order.Draft) (string, error) {
	d, err := order.Normalize(f.menu, form)
	if err != nil {
		return "", err
	}
	if !f.ctl.ServiceOpen() {
		return "", ErrServiceClosed
	}

	id, err := f.ctl.Store().Create(ctx, d)
	if err != nil {
		return "", fmt.Errorf("submit order: %w", err)
	}

	f.mu.Lock()
	if f.prof.Role == profile.RoleNone {
		f.prof.Role = profile.RoleGuest
	}
	f.prof.GuestName = d.GuestName
	f.prof.Track(id)
	f.mode = Tracking
	f.saveLocked()
	f.mu.Unlock()

	log.Printf("guest: order %s placed for %s", id, d.GuestName)
	return id, nil
}

// StartNewOrder switches back to the order form.
func (f *Flow) StartNewOrder() error {
	if !f.ctl.ServiceOpen() {
		return ErrServiceClosed
	}
	f.mu.Lock()
	f.mode = Ordering
	f.mu.Unlock()
	return nil
}

// Mode returns the current view mode.
func (f *Flow) Mode() Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

// GuestName is the last name this device ordered under.
func (f *Flow) GuestName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prof.GuestName
}

// TrackedIDs returns the ids this device created.
func (f *Flow) TrackedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.prof.TrackedOrderIDs)
}

// Tracked returns the live state of this device's orders, newest first.
func (f *Flow) Tracked() []order.Order {
	return snapshot.FilterIDs(f.ctl.Orders(), f.TrackedIDs())
}

// ForgetCompleted drops tracked ids whose order is completed or already
// cleared. It does nothing until the mirror is live and returns how many ids
// were dropped.
func (f *Flow) ForgetCompleted() int {
	if f.ctl.State() != syncctl.Live {
		return 0
	}
	active := make(map[string]bool)
	for _, o := range f.ctl.Orders() {
		if o.IsActive() {
			active[o.ID] = true
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	before := len(f.prof.TrackedOrderIDs)
	f.prof.TrackedOrderIDs = slices.DeleteFunc(f.prof.TrackedOrderIDs, func(id string) bool {
		return !active[id]
	})
	dropped := before - len(f.prof.TrackedOrderIDs)
	if dropped > 0 {
		f.saveLocked()
	}
	if len(f.prof.TrackedOrderIDs) == 0 {
		f.mode = Ordering
	}
	return dropped
}

// Suggest returns a drink recommendation for the mood, or the fixed fallback.
func (f *Flow) Suggest(ctx context.Context, mood string) string {
	return suggest.OrFallback(ctx, f.suggester, mood)
}

func (f *Flow) saveLocked() {
	if err := f.profiles.Save(f.prof); err != nil {
		log.Printf("guest: failed to save profile: %v", err)
	}
}
