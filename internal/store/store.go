package store

import (
	"context"

	"brewpulse/internal/order"
)

// OrderStore is the shared order collection every client reads and writes.
//
// Subscribe delivers the full collection, first as it is at subscribe time and
// then once per change. Callbacks of one subscription run one at a time and a
// newer snapshot supersedes an undelivered older one. Delivered slices are
// shared between subscribers and must not be modified.
type OrderStore interface {
	Create(ctx context.Context, d order.Draft) (string, error)
	Update(ctx context.Context, id string, p order.Patch) error
	Remove(ctx context.Context, id string) error
	Subscribe(onSnapshot func([]order.Order), onError func(error)) (unsubscribe func())
}

// ServiceFlag is the shared switch gating new order submissions.
type ServiceFlag interface {
	ServiceOpen(ctx context.Context) (bool, error)
	SetServiceOpen(ctx context.Context, open bool) error
	SubscribeService(onChange func(bool), onError func(error)) (unsubscribe func())
}

// Store is everything a client needs from the shared backend.
type Store interface {
	OrderStore
	ServiceFlag
}

// Pinger is implemented by stores that can probe their connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}
