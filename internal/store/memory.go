package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"brewpulse/internal/order"
)

// MemoryStore is the local-only variant: a single process owns the collection
// and ids are generated client-side.
type MemoryStore struct {
	now func() time.Time

	mu      sync.Mutex
	version uint64
	lastTS  int64
	orders  map[string]order.Order
	open    bool

	ordersHub  hub[[]order.Order]
	serviceHub hub[bool]
}

// NewMemoryStore creates an empty store with the service open.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:    time.Now,
		orders: make(map[string]order.Order),
		open:   true,
	}
}

func (s *MemoryStore) Create(ctx context.Context, d order.Draft) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", newWriteError("create", "", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UnixMilli()
	if ts < s.lastTS {
		ts = s.lastTS
	}
	s.lastTS = ts

	o := order.Order{
		ID:         uuid.NewString(),
		GuestName:  d.GuestName,
		CoffeeType: d.CoffeeType,
		Size:       d.Size,
		Percentage: d.Percentage,
		Timestamp:  ts,
		Status:     order.StatusPending,
	}
	if d.MilkLevel != nil {
		o.MilkLevel = order.Milk(*d.MilkLevel)
	}
	s.orders[o.ID] = o
	s.publishLocked()
	return o.ID, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, p order.Patch) error {
	if err := ctx.Err(); err != nil {
		return newWriteError("update", id, err)
	}
	if p.Status != nil && !p.Status.IsValid() {
		return &order.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", *p.Status)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return &WriteError{Op: "update", ID: id, Kind: ErrNotFound}
	}
	if p.Status == nil || o.Status == *p.Status {
		return nil
	}
	if err := order.CheckTransition(o.Status, *p.Status); err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	o.Status = *p.Status
	s.orders[id] = o
	s.publishLocked()
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return newWriteError("remove", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return nil
	}
	delete(s.orders, id)
	s.publishLocked()
	return nil
}

func (s *MemoryStore) Subscribe(onSnapshot func([]order.Order), onError func(error)) func() {
	sub, cancel := s.ordersHub.subscribe(onSnapshot, onError)

	s.mu.Lock()
	sub.offer(message[[]order.Order]{version: s.version, value: s.listLocked()})
	s.mu.Unlock()
	return cancel
}

func (s *MemoryStore) ServiceOpen(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open, nil
}

func (s *MemoryStore) SetServiceOpen(ctx context.Context, open bool) error {
	if err := ctx.Err(); err != nil {
		return newWriteError("set service", "", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.open = open
	s.version++
	s.serviceHub.publish(s.version, open)
	return nil
}

func (s *MemoryStore) SubscribeService(onChange func(bool), onError func(error)) func() {
	sub, cancel := s.serviceHub.subscribe(onChange, onError)

	s.mu.Lock()
	sub.offer(message[bool]{version: s.version, value: s.open})
	s.mu.Unlock()
	return cancel
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) publishLocked() {
	s.version++
	s.ordersHub.publish(s.version, s.listLocked())
}

func (s *MemoryStore) listLocked() []order.Order {
	out := make([]order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	return out
}
