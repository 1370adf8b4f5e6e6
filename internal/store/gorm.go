package store

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lucsky/cuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"brewpulse/internal/model"
	"brewpulse/internal/order"
	"brewpulse/internal/snapshot"
)

// DefaultWriteTimeout bounds a single store operation.
const DefaultWriteTimeout = 5 * time.Second

// GormStore is the hosted order store backed by a relational database.
// Every successful write re-reads the collection and pushes it to subscribers.
type GormStore struct {
	db           *gorm.DB
	writeTimeout time.Duration
	now          func() time.Time
	newID        func() string

	clockMu sync.Mutex
	lastTS  int64

	// refreshMu serialises collection reads so versions follow read order.
	refreshMu sync.Mutex
	version   uint64
	orders    hub[[]order.Order]
	service   hub[bool]
	lastSeen  []order.Order
	lastOpen  *bool
}

// Option configures a GormStore.
type Option func(*GormStore)

// WithWriteTimeout sets the deadline applied to each write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *GormStore) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// WithClock replaces the store clock used for order timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *GormStore) { s.now = now }
}

// WithIDGenerator replaces the order id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *GormStore) { s.newID = newID }
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, opts ...Option) *GormStore {
	s := &GormStore{
		db:           db,
		writeTimeout: DefaultWriteTimeout,
		now:          time.Now,
		newID:        cuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying connection for collaborators sharing the database.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// Create inserts a new PENDING order stamped with the store clock.
func (s *GormStore) Create(ctx context.Context, d order.Draft) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	row := toRow(d)
	row.ID = s.newID()
	row.Timestamp = s.stamp()
	row.Status = string(order.StatusPending)

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", WriteFailure(ctx, "create", "", err)
	}
	log.Printf("order %s created for %s (%s)", row.ID, row.GuestName, row.CoffeeType)

	s.broadcastOrders()
	return row.ID, nil
}

// Update merges the patch into an existing order. Last write wins, except
// that a COMPLETED order never moves back to an earlier status.
func (s *GormStore) Update(ctx context.Context, id string, p order.Patch) error {
	if p.Status == nil {
		return nil
	}
	if !p.Status.IsValid() {
		return &order.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", *p.Status)}
	}

	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	q := s.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", id)
	if *p.Status != order.StatusCompleted {
		q = q.Where("status <> ?", string(order.StatusCompleted))
	}
	res := q.Updates(map[string]any{"status": string(*p.Status)})
	if res.Error != nil {
		return WriteFailure(ctx, "update", id, res.Error)
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := s.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return WriteFailure(ctx, "update", id, err)
		}
		if n == 0 {
			return &WriteError{Op: "update", ID: id, Kind: ErrNotFound}
		}
		return fmt.Errorf("update %s: %w", id, order.CheckTransition(order.StatusCompleted, *p.Status))
	}

	s.broadcastOrders()
	return nil
}

// Remove deletes an order. Removing a missing order succeeds.
func (s *GormStore) Remove(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Order{})
	if res.Error != nil {
		return WriteFailure(ctx, "remove", id, res.Error)
	}
	if res.RowsAffected > 0 {
		s.broadcastOrders()
	}
	return nil
}

// Subscribe streams the order collection, newest first.
func (s *GormStore) Subscribe(onSnapshot func([]order.Order), onError func(error)) func() {
	sub, cancel := s.orders.subscribe(onSnapshot, onError)
	go func() {
		s.refreshMu.Lock()
		defer s.refreshMu.Unlock()

		orders, err := s.loadOrders()
		if err != nil {
			sub.offer(message[[]order.Order]{version: s.version, err: subscribeError("orders", err)})
			return
		}
		s.lastSeen = orders
		sub.offer(message[[]order.Order]{version: s.version, value: orders})
	}()
	return cancel
}

// ServiceOpen reads the availability flag. A store that was never toggled is open.
func (s *GormStore) ServiceOpen(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	open, err := s.loadService(ctx)
	if err != nil {
		return false, fmt.Errorf("read service flag: %w: %w", Classify(err), err)
	}
	return open, nil
}

// SetServiceOpen stores the availability flag and notifies subscribers.
func (s *GormStore) SetServiceOpen(ctx context.Context, open bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	state := model.ServiceState{ID: model.ServiceStateID, Open: open, UpdatedAt: s.now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"open", "updated_at"}),
	}).Create(&state).Error
	if err != nil {
		return WriteFailure(ctx, "set service", "", err)
	}
	log.Printf("service availability set to %t", open)

	s.refreshMu.Lock()
	s.version++
	s.lastOpen = &open
	s.service.publish(s.version, open)
	s.refreshMu.Unlock()
	return nil
}

// SubscribeService streams the availability flag.
func (s *GormStore) SubscribeService(onChange func(bool), onError func(error)) func() {
	sub, cancel := s.service.subscribe(onChange, onError)
	go func() {
		s.refreshMu.Lock()
		defer s.refreshMu.Unlock()

		ctx, done := context.WithTimeout(context.Background(), s.writeTimeout)
		defer done()
		open, err := s.loadService(ctx)
		if err != nil {
			sub.offer(message[bool]{version: s.version, err: subscribeError("service flag", err)})
			return
		}
		s.lastOpen = &open
		sub.offer(message[bool]{version: s.version, value: open})
	}()
	return cancel
}

// Ping checks that the database answers.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("ping: %w: %w", ErrUnavailable, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w: %w", Classify(err), err)
	}
	return nil
}

func (s *GormStore) broadcastOrders() {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.version++
	orders, err := s.loadOrders()
	if err != nil {
		log.Printf("Error reloading orders for subscribers: %v", err)
		s.orders.fail(s.version, subscribeError("orders", err))
		return
	}
	s.lastSeen = orders
	s.orders.publish(s.version, orders)
}

// Refresh re-reads the collection and the service flag and notifies
// subscribers of whatever differs from what they were last sent. It picks up
// writes made by other processes sharing the database.
func (s *GormStore) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	orders, err := s.loadOrders()
	if err != nil {
		return fmt.Errorf("refresh orders: %w: %w", Classify(err), err)
	}
	open, err := s.loadService(ctx)
	if err != nil {
		return fmt.Errorf("refresh service flag: %w: %w", Classify(err), err)
	}

	if s.lastSeen == nil || len(snapshot.Diff(s.lastSeen, orders)) > 0 {
		s.version++
		s.lastSeen = orders
		s.orders.publish(s.version, orders)
	}
	if s.lastOpen == nil || *s.lastOpen != open {
		s.version++
		s.lastOpen = &open
		s.service.publish(s.version, open)
	}
	return nil
}

func (s *GormStore) loadOrders() ([]order.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	var rows []model.Order
	if err := s.db.WithContext(ctx).Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true}).Find(&rows).Error; err != nil {
		return nil, err
	}
	orders := make([]order.Order, len(rows))
	for i, r := range rows {
		orders[i] = fromRow(r)
	}
	return orders, nil
}

func (s *GormStore) loadService(ctx context.Context) (bool, error) {
	var state model.ServiceState
	err := s.db.WithContext(ctx).Limit(1).Find(&state, model.ServiceStateID).Error
	if err != nil {
		return false, err
	}
	if state.ID == 0 {
		return true, nil
	}
	return state.Open, nil
}

// stamp returns the creation timestamp, never earlier than the previous one.
func (s *GormStore) stamp() int64 {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()

	ts := s.now().UnixMilli()
	if ts < s.lastTS {
		ts = s.lastTS
	}
	s.lastTS = ts
	return ts
}

func toRow(d order.Draft) model.Order {
	row := model.Order{
		GuestName:  d.GuestName,
		CoffeeType: d.CoffeeType,
		Size:       string(d.Size),
		Percentage: d.Percentage,
	}
	if d.MilkLevel != nil {
		level := string(*d.MilkLevel)
		row.MilkLevel = &level
	}
	return row
}

func fromRow(r model.Order) order.Order {
	o := order.Order{
		ID:         r.ID,
		GuestName:  r.GuestName,
		CoffeeType: r.CoffeeType,
		Size:       order.Size(r.Size),
		Percentage: r.Percentage,
		Timestamp:  r.Timestamp,
		Status:     order.Status(r.Status),
	}
	if r.MilkLevel != nil {
		o.MilkLevel = order.Milk(order.MilkLevel(*r.MilkLevel))
	}
	return o
}
