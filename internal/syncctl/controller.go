// Package syncctl keeps a client-side mirror of the shared order collection
// and the service-availability flag in step with an order store.
package syncctl

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"brewpulse/internal/order"
	"brewpulse/internal/snapshot"
	"brewpulse/internal/store"
)

// State is the connection state of the controller.
type State int

const (
	Unsubscribed State = iota
	Loading
	Live
	Errored
)

func (s State) String() string {
	switch s {
	case Unsubscribed:
		return "UNSUBSCRIBED"
	case Loading:
		return "LOADING"
	case Live:
		return "LIVE"
	case Errored:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Advisory messages shown while the controller is in the ERROR state.
const (
	AdvisoryPermission  = "Access to the order queue was denied. Sign in again or ask the barista to check the store access rules."
	AdvisoryUnavailable = "The order queue cannot be reached right now. Reconnecting automatically; you can also retry."
	AdvisoryUnknown     = "The order queue stopped updating. Retry to reconnect."
)

// Advisory maps a subscription error to the stable message shown to users.
func Advisory(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, store.ErrPermissionDenied):
		return AdvisoryPermission
	case store.IsRetryable(err):
		return AdvisoryUnavailable
	default:
		return AdvisoryUnknown
	}
}

const (
	defaultBaseDelay = 500 * time.Millisecond
	defaultMaxDelay  = 30 * time.Second
	defaultProbe     = 3 * time.Second
)

// Option configures a Controller.
type Option func(*Controller)

// WithBackoff replaces the reconnect schedule. The factory is called once per
// outage so every outage starts from the base delay.
func WithBackoff(newBackoff func() retry.Backoff) Option {
	return func(c *Controller) { c.newBackoff = newBackoff }
}

// WithProbeTimeout bounds each connectivity probe made before a reconnect.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Controller) { c.probeTimeout = d }
}

// WithLogger sets the logger used for connection state changes.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller owns the mirror of one store. It subscribes once, replaces the
// mirror wholesale on every snapshot and reconnects after subscription errors.
// It is LIVE only once both the orders snapshot and the service flag of the
// current subscription have arrived; until then the service reads as closed.
//
// Listeners registered with OnChange run on store delivery goroutines, one at
// a time. They may read the controller but must not call Start, Stop or Retry.
type Controller struct {
	store        store.Store
	newBackoff   func() retry.Backoff
	probeTimeout time.Duration
	logger       *log.Logger

	// notifyMu serialises mirror replacement with listener calls so Stop
	// cannot interleave with a delivery in flight.
	notifyMu sync.Mutex

	mu            sync.Mutex
	gen           uint64
	state         State
	orders        []order.Order
	open          bool
	haveOrders    bool
	haveService   bool
	err           error
	cancelOrders  func()
	cancelService func()
	backoff       retry.Backoff
	timer         *time.Timer
	listeners     map[int]func()
	nextListener  int
}

// New creates an UNSUBSCRIBED controller for s.
func New(s store.Store, opts ...Option) *Controller {
	c := &Controller{
		store:        s,
		probeTimeout: defaultProbe,
		logger:       log.Default(),
		listeners:    make(map[int]func()),
		newBackoff: func() retry.Backoff {
			b := retry.NewExponential(defaultBaseDelay)
			b = retry.WithJitterPercent(20, b)
			return retry.WithCappedDuration(defaultMaxDelay, b)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start subscribes to the store. It is a no-op unless the controller is
// UNSUBSCRIBED.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.state != Unsubscribed {
		c.mu.Unlock()
		return
	}
	gen := c.beginLocked()
	c.mu.Unlock()

	c.subscribe(gen)
	c.notify()
}

// Stop unsubscribes, clears the mirror and returns to UNSUBSCRIBED. No listener
// runs for the old subscription after Stop returns.
func (c *Controller) Stop() {
	c.notifyMu.Lock()
	c.mu.Lock()
	c.gen++
	c.teardownLocked()
	c.state = Unsubscribed
	c.orders = nil
	c.open = false
	c.haveOrders = false
	c.haveService = false
	c.err = nil
	listeners := c.listenersLocked()
	c.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
	c.notifyMu.Unlock()
}

// Retry re-attempts the subscription immediately. It does nothing while the
// controller is UNSUBSCRIBED.
func (c *Controller) Retry() {
	c.mu.Lock()
	if c.state == Unsubscribed {
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	c.backoff = nil
	gen := c.beginLocked()
	c.mu.Unlock()

	c.logger.Printf("syncctl: manual retry")
	c.subscribe(gen)
	c.notify()
}

// State returns the current connection state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the subscription error that put the controller in ERROR.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Advisory returns the message for the current error, or "" when healthy.
func (c *Controller) Advisory() string {
	return Advisory(c.Err())
}

// Orders returns the mirror sorted newest first.
func (c *Controller) Orders() []order.Order {
	c.mu.Lock()
	orders := c.orders
	c.mu.Unlock()
	return snapshot.SortNewestFirst(orders)
}

// Lookup returns the mirrored order with the given id.
func (c *Controller) Lookup(id string) (order.Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range c.orders {
		if o.ID == id {
			return o, true
		}
	}
	return order.Order{}, false
}

// ServiceOpen returns the mirrored service-availability flag. It is false
// until the flag of the current subscription has been delivered.
func (c *Controller) ServiceOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.haveService && c.open
}

// Store returns the store the controller mirrors.
func (c *Controller) Store() store.Store {
	return c.store
}

// Exclusive runs fn serialised with listener calls, so fn sees no mirror
// change while it runs. Like a listener, fn must not call Start, Stop or Retry.
func (c *Controller) Exclusive(fn func()) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	fn()
}

// OnChange registers fn to run after every change to the mirror or state.
// The returned function removes it.
func (c *Controller) OnChange(fn func()) func() {
	c.mu.Lock()
	c.nextListener++
	id := c.nextListener
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Controller) beginLocked() uint64 {
	c.gen++
	c.state = Loading
	c.haveOrders = false
	c.haveService = false
	return c.gen
}

func (c *Controller) subscribe(gen uint64) {
	cancelOrders := c.store.Subscribe(
		func(orders []order.Order) { c.onSnapshot(gen, orders) },
		func(err error) { c.onError(gen, err) },
	)
	cancelService := c.store.SubscribeService(
		func(open bool) { c.onService(gen, open) },
		func(err error) { c.onError(gen, err) },
	)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		cancelOrders()
		cancelService()
		return
	}
	c.cancelOrders = cancelOrders
	c.cancelService = cancelService
	c.mu.Unlock()
}

func (c *Controller) onSnapshot(gen uint64, orders []order.Order) {
	c.apply(gen, func() {
		c.orders = orders
		c.haveOrders = true
		c.goLiveLocked()
	})
}

func (c *Controller) onService(gen uint64, open bool) {
	c.apply(gen, func() {
		c.open = open
		c.haveService = true
		c.goLiveLocked()
	})
}

func (c *Controller) goLiveLocked() {
	if c.state == Live || !c.haveOrders || !c.haveService {
		return
	}
	c.err = nil
	c.backoff = nil
	c.state = Live
	c.logger.Printf("syncctl: live with %d orders", len(c.orders))
}

func (c *Controller) onError(gen uint64, err error) {
	c.apply(gen, func() {
		c.logger.Printf("syncctl: subscription error: %v", err)
		c.teardownLocked()
		c.gen++
		c.state = Errored
		c.haveOrders = false
		c.haveService = false
		c.err = err
		c.scheduleLocked()
	})
}

// apply runs update under the lock if gen is still current, then notifies.
func (c *Controller) apply(gen uint64, update func()) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	update()
	listeners := c.listenersLocked()
	c.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

func (c *Controller) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	listeners := c.listenersLocked()
	c.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

func (c *Controller) listenersLocked() []func() {
	out := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		out = append(out, fn)
	}
	return out
}

func (c *Controller) teardownLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancelOrders != nil {
		c.cancelOrders()
		c.cancelOrders = nil
	}
	if c.cancelService != nil {
		c.cancelService()
		c.cancelService = nil
	}
}

// scheduleLocked arms the next automatic reconnect. When the backoff is
// exhausted the controller stays in ERROR until Retry is called.
func (c *Controller) scheduleLocked() {
	if c.backoff == nil {
		c.backoff = c.newBackoff()
	}
	delay, stop := c.backoff.Next()
	if stop {
		c.logger.Printf("syncctl: giving up automatic reconnects")
		return
	}
	gen := c.gen
	c.timer = time.AfterFunc(delay, func() { c.reconnect(gen) })
}

// reconnect probes connectivity first and only resubscribes once the store
// answers.
func (c *Controller) reconnect(gen uint64) {
	if p, ok := c.store.(store.Pinger); ok {
		ctx, cancel := context.WithTimeout(context.Background(), c.probeTimeout)
		err := p.Ping(ctx)
		cancel()
		if err != nil {
			c.mu.Lock()
			if c.gen == gen && c.state == Errored {
				c.scheduleLocked()
			}
			c.mu.Unlock()
			return
		}
	}

	c.mu.Lock()
	if c.gen != gen || c.state != Errored {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	next := c.beginLocked()
	c.mu.Unlock()

	c.logger.Printf("syncctl: reconnecting")
	c.subscribe(next)
	c.notify()
}
