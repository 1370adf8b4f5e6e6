package store

import (
	"sync"
	"sync/atomic"
)

// message is one pending delivery. Messages carry the store version they were
// read at so a subscriber never goes back to an older state.
type message[T any] struct {
	version uint64
	value   T
	err     error
}

// subscriber delivers messages to one set of callbacks on its own goroutine.
// Only the latest undelivered message is kept: each snapshot is the whole
// state, so intermediate ones can be skipped.
type subscriber[T any] struct {
	onValue func(T)
	onError func(error)

	mu      sync.Mutex
	pending *message[T]
	wake    chan struct{}
	done    chan struct{}
	closed  atomic.Bool

	delivered bool
	last      uint64
}

func (s *subscriber[T]) offer(m message[T]) {
	if s.closed.Load() {
		return
	}
	s.mu.Lock()
	if s.pending == nil || m.err != nil || m.version >= s.pending.version {
		s.pending = &m
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber[T]) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		s.mu.Lock()
		m := s.pending
		s.pending = nil
		s.mu.Unlock()

		if m != nil {
			s.deliver(*m)
		}
	}
}

func (s *subscriber[T]) deliver(m message[T]) {
	if s.closed.Load() {
		return
	}
	if m.err != nil {
		if s.onError != nil {
			s.onError(m.err)
		}
		return
	}
	if s.delivered && m.version < s.last {
		return
	}
	s.delivered = true
	s.last = m.version
	s.onValue(m.value)
}

// hub fans published values out to every live subscriber.
type hub[T any] struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]*subscriber[T]
}

// subscribe registers the callbacks and returns the subscriber and its cancel
// function. After cancel returns no new callback is started.
func (h *hub[T]) subscribe(onValue func(T), onError func(error)) (*subscriber[T], func()) {
	sub := &subscriber[T]{
		onValue: onValue,
		onError: onError,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	if h.subs == nil {
		h.subs = make(map[uint64]*subscriber[T])
	}
	h.next++
	id := h.next
	h.subs[id] = sub
	h.mu.Unlock()

	go sub.run()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			sub.closed.Store(true)
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(sub.done)
		})
	}
	return sub, cancel
}

func (h *hub[T]) snapshot() []*subscriber[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := make([]*subscriber[T], 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	return subs
}

func (h *hub[T]) publish(version uint64, v T) {
	for _, s := range h.snapshot() {
		s.offer(message[T]{version: version, value: v})
	}
}

func (h *hub[T]) fail(version uint64, err error) {
	for _, s := range h.snapshot() {
		s.offer(message[T]{version: version, err: err})
	}
}

// size returns the number of live subscribers.
func (h *hub[T]) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
