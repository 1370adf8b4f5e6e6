package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"brewpulse/internal/order"
	"brewpulse/internal/store"
)

// maxEventSize bounds one event; a snapshot of the whole collection must fit.
const maxEventSize = 4 << 20

// Subscribe delivers every orders event of the client's event stream.
func (c *Client) Subscribe(onSnapshot func([]order.Order), onError func(error)) func() {
	return c.subscribe("orders", func(data []byte) error {
		var orders []order.Order
		if err := json.Unmarshal(data, &orders); err != nil {
			return err
		}
		onSnapshot(orders)
		return nil
	}, onError)
}

// SubscribeService delivers every service event of the client's event stream.
func (c *Client) SubscribeService(onChange func(bool), onError func(error)) func() {
	return c.subscribe("service", func(data []byte) error {
		var svc struct {
			Open bool `json:"open"`
		}
		if err := json.Unmarshal(data, &svc); err != nil {
			return err
		}
		onChange(svc.Open)
		return nil
	}, onError)
}

// subscribe attaches a listener to the client's shared stream, opening one if
// none is running. Each listener delivers on its own goroutine, so callbacks of
// one subscription never overlap. Nothing is delivered after cancel, and a
// stream that ends for any other reason reports exactly one error.
func (c *Client) subscribe(want string, deliver func([]byte) error, onError func(error)) func() {
	l := &listener{
		want:    want,
		deliver: deliver,
		onError: onError,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	c.feedMu.Lock()
	f := c.feed
	if f == nil || !f.join(l) {
		f = c.startFeed()
		f.join(l)
		c.feed = f
	}
	c.feedMu.Unlock()

	go l.run()
	return func() {
		l.stop()
		f.leave(l)
	}
}

// feed is one event stream shared by every subscription of a client.
type feed struct {
	cancel context.CancelFunc

	mu        sync.Mutex
	listeners map[*listener]struct{}
	last      map[string][]byte
	closing   bool
}

func (c *Client) startFeed() *feed {
	ctx, cancel := context.WithCancel(context.Background())
	f := &feed{
		cancel:    cancel,
		listeners: make(map[*listener]struct{}),
		last:      make(map[string][]byte),
	}

	go func() {
		err := c.readStream(ctx, f.dispatch)
		if err == nil {
			err = fmt.Errorf("event stream ended: %w", store.ErrUnavailable)
		}
		c.feedMu.Lock()
		if c.feed == f {
			c.feed = nil
		}
		c.feedMu.Unlock()
		f.end(err)
	}()
	return f
}

// join adds l and hands it the latest payload of its event, so a late
// subscription starts from the current state. It fails once the feed closes.
func (f *feed) join(l *listener) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closing {
		return false
	}
	f.listeners[l] = struct{}{}
	if data, ok := f.last[l.want]; ok {
		l.offer(data)
	}
	return true
}

// leave removes l and closes the stream when nobody listens any more.
func (f *feed) leave(l *listener) {
	f.mu.Lock()
	delete(f.listeners, l)
	idle := len(f.listeners) == 0 && !f.closing
	if idle {
		f.closing = true
	}
	f.mu.Unlock()
	if idle {
		f.cancel()
	}
}

func (f *feed) dispatch(name string, data []byte) error {
	if name == "error" {
		return eventError(data)
	}
	data = bytes.Clone(data)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.last[name] = data
	for l := range f.listeners {
		if l.want == name {
			l.offer(data)
		}
	}
	return nil
}

func (f *feed) end(err error) {
	f.mu.Lock()
	f.closing = true
	listeners := f.listeners
	f.listeners = make(map[*listener]struct{})
	f.mu.Unlock()

	for l := range listeners {
		l.fail(err)
	}
}

// listener keeps only the newest undelivered payload: every event carries the
// whole state, so intermediate ones can be skipped.
type listener struct {
	want    string
	deliver func([]byte) error
	onError func(error)

	mu      sync.Mutex
	pending []byte
	err     error
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
	closed  atomic.Bool
}

func (l *listener) offer(data []byte) {
	l.mu.Lock()
	l.pending = data
	l.mu.Unlock()
	l.signal()
}

func (l *listener) fail(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
	l.signal()
}

func (l *listener) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *listener) stop() {
	l.once.Do(func() {
		l.closed.Store(true)
		close(l.done)
	})
}

func (l *listener) run() {
	for {
		select {
		case <-l.done:
			return
		case <-l.wake:
		}

		l.mu.Lock()
		data, err := l.pending, l.err
		l.pending = nil
		l.mu.Unlock()

		if data != nil && !l.closed.Load() {
			if derr := l.deliver(data); derr != nil {
				err = fmt.Errorf("decode %s event: %w: %w", l.want, store.ErrUnavailable, derr)
			}
		}
		if err != nil {
			if !l.closed.Load() {
				l.onError(err)
			}
			l.stop()
			return
		}
	}
}

func eventError(data []byte) error {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return fmt.Errorf("subscription failed: %w", store.ErrUnavailable)
	}
	return fmt.Errorf("subscription failed: %w: %s", store.KindByName(body.Kind), body.Error)
}

// readStream parses text/event-stream framing and calls handle for every
// complete event until the stream ends or handle fails.
func (c *Client) readStream(ctx context.Context, handle func(name string, data []byte) error) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return fmt.Errorf("open event stream: %w: %w", store.Classify(err), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("open event stream: %w", responseError(resp))
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64<<10), maxEventSize)

	var name string
	var data bytes.Buffer
	for sc.Scan() {
		line := sc.Bytes()
		switch {
		case len(line) == 0:
			if data.Len() > 0 || name != "" {
				if name == "" {
					name = "message"
				}
				if err := handle(name, data.Bytes()); err != nil {
					return err
				}
			}
			name = ""
			data.Reset()
		case line[0] == ':':
		default:
			field, value, _ := bytes.Cut(line, []byte(":"))
			value = bytes.TrimPrefix(value, []byte(" "))
			switch string(field) {
			case "event":
				name = string(value)
			case "data":
				if data.Len() > 0 {
					data.WriteByte('\n')
				}
				data.Write(value)
			}
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return fmt.Errorf("read event stream: %w: %w", store.ErrUnavailable, err)
	}
	return nil
}
