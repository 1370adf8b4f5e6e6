package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brewpulse/config"
	"brewpulse/internal/api"
	"brewpulse/internal/auth"
	"brewpulse/internal/order"
	"brewpulse/internal/store"
)

func newServer(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := store.NewMemoryStore()
	h := api.NewHandler(api.Deps{
		Store: s,
		Auth:  auth.NewService(config.AuthConfig{AdminPassword: "barista", SigningKey: "k", SessionTTL: time.Hour}),
	})
	srv := httptest.NewServer(api.NewRouter(h, config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 60}))
	t.Cleanup(func() {
		srv.CloseClientConnections()
		srv.Close()
	})
	return srv, s
}

func signedIn(t *testing.T, srv *httptest.Server, admin bool) *Client {
	t.Helper()
	c := New(srv.URL)
	var err error
	if admin {
		_, err = c.SignInAdmin(context.Background(), "barista")
	} else {
		_, err = c.SignInAnon(context.Background())
	}
	require.NoError(t, err)
	require.NotEmpty(t, c.Token())
	return c
}

func TestClient_Orders(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()
	guest := signedIn(t, srv, false)
	barista := signedIn(t, srv, true)

	id, err := guest.Create(ctx, order.Draft{GuestName: "Ada", CoffeeType: "Flat White", Percentage: 40})
	require.NoError(t, err)

	snapshots := make(chan []order.Order, 8)
	cancel := guest.Subscribe(func(o []order.Order) { snapshots <- o }, func(err error) { t.Errorf("unexpected error: %v", err) })
	defer cancel()

	select {
	case got := <-snapshots:
		require.Len(t, got, 1)
		assert.Equal(t, id, got[0].ID)
		assert.Equal(t, order.MilkStandard, *got[0].MilkLevel)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot")
	}

	err = guest.Update(ctx, id, order.StatusPatch(order.StatusPreparing))
	var we *store.WriteError
	require.ErrorAs(t, err, &we)
	assert.ErrorIs(t, err, store.ErrPermissionDenied)
	assert.Equal(t, id, we.ID)

	require.NoError(t, barista.Update(ctx, id, order.StatusPatch(order.StatusPreparing)))
	select {
	case got := <-snapshots:
		require.Len(t, got, 1)
		assert.Equal(t, order.StatusPreparing, got[0].Status)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after update")
	}

	assert.ErrorIs(t, barista.Update(ctx, "missing", order.StatusPatch(order.StatusCompleted)), store.ErrNotFound)

	require.NoError(t, barista.Update(ctx, id, order.StatusPatch(order.StatusCompleted)))
	err = barista.Update(ctx, id, order.StatusPatch(order.StatusPending))
	assert.ErrorIs(t, err, order.ErrInvalidTransition)
	assert.False(t, store.IsRetryable(err))

	require.NoError(t, barista.Remove(ctx, id))
	require.NoError(t, barista.Remove(ctx, id))
}

func TestClient_Validation(t *testing.T) {
	srv, s := newServer(t)
	guest := signedIn(t, srv, false)

	_, err := guest.Create(context.Background(), order.Draft{GuestName: "Ada", CoffeeType: "Iced Latte Macchiato"})
	var ve *order.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "coffeeType", ve.Field)
	assert.ErrorIs(t, err, order.ErrValidation)

	seen := make(chan int, 1)
	cancel := s.Subscribe(func(o []order.Order) { seen <- len(o) }, func(error) {})
	defer cancel()
	assert.Equal(t, 0, <-seen)
}

func TestClient_ServiceFlag(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()
	guest := signedIn(t, srv, false)
	barista := signedIn(t, srv, true)

	changes := make(chan bool, 4)
	cancel := guest.SubscribeService(func(open bool) { changes <- open }, func(err error) { t.Errorf("unexpected error: %v", err) })
	defer cancel()
	assert.True(t, <-changes)

	assert.ErrorIs(t, guest.SetServiceOpen(ctx, false), store.ErrPermissionDenied)
	require.NoError(t, barista.SetServiceOpen(ctx, false))

	select {
	case open := <-changes:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("no service change")
	}
	open, err := guest.ServiceOpen(ctx)
	require.NoError(t, err)
	assert.False(t, open)
}

func TestClient_MenuPingSuggest(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()
	c := signedIn(t, srv, false)

	menu, err := c.Menu(ctx)
	require.NoError(t, err)
	assert.Equal(t, order.DefaultMenu(), menu)

	assert.NoError(t, c.Ping(ctx))

	text, err := c.Suggest(ctx, "tired")
	require.NoError(t, err)
	assert.NotEmpty(t, text)

	require.NoError(t, c.SignOut(ctx))
	assert.Empty(t, c.Token())
}

func TestClient_SignInAdminWrongPassword(t *testing.T) {
	srv, _ := newServer(t)
	c := New(srv.URL)
	_, err := c.SignInAdmin(context.Background(), "latte")
	assert.ErrorIs(t, err, store.ErrPermissionDenied)
	assert.Empty(t, c.Token())
}

func TestClient_StreamErrors(t *testing.T) {
	srv, _ := newServer(t)

	t.Run("unauthenticated", func(t *testing.T) {
		errs := make(chan error, 1)
		cancel := New(srv.URL).Subscribe(func([]order.Order) { t.Error("unexpected snapshot") }, func(err error) { errs <- err })
		defer cancel()
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, store.ErrPermissionDenied)
		case <-time.After(2 * time.Second):
			t.Fatal("no error")
		}
	})

	t.Run("connection lost", func(t *testing.T) {
		c := signedIn(t, srv, false)
		errs := make(chan error, 1)
		first := make(chan struct{}, 1)
		cancel := c.Subscribe(func([]order.Order) { first <- struct{}{} }, func(err error) { errs <- err })
		defer cancel()
		<-first

		srv.CloseClientConnections()
		select {
		case err := <-errs:
			assert.True(t, store.IsRetryable(err), err)
		case <-time.After(2 * time.Second):
			t.Fatal("no error after disconnect")
		}
	})

	t.Run("silent after cancel", func(t *testing.T) {
		c := signedIn(t, srv, false)
		calls := make(chan struct{}, 4)
		cancel := c.Subscribe(func([]order.Order) { calls <- struct{}{} }, func(error) { calls <- struct{}{} })
		<-calls
		cancel()
		select {
		case <-calls:
			t.Fatal("callback after cancel")
		case <-time.After(100 * time.Millisecond):
		}
	})
}

// countingTransport counts event stream connections.
type countingTransport struct {
	streams atomic.Int32
}

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Path == "/api/stream" {
		c.streams.Add(1)
	}
	return http.DefaultTransport.RoundTrip(req)
}

func TestClient_SubscriptionsShareOneStream(t *testing.T) {
	srv, s := newServer(t)
	ctx := context.Background()
	require.NoError(t, s.SetServiceOpen(ctx, false))

	transport := &countingTransport{}
	c := New(srv.URL, WithStreamClient(&http.Client{Transport: transport}))
	_, err := c.SignInAnon(ctx)
	require.NoError(t, err)

	snapshots := make(chan []order.Order, 8)
	cancelOrders := c.Subscribe(func(o []order.Order) { snapshots <- o }, func(err error) { t.Errorf("unexpected error: %v", err) })
	select {
	case <-snapshots:
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot")
	}

	// A subscription made after the stream is up starts from the latest flag.
	flags := make(chan bool, 8)
	cancelService := c.SubscribeService(func(open bool) { flags <- open }, func(err error) { t.Errorf("unexpected error: %v", err) })
	select {
	case open := <-flags:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("no service flag")
	}
	assert.Equal(t, int32(1), transport.streams.Load())

	require.NoError(t, s.SetServiceOpen(ctx, true))
	select {
	case open := <-flags:
		assert.True(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("no service change")
	}

	cancelOrders()
	cancelService()

	cancel := c.Subscribe(func(o []order.Order) { snapshots <- o }, func(error) {})
	defer cancel()
	require.Eventually(t, func() bool { return transport.streams.Load() == 2 }, 2*time.Second, 10*time.Millisecond,
		"a stream is reopened once every subscription has gone")
}

func TestResponseKinds(t *testing.T) {
	assert.True(t, errors.Is(kindOf(401, ""), store.ErrPermissionDenied))
	assert.True(t, errors.Is(kindOf(404, ""), store.ErrNotFound))
	assert.True(t, errors.Is(kindOf(504, ""), store.ErrTimeout))
	assert.True(t, errors.Is(kindOf(500, ""), store.ErrUnavailable))
	assert.True(t, errors.Is(kindOf(500, "timeout"), store.ErrTimeout))
}
