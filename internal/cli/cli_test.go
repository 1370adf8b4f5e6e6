package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brewpulse/config"
	"brewpulse/internal/guest"
	"brewpulse/internal/order"
	"brewpulse/internal/profile"
	"brewpulse/internal/suggest"
)

type harness struct {
	app      *App
	profiles *profile.MemoryStore
	backend  *localBackend
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	profiles := &profile.MemoryStore{}
	backend, err := newLocalBackend(filepath.Join(t.TempDir(), "local.db"), config.AuthConfig{AdminPassword: "barista", SigningKey: "k"}, config.SuggestionConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	app := NewApp(viper.New(), WithProfileStore(profiles), WithBackend(backend))
	return &harness{app: app, profiles: profiles, backend: backend}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	h.app.out = &out
	root := NewRootCommand(h.app)
	root.SetArgs(append(args, "--timeout", "2s"))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.run(t, args...)
	require.NoError(t, err, "brewpulse %v", args)
	return out
}

func (h *harness) profile(t *testing.T) profile.Profile {
	t.Helper()
	p, err := h.profiles.Load()
	require.NoError(t, err)
	return p
}

func TestMenu(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun(t, "menu")
	assert.Contains(t, out, "Espresso")
	assert.Contains(t, out, "Iced Latte Macchiato (coming soon)")
}

func TestGuestOrderAndTrack(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "order", "--coffee", "espresso")
	assert.ErrorContains(t, err, "sign in first")

	_, err = h.run(t, "login", "guest")
	assert.Error(t, err)

	assert.Contains(t, h.mustRun(t, "login", "guest", "--name", "Ada"), "Signed in as Ada.")
	assert.Equal(t, profile.RoleGuest, h.profile(t).Role)
	assert.NotEmpty(t, h.profile(t).Session)

	out := h.mustRun(t, "order", "--coffee", "latte-macchiato", "--strength", "60%")
	assert.Contains(t, out, "placed")
	p := h.profile(t)
	require.Len(t, p.TrackedOrderIDs, 1)
	assert.Equal(t, "Ada", p.GuestName)

	out = h.mustRun(t, "track")
	assert.Contains(t, out, p.TrackedOrderIDs[0])
	assert.Contains(t, out, "Latte Macchiato")
	assert.Contains(t, out, "Standard")
	assert.Contains(t, out, "60%")
	assert.Contains(t, out, "PENDING")

	_, err = h.run(t, "order", "--coffee", "espresso", "--milk", "extra")
	var ve *order.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "milkLevel", ve.Field)
	assert.Len(t, h.profile(t).TrackedOrderIDs, 1)

	_, err = h.run(t, "queue")
	assert.ErrorContains(t, err, "sign in first")
}

func TestBaristaWorkflow(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "login", "guest", "--name", "Ada")
	h.mustRun(t, "order", "--coffee", "Flat White", "--size", "l")
	id := h.profile(t).TrackedOrderIDs[0]

	_, err := h.run(t, "login", "admin", "--password", "espresso")
	assert.Error(t, err)
	assert.Equal(t, profile.RoleGuest, h.profile(t).Role)

	assert.Contains(t, h.mustRun(t, "login", "admin", "--password", "barista"), "barista")

	out := h.mustRun(t, "queue")
	assert.Contains(t, out, "1 orders, 1 active, 0 completed (0%). Service is open.")
	assert.Contains(t, out, "Flat White")

	assert.Contains(t, h.mustRun(t, "status", id, "prep"), "PREPARING")
	assert.Contains(t, h.mustRun(t, "serve", id), "served")
	out = h.mustRun(t, "queue")
	assert.Contains(t, out, "1 orders, 0 active, 1 completed (100%)")

	_, err = h.run(t, "status", id, "pending")
	assert.ErrorIs(t, err, order.ErrInvalidTransition)

	h.mustRun(t, "clear", id)
	h.mustRun(t, "clear", id)
	assert.Contains(t, h.mustRun(t, "queue"), "0 orders")

	assert.Contains(t, h.mustRun(t, "service", "off"), "closed")
	assert.Contains(t, h.mustRun(t, "service"), "closed")
	_, err = h.run(t, "service", "maybe")
	assert.Error(t, err)

	h.mustRun(t, "login", "guest", "--name", "Bo")
	_, err = h.run(t, "order", "--coffee", "Espresso")
	assert.ErrorIs(t, err, guest.ErrServiceClosed)

	assert.Contains(t, h.mustRun(t, "logout"), "Signed out.")
	assert.Equal(t, profile.Profile{}, h.profile(t))
}

func TestLocalQueueOutlivesEachRun(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "queue.db")
	profiles := &profile.MemoryStore{}

	// Every call builds a fresh App, like a new brewpulse process.
	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		app := NewApp(viper.New(), WithProfileStore(profiles), WithOutput(&out))
		root := NewRootCommand(app)
		root.SetArgs(append(args, "--local", "--local-db", path, "--admin-password", "barista", "--timeout", "2s"))
		require.NoError(t, root.ExecuteContext(context.Background()), "brewpulse %v", args)
		if b, ok := app.backend.(*localBackend); ok {
			require.NoError(t, b.Close())
		}
		return out.String()
	}

	run("login", "guest", "--name", "Ada")
	run("order", "--coffee", "Espresso")
	placed, err := profiles.Load()
	require.NoError(t, err)
	require.Len(t, placed.TrackedOrderIDs, 1)

	out := run("track", "--forget-completed")
	assert.Contains(t, out, "Forgot 0 finished orders.")
	assert.Contains(t, out, placed.TrackedOrderIDs[0])
	kept, err := profiles.Load()
	require.NoError(t, err)
	assert.Equal(t, placed.TrackedOrderIDs, kept.TrackedOrderIDs)

	run("login", "admin", "--password", "barista")
	assert.Contains(t, run("queue"), "1 orders, 1 active, 0 completed (0%). Service is open.")
}

func TestSuggestFallsBack(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun(t, "suggest", "sleepy", "and", "cold")
	assert.Equal(t, suggest.Fallback+"\n", out)
}

func TestAge(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "just now", age(now, now.Add(-10*time.Second)))
	assert.Equal(t, "5m", age(now, now.Add(-5*time.Minute)))
	assert.Equal(t, "2h", age(now, now.Add(-2*time.Hour)))
}
