package admin

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brewpulse/internal/order"
	"brewpulse/internal/store"
	"brewpulse/internal/syncctl"
)

func mk(id, guest string, ts int64, status order.Status) order.Order {
	return order.Order{ID: id, GuestName: guest, CoffeeType: "Espresso", Size: order.SizeMedium, Percentage: 50, Timestamp: ts, Status: status}
}

func TestNotifier_FirstSnapshotIsBaseline(t *testing.T) {
	n := NewNotifier(time.Minute, nil)
	_, ok := n.Observe([]order.Order{mk("a", "Ada", 1, order.StatusPending)})
	assert.False(t, ok)
	_, ok = n.Current()
	assert.False(t, ok)
}

func TestNotifier_GrowthAnnouncesNewestOnce(t *testing.T) {
	var raised []Toast
	n := NewNotifier(time.Minute, func(t Toast) { raised = append(raised, t) })

	base := []order.Order{mk("a", "Ada", 10, order.StatusPending), mk("b", "Bo", 20, order.StatusPending)}
	n.Observe(base)

	grown := append([]order.Order{
		mk("c", "Cy", 30, order.StatusPending),
		mk("e", "Eve", 50, order.StatusPending),
		mk("d", "Di", 40, order.StatusPending),
	}, base...)
	toast, ok := n.Observe(grown)
	require.True(t, ok)
	assert.Equal(t, "e", toast.Order.ID)
	assert.Equal(t, 2, toast.Others)
	assert.Equal(t, "New order: Eve would like Espresso (+2 more)", toast.Message())
	require.Len(t, raised, 1)

	current, ok := n.Current()
	require.True(t, ok)
	assert.Equal(t, toast, current)

	// Same collection again: nothing new.
	_, ok = n.Observe(grown)
	assert.False(t, ok)
	assert.Len(t, raised, 1)
}

func TestNotifier_StatusChangeWithSameSizeIsSilent(t *testing.T) {
	n := NewNotifier(time.Minute, nil)
	n.Observe([]order.Order{
		mk("a", "Ada", 1, order.StatusPending),
		mk("b", "Bo", 2, order.StatusPending),
		mk("c", "Cy", 3, order.StatusPending),
	})
	_, ok := n.Observe([]order.Order{
		mk("a", "Ada", 1, order.StatusPending),
		mk("b", "Bo", 2, order.StatusPreparing),
		mk("c", "Cy", 3, order.StatusPending),
	})
	assert.False(t, ok)
}

func TestNotifier_ShrinkAndReset(t *testing.T) {
	n := NewNotifier(time.Minute, nil)
	n.Observe([]order.Order{mk("a", "Ada", 1, order.StatusPending), mk("b", "Bo", 2, order.StatusCompleted)})

	_, ok := n.Observe([]order.Order{mk("a", "Ada", 1, order.StatusPending)})
	assert.False(t, ok)

	n.Reset()
	_, ok = n.Observe([]order.Order{mk("a", "Ada", 1, order.StatusPending), mk("z", "Zed", 9, order.StatusPending)})
	assert.False(t, ok, "first snapshot after reset is a baseline")
}

func TestNotifier_ToastExpires(t *testing.T) {
	n := NewNotifier(30*time.Millisecond, nil)
	n.Observe(nil)
	_, ok := n.Observe([]order.Order{mk("a", "Ada", 1, order.StatusPending)})
	require.True(t, ok)

	require.Eventually(t, func() bool {
		_, visible := n.Current()
		return !visible
	}, time.Second, 5*time.Millisecond)

	n.Observe([]order.Order{mk("a", "Ada", 1, order.StatusPending), mk("b", "Bo", 2, order.StatusPending)})
	n.Dismiss()
	_, ok = n.Current()
	assert.False(t, ok)
}

type fixture struct {
	store *store.MemoryStore
	ctl   *syncctl.Controller
	flow  *Flow
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	ctl := syncctl.New(s, syncctl.WithLogger(log.New(io.Discard, "", 0)))
	flow := New(ctl, NewNotifier(time.Minute, nil))
	t.Cleanup(flow.Close)

	ctl.Start()
	t.Cleanup(ctl.Stop)
	require.Eventually(t, func() bool { return ctl.State() == syncctl.Live }, time.Second, 5*time.Millisecond)
	return &fixture{store: s, ctl: ctl, flow: flow}
}

func (fx *fixture) place(t *testing.T, name string) string {
	t.Helper()
	id, err := fx.store.Create(context.Background(), order.Draft{GuestName: name, CoffeeType: "Espresso", Size: order.SizeMedium, Percentage: 60})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := fx.ctl.Lookup(id)
		return ok
	}, time.Second, 5*time.Millisecond)
	return id
}

func (fx *fixture) statusOf(id string) order.Status {
	o, _ := fx.ctl.Lookup(id)
	return o.Status
}

func TestFlow_StatusProgression(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := fx.place(t, "Ada")

	assert.Equal(t, []order.Status{order.StatusPreparing, order.StatusCompleted}, fx.flow.Actions(id))

	require.NoError(t, fx.flow.SetStatus(ctx, id, order.StatusPreparing))
	require.Eventually(t, func() bool { return fx.statusOf(id) == order.StatusPreparing }, time.Second, 5*time.Millisecond)

	require.NoError(t, fx.flow.SetStatus(ctx, id, order.StatusCompleted))
	require.Eventually(t, func() bool { return fx.statusOf(id) == order.StatusCompleted }, time.Second, 5*time.Millisecond)

	assert.Empty(t, fx.flow.Actions(id))
	assert.ErrorIs(t, fx.flow.SetStatus(ctx, id, order.StatusPending), order.ErrInvalidTransition)
	assert.NoError(t, fx.flow.SetStatus(ctx, id, order.StatusCompleted), "same status is a no-op")
	assert.ErrorIs(t, fx.flow.SetStatus(ctx, id, order.Status("BREWING")), order.ErrValidation)

	board := fx.flow.Board()
	assert.Equal(t, 1, board.Stats.Total)
	assert.Equal(t, 1, board.Stats.Completed)
	assert.Equal(t, 0, board.Stats.Active)
	assert.InDelta(t, 1.0, board.Stats.CompletionRatio, 1e-9)
}

func TestFlow_ServeSkipsPreparing(t *testing.T) {
	fx := newFixture(t)
	id := fx.place(t, "Ada")

	require.NoError(t, fx.flow.ServeOrder(context.Background(), id))
	require.Eventually(t, func() bool { return fx.statusOf(id) == order.StatusCompleted }, time.Second, 5*time.Millisecond)
}

func TestFlow_ClearIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := fx.place(t, "Ada")

	require.NoError(t, fx.flow.ClearOrder(ctx, id))
	require.NoError(t, fx.flow.ClearOrder(ctx, id))
	require.NoError(t, fx.flow.ClearOrder(ctx, "never-existed"))
	require.Eventually(t, func() bool { return len(fx.ctl.Orders()) == 0 }, time.Second, 5*time.Millisecond)

	// Updating an order another barista already cleared is not an error.
	assert.NoError(t, fx.flow.SetStatus(ctx, id, order.StatusPreparing))

	board := fx.flow.Board()
	assert.Zero(t, board.Stats.Total)
	assert.Zero(t, board.Stats.CompletionRatio)
}

func TestFlow_ToastOnNewOrder(t *testing.T) {
	fx := newFixture(t)
	_, ok := fx.flow.Toast()
	assert.False(t, ok)

	fx.place(t, "Ada")
	require.Eventually(t, func() bool {
		toast, ok := fx.flow.Toast()
		return ok && toast.Order.GuestName == "Ada"
	}, time.Second, 5*time.Millisecond)
}

func TestFlow_ToggleService(t *testing.T) {
	fx := newFixture(t)
	assert.True(t, fx.flow.Board().ServiceOpen)

	require.NoError(t, fx.flow.ToggleService(context.Background(), false))
	require.Eventually(t, func() bool { return !fx.flow.Board().ServiceOpen }, time.Second, 5*time.Millisecond)
	assert.Empty(t, fx.flow.Banner())
}

func TestFlow_AttachedToLiveControllerUsesCurrentBaseline(t *testing.T) {
	s := store.NewMemoryStore()
	_, err := s.Create(context.Background(), order.Draft{GuestName: "Ada", CoffeeType: "Espresso", Size: order.SizeMedium, Percentage: 60})
	require.NoError(t, err)

	ctl := syncctl.New(s, syncctl.WithLogger(log.New(io.Discard, "", 0)))
	ctl.Start()
	t.Cleanup(ctl.Stop)
	require.Eventually(t, func() bool { return ctl.State() == syncctl.Live }, time.Second, 5*time.Millisecond)

	flow := New(ctl, NewNotifier(time.Minute, nil))
	t.Cleanup(flow.Close)
	fx := &fixture{store: s, ctl: ctl, flow: flow}

	fx.place(t, "Bo")
	require.Eventually(t, func() bool {
		toast, ok := flow.Toast()
		return ok && toast.Order.GuestName == "Bo"
	}, time.Second, 5*time.Millisecond)
}

func TestFlow_SetStatusOutsideMirrorStillGuarded(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	id, err := s.Create(ctx, order.Draft{GuestName: "Ada", CoffeeType: "Espresso", Size: order.SizeMedium, Percentage: 60})
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, id, order.StatusPatch(order.StatusCompleted)))

	// The controller never subscribed, so the mirror knows nothing of id.
	ctl := syncctl.New(s, syncctl.WithLogger(log.New(io.Discard, "", 0)))
	flow := New(ctl, NewNotifier(time.Minute, nil))
	t.Cleanup(flow.Close)

	assert.ErrorIs(t, flow.SetStatus(ctx, id, order.StatusPending), order.ErrInvalidTransition)
	assert.NoError(t, flow.ServeOrder(ctx, id))
}
