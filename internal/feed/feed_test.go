package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/satyaki-up/sprintboard/internal/board"
	"github.com/satyaki-up/sprintboard/internal/notify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Handle(ev notify.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return true
}

func (r *recorder) snapshot() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Event(nil), r.events...)
}

func TestBridgeForwardsItemFieldChanges(t *testing.T) {
	store := board.NewStore()
	rec := &recorder{}
	cancel := NewBridge(rec, nil).Attach(store)
	defer cancel()

	it, err := store.CreateItem(board.ItemInput{Title: "Login page", Reporter: "alice", Watchers: []string{"carol"}})
	require.NoError(t, err)
	assert.Empty(t, rec.snapshot(), "creates are not item changes")

	status := board.ItemInProgress
	assignee := "bob"
	_, err = store.UpdateItem(it.ID, board.ItemPatch{Actor: "dave", Status: &status, Assignee: &assignee}, nil)
	require.NoError(t, err)
	_, err = store.Watch(it.ID, "erin")
	require.NoError(t, err)

	events := rec.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, notify.Change{Field: "status", From: "backlog", To: "in_progress"}, events[0].Change)
	assert.Equal(t, notify.Change{Field: "assignee", From: "", To: "bob"}, events[1].Change)
	assert.Equal(t, "dave", events[0].Actor)
	assert.Equal(t, "alice", events[0].Item.Creator)
	assert.Equal(t, "bob", events[0].Item.Assignee)
	assert.Equal(t, []string{"carol"}, events[0].Watchers)
}

func TestBridgeDrivesPipelineToToast(t *testing.T) {
	store := board.NewStore()
	q := notify.NewQueue(0)
	c := notify.NewCoalescer(q, notify.WithWindow(50*time.Millisecond))
	defer c.Stop()
	cancel := NewBridge(notify.NewPipeline("alice", c, nil), nil).Attach(store)
	defer cancel()

	mine, err := store.CreateItem(board.ItemInput{Title: "Mine", Reporter: "alice"})
	require.NoError(t, err)
	theirs, err := store.CreateItem(board.ItemInput{Title: "Theirs", Reporter: "bob"})
	require.NoError(t, err)

	_, err = store.MoveItem(mine.ID, board.ItemInReview, "bob")
	require.NoError(t, err)
	_, err = store.MoveItem(theirs.ID, board.ItemDone, "bob")
	require.NoError(t, err)
	_, err = store.AddComment(mine.ID, "bob", "ready")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return q.Len() == 1 }, time.Second, 5*time.Millisecond)
	toast := q.List()[0]
	assert.Equal(t, mine.ID, toast.ItemID)
	assert.Equal(t, []string{"Status changed from Backlog to In Review", "New comment from bob: ready"}, toast.Changes)
	assert.Equal(t, "comments", toast.Section)
}

func TestSimulatorOnlyPicksRelevantItems(t *testing.T) {
	store := board.NewStore()
	_, err := store.CreateItem(board.ItemInput{Title: "Other", Reporter: "bob"})
	require.NoError(t, err)
	rec := &recorder{}
	sim := NewSimulator(store, rec, SimulatorConfig{User: "alice", Seed: 42}, nil)

	_, ok := sim.Tick()
	assert.False(t, ok)

	mine, err := store.CreateItem(board.ItemInput{Title: "Mine", Reporter: "bob", Assignee: "alice"})
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		ev, ok := sim.Tick()
		require.True(t, ok)
		assert.Equal(t, mine.ID, ev.Item.ID)
		assert.NotEqual(t, "alice", ev.Actor)
		assert.NotEmpty(t, ev.Change.Field)
	}
	assert.Len(t, rec.snapshot(), 20)
}

func TestSimulatorIsDeterministicForSeed(t *testing.T) {
	store := board.NewStore()
	_, err := store.CreateItem(board.ItemInput{Title: "Mine", Reporter: "alice"})
	require.NoError(t, err)

	run := func() []notify.Change {
		sim := NewSimulator(store, &recorder{}, SimulatorConfig{User: "alice", Seed: 7}, nil)
		var out []notify.Change
		for i := 0; i < 10; i++ {
			ev, _ := sim.Tick()
			if ev.Change.Field == notify.FieldDueDate {
				ev.Change.To = ""
			}
			out = append(out, ev.Change)
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestSimulatorRunStopsOnCancel(t *testing.T) {
	store := board.NewStore()
	_, err := store.CreateItem(board.ItemInput{Title: "Mine", Reporter: "alice"})
	require.NoError(t, err)
	rec := &recorder{}
	sim := NewSimulator(store, rec, SimulatorConfig{
		User:        "alice",
		MinInterval: time.Millisecond,
		MaxInterval: 2 * time.Millisecond,
		Seed:        1,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx) }()

	require.Eventually(t, func() bool { return len(rec.snapshot()) >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("simulator did not stop")
	}
}
