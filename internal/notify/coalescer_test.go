package notify

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoalescer(t *testing.T) (*Coalescer, *fakeScheduler, *Queue) {
	t.Helper()
	sched := &fakeScheduler{}
	q := NewQueue(0)
	n := 0
	c := NewCoalescer(q,
		WithScheduler(sched),
		WithToastIDs(func() string {
			n++
			return fmt.Sprintf("toast-%d", n)
		}),
	)
	return c, sched, q
}

func statusEvent(itemID, from, to string) Event {
	return Event{
		Item:   ItemRef{ID: itemID, Title: "Item " + itemID, Creator: "alice"},
		Change: Change{Field: FieldStatus, From: from, To: to},
	}
}

func TestCoalescerDeduplicatesSummaries(t *testing.T) {
	c, sched, q := newTestCoalescer(t)
	for i := 0; i < 5; i++ {
		c.Add(statusEvent("wi-1", "todo", "in_progress"))
	}
	c.Add(statusEvent("wi-1", "in_progress", "in_review"))
	c.Add(statusEvent("wi-1", "todo", "in_progress"))

	sched.Advance(DefaultWindow)
	toasts := q.List()
	require.Len(t, toasts, 1)
	assert.Equal(t, []string{
		"Status changed from Todo to In Progress",
		"Status changed from In Progress to In Review",
	}, toasts[0].Changes)
	assert.Equal(t, "wi-1", toasts[0].ItemID)
	assert.Equal(t, "Item wi-1", toasts[0].ItemTitle)
	assert.Equal(t, "status", toasts[0].Section)
	assert.Equal(t, "toast-1", toasts[0].ID)
}

func TestCoalescerDebounceTiming(t *testing.T) {
	c, sched, q := newTestCoalescer(t)

	c.Add(statusEvent("wi-1", "todo", "in_progress"))
	sched.Advance(1000 * time.Millisecond)
	c.Add(Event{
		Item:   ItemRef{ID: "wi-1", Title: "Item wi-1", Creator: "alice"},
		Change: Change{Field: FieldAssignee, To: "bob"},
	})

	// The first event's original deadline (t=3000ms) passes without delivery.
	sched.Advance(2999 * time.Millisecond)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 1, c.Pending())

	sched.Advance(time.Millisecond)
	require.Equal(t, 1, q.Len())
	assert.Equal(t, 4000*time.Millisecond, sched.Now())
	toast := q.List()[0]
	assert.Equal(t, []string{"Status changed from Todo to In Progress", "Assigned to bob"}, toast.Changes)
	assert.Equal(t, "assignee", toast.Section)
	assert.Equal(t, 0, c.Pending())
}

func TestCoalescerStartsFreshEntryAfterDelivery(t *testing.T) {
	c, sched, q := newTestCoalescer(t)
	c.Add(statusEvent("wi-1", "todo", "in_progress"))
	sched.Advance(DefaultWindow)
	c.Add(statusEvent("wi-1", "todo", "in_progress"))
	sched.Advance(DefaultWindow)

	toasts := q.List()
	require.Len(t, toasts, 2)
	assert.Equal(t, "toast-2", toasts[0].ID)
	assert.Equal(t, "toast-1", toasts[1].ID)
	assert.Len(t, toasts[0].Changes, 1)
}

func TestCoalescerItemsAreIndependent(t *testing.T) {
	c, sched, q := newTestCoalescer(t)
	c.Add(statusEvent("wi-1", "todo", "done"))
	sched.Advance(500 * time.Millisecond)
	c.Add(statusEvent("wi-2", "todo", "done"))

	sched.Advance(DefaultWindow - 500*time.Millisecond)
	require.Equal(t, 1, q.Len())
	assert.Equal(t, "wi-1", q.List()[0].ItemID)

	sched.Advance(500 * time.Millisecond)
	toasts := q.List()
	require.Len(t, toasts, 2)
	assert.Equal(t, "wi-2", toasts[0].ItemID)
}

func TestCoalescerFlushAndStop(t *testing.T) {
	c, sched, q := newTestCoalescer(t)
	c.Add(statusEvent("wi-1", "todo", "done"))
	c.Add(statusEvent("wi-2", "todo", "done"))
	c.Flush()
	require.Equal(t, 2, q.Len())
	assert.Equal(t, "wi-2", q.List()[0].ItemID)

	sched.Advance(DefaultWindow)
	assert.Equal(t, 2, q.Len())

	c.Add(statusEvent("wi-3", "todo", "done"))
	c.Stop()
	c.Add(statusEvent("wi-4", "todo", "done"))
	sched.Advance(DefaultWindow)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 0, c.Pending())
}

func TestCoalescerSetWindow(t *testing.T) {
	c, sched, q := newTestCoalescer(t)
	c.SetWindow(500 * time.Millisecond)
	c.SetWindow(0)
	assert.Equal(t, 500*time.Millisecond, c.Window())

	c.Add(statusEvent("wi-1", "todo", "done"))
	sched.Advance(500 * time.Millisecond)
	assert.Equal(t, 1, q.Len())
}

func TestCoalescerWithRealTimers(t *testing.T) {
	q := NewQueue(0)
	c := NewCoalescer(q, WithWindow(20*time.Millisecond))
	c.Add(statusEvent("wi-1", "todo", "in_progress"))
	c.Add(statusEvent("wi-1", "in_progress", "done"))

	require.Eventually(t, func() bool { return q.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, q.List()[0].Changes, 2)
	assert.NotEmpty(t, q.List()[0].ID)
}
