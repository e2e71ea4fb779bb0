// Package notify turns item-change events into user-facing toasts: events
// are filtered for relevance to the current user, coalesced per item over a
// debounce window, and delivered newest-first to a toast queue.
package notify

import "time"

// ItemRef is the state of the changed item as of the event.
type ItemRef struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Creator  string   `json:"creator"`
	Assignee string   `json:"assignee,omitempty"`
	Watchers []string `json:"watchers,omitempty"`
}

type Change struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// Event is one item change as it arrives from a feed.
type Event struct {
	Item     ItemRef   `json:"item"`
	Change   Change    `json:"change"`
	Watchers []string  `json:"watchers,omitempty"`
	Actor    string    `json:"actor,omitempty"`
	At       time.Time `json:"at"`
}

// Toast aggregates one or more change summaries for a single item.
type Toast struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	ItemTitle string    `json:"item_title"`
	Changes   []string  `json:"changes"`
	Section   string    `json:"section,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Sink receives delivered toasts.
type Sink interface {
	Push(Toast)
}

type SinkFunc func(Toast)

func (f SinkFunc) Push(t Toast) { f(t) }
