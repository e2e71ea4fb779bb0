// Package feed produces item-change events for the notification pipeline,
// either from real store edits (Bridge) or synthetically (Simulator).
package feed

import (
	"go.uber.org/zap"

	"github.com/satyaki-up/sprintboard/internal/board"
	"github.com/satyaki-up/sprintboard/internal/notify"
)

// Handler consumes events. *notify.Pipeline satisfies it.
type Handler interface {
	Handle(notify.Event) bool
}

// Bridge turns work-item field diffs committed to a board.Store into
// notify events.
type Bridge struct {
	handler Handler
	logger  *zap.Logger
}

func NewBridge(h Handler, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{handler: h, logger: logger}
}

// Attach subscribes the bridge to s and returns the unsubscribe func.
func (b *Bridge) Attach(s *board.Store) func() {
	return s.Subscribe(b.OnChange)
}

func (b *Bridge) OnChange(c board.Change) {
	if c.Kind != board.KindItem || c.Op != board.OpUpdate {
		return
	}
	item, ok := c.Entity.(board.WorkItem)
	if !ok {
		b.logger.Warn("item change without item payload", zap.String("id", c.ID))
		return
	}
	ref := ItemRef(item)
	for _, f := range c.Fields {
		if f.Field == board.FieldWatchers {
			continue
		}
		b.handler.Handle(notify.Event{
			Item:     ref,
			Change:   notify.Change{Field: f.Field, From: f.From, To: f.To},
			Watchers: item.Watchers,
			Actor:    c.Actor,
			At:       c.At,
		})
	}
}

func ItemRef(it board.WorkItem) notify.ItemRef {
	return notify.ItemRef{
		ID:       it.ID,
		Title:    it.Title,
		Creator:  it.Reporter,
		Assignee: it.Assignee,
		Watchers: append([]string(nil), it.Watchers...),
	}
}
