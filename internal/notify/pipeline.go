package notify

import (
	"go.uber.org/zap"
)

// Pipeline filters events for one user and feeds the relevant ones to a
// coalescer.
type Pipeline struct {
	user      string
	coalescer *Coalescer
	logger    *zap.Logger
}

func NewPipeline(user string, c *Coalescer, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{user: user, coalescer: c, logger: logger}
}

func (p *Pipeline) User() string { return p.user }

// Handle reports whether ev was accepted. Malformed and irrelevant events
// are dropped silently.
func (p *Pipeline) Handle(ev Event) bool {
	if ev.Item.ID == "" || ev.Change.Field == "" {
		p.logger.Debug("dropping malformed event", zap.String("item", ev.Item.ID), zap.String("field", ev.Change.Field))
		return false
	}
	if !IsRelevant(ev, p.user) {
		p.logger.Debug("dropping irrelevant event", zap.String("item", ev.Item.ID), zap.String("user", p.user))
		return false
	}
	p.coalescer.Add(ev)
	return true
}
