package feed

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/satyaki-up/sprintboard/internal/board"
	"github.com/satyaki-up/sprintboard/internal/notify"
)

// ItemSource lists candidate items. *board.Store satisfies it.
type ItemSource interface {
	ListItems(boardID string, f board.ViewFilter) []board.WorkItem
}

type SimulatorConfig struct {
	User        string
	BoardID     string
	MinInterval time.Duration
	MaxInterval time.Duration
	Actors      []string
	Seed        uint64
}

var defaultActors = []string{"sam", "riley", "jordan", "casey"}

var cannedComments = []string{
	"Can we pair on this tomorrow?",
	"Pushed a fix, please take another look.",
	"Blocked on the API review.",
	"Added screenshots to the description.",
	"This needs a follow-up ticket.",
}

var statusCycle = []board.ItemStatus{
	board.ItemBacklog, board.ItemTodo, board.ItemInProgress, board.ItemInReview, board.ItemDone,
}

// Simulator emits synthetic change events for items relevant to one user at
// random intervals.
type Simulator struct {
	source  ItemSource
	handler Handler
	cfg     SimulatorConfig
	rng     *rand.Rand
	now     func() time.Time
	logger  *zap.Logger
}

func NewSimulator(source ItemSource, h Handler, cfg SimulatorConfig, logger *zap.Logger) *Simulator {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 5 * time.Second
	}
	if cfg.MaxInterval < cfg.MinInterval {
		cfg.MaxInterval = cfg.MinInterval
	}
	if len(cfg.Actors) == 0 {
		cfg.Actors = defaultActors
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Simulator{
		source:  source,
		handler: h,
		cfg:     cfg,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
}

// Run emits events until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	s.logger.Info("event simulator started",
		zap.String("user", s.cfg.User),
		zap.Duration("min_interval", s.cfg.MinInterval),
		zap.Duration("max_interval", s.cfg.MaxInterval))
	for {
		timer := time.NewTimer(s.nextInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("event simulator stopped")
			return nil
		case <-timer.C:
			if ev, ok := s.Tick(); ok {
				s.logger.Debug("simulated event", zap.String("item", ev.Item.ID), zap.String("field", ev.Change.Field))
			}
		}
	}
}

func (s *Simulator) nextInterval() time.Duration {
	span := s.cfg.MaxInterval - s.cfg.MinInterval
	if span <= 0 {
		return s.cfg.MinInterval
	}
	return s.cfg.MinInterval + time.Duration(s.rng.Int64N(int64(span)+1))
}

// Tick emits one event for a random relevant item. It reports false when no
// item concerns the user.
func (s *Simulator) Tick() (notify.Event, bool) {
	var candidates []board.WorkItem
	for _, it := range s.source.ListItems(s.cfg.BoardID, board.ViewFilter{}) {
		if notify.IsRelevant(notify.Event{Item: ItemRef(it)}, s.cfg.User) {
			candidates = append(candidates, it)
		}
	}
	if len(candidates) == 0 {
		return notify.Event{}, false
	}
	it := candidates[s.rng.IntN(len(candidates))]
	ev := notify.Event{
		Item:     ItemRef(it),
		Change:   s.randomChange(it),
		Watchers: append([]string(nil), it.Watchers...),
		Actor:    s.randomActor(),
		At:       s.now(),
	}
	s.handler.Handle(ev)
	return ev, true
}

func (s *Simulator) randomActor() string {
	for i := 0; i < 8; i++ {
		a := s.cfg.Actors[s.rng.IntN(len(s.cfg.Actors))]
		if a != s.cfg.User {
			return a
		}
	}
	return s.cfg.Actors[0]
}

func (s *Simulator) randomChange(it board.WorkItem) notify.Change {
	switch s.rng.IntN(4) {
	case 0:
		next := it.Status
		for next == it.Status {
			next = statusCycle[s.rng.IntN(len(statusCycle))]
		}
		return notify.Change{Field: notify.FieldStatus, From: string(it.Status), To: string(next)}
	case 1:
		to := s.randomActor()
		if to == it.Assignee {
			to = s.cfg.User
		}
		return notify.Change{Field: notify.FieldAssignee, From: it.Assignee, To: to}
	case 2:
		from := ""
		if it.DueDate != nil {
			from = it.DueDate.Format("2006-01-02")
		}
		due := s.now().AddDate(0, 0, 1+s.rng.IntN(14)).Format("2006-01-02")
		return notify.Change{Field: notify.FieldDueDate, From: from, To: due}
	default:
		body := cannedComments[s.rng.IntN(len(cannedComments))]
		return notify.Change{Field: notify.FieldComment, To: body}
	}
}
