package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultWindow = 3 * time.Second

// Timer is the part of *time.Timer the coalescer needs.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type pending struct {
	toast Toast
	seen  map[string]bool
	timer Timer
	gen   uint64
}

// Coalescer merges bursts of events for the same item into one toast. Each
// new event for an item cancels that item's scheduled delivery, adds its
// summary (identical summaries collapse) and reschedules delivery one window
// later. An item has at most one pending entry.
type Coalescer struct {
	mu      sync.Mutex
	window  time.Duration
	sched   Scheduler
	sink    Sink
	pending map[string]*pending
	gen     uint64
	stopped bool

	now    func() time.Time
	newID  func() string
	logger *zap.Logger
}

type CoalescerOption func(*Coalescer)

func WithWindow(d time.Duration) CoalescerOption {
	return func(c *Coalescer) { c.window = d }
}

func WithScheduler(s Scheduler) CoalescerOption {
	return func(c *Coalescer) { c.sched = s }
}

func WithClock(now func() time.Time) CoalescerOption {
	return func(c *Coalescer) { c.now = now }
}

func WithToastIDs(fn func() string) CoalescerOption {
	return func(c *Coalescer) { c.newID = fn }
}

func WithLogger(l *zap.Logger) CoalescerOption {
	return func(c *Coalescer) { c.logger = l }
}

func NewCoalescer(sink Sink, opts ...CoalescerOption) *Coalescer {
	c := &Coalescer{
		window:  DefaultWindow,
		sched:   realScheduler{},
		sink:    sink,
		pending: make(map[string]*pending),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetWindow changes the debounce window for deliveries scheduled from now on.
func (c *Coalescer) SetWindow(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.window = d
}

func (c *Coalescer) Window() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window
}

func (c *Coalescer) Add(ev Event) {
	summary := FormatChange(ev)
	itemID := ev.Item.ID

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}

	p, ok := c.pending[itemID]
	if ok {
		p.timer.Stop()
	} else {
		p = &pending{
			toast: Toast{ItemID: itemID},
			seen:  make(map[string]bool),
		}
		c.pending[itemID] = p
	}
	if ev.Item.Title != "" {
		p.toast.ItemTitle = ev.Item.Title
	}
	p.toast.Section = SectionFor(ev.Change.Field)
	if !p.seen[summary] {
		p.seen[summary] = true
		p.toast.Changes = append(p.toast.Changes, summary)
	}

	c.gen++
	gen := c.gen
	p.gen = gen
	p.timer = c.sched.AfterFunc(c.window, func() { c.deliver(itemID, gen) })

	c.logger.Debug("coalescing change",
		zap.String("item", itemID),
		zap.String("field", ev.Change.Field),
		zap.Int("changes", len(p.toast.Changes)))
}

// deliver pushes the pending toast for itemID unless a later Add has
// superseded the timer that called it.
func (c *Coalescer) deliver(itemID string, gen uint64) {
	c.mu.Lock()
	p, ok := c.pending[itemID]
	if !ok || p.gen != gen {
		c.mu.Unlock()
		return
	}
	delete(c.pending, itemID)
	t := c.finish(p)
	c.mu.Unlock()

	c.sink.Push(t)
}

func (c *Coalescer) finish(p *pending) Toast {
	t := p.toast
	t.ID = c.newID()
	t.CreatedAt = c.now()
	return t
}

// Pending reports how many items have an undelivered toast.
func (c *Coalescer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Flush delivers every pending toast now, in the order their windows would
// have expired.
func (c *Coalescer) Flush() {
	c.mu.Lock()
	list := make([]*pending, 0, len(c.pending))
	for id, p := range c.pending {
		p.timer.Stop()
		list = append(list, p)
		delete(c.pending, id)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].gen < list[j].gen })
	toasts := make([]Toast, 0, len(list))
	for _, p := range list {
		toasts = append(toasts, c.finish(p))
	}
	c.mu.Unlock()

	for _, t := range toasts {
		c.sink.Push(t)
	}
}

// Stop cancels every pending delivery and ignores later events.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	for id, p := range c.pending {
		p.timer.Stop()
		delete(c.pending, id)
	}
}
