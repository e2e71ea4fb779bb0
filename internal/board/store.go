package board

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultBoardID = "default"

type EntityKind string

const (
	KindItem         EntityKind = "item"
	KindEpic         EntityKind = "epic"
	KindSprint       EntityKind = "sprint"
	KindView         EntityKind = "view"
	KindTeam         EntityKind = "team"
	KindInvite       EntityKind = "invite"
	KindNotification EntityKind = "notification"
)

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Field names carried in FieldChange for work items.
const (
	FieldTitle    = "title"
	FieldStatus   = "status"
	FieldAssignee = "assignee"
	FieldPriority = "priority"
	FieldDueDate  = "due_date"
	FieldEpic     = "epic"
	FieldSprint   = "sprint"
	FieldComment  = "comment"
	FieldWatchers = "watchers"
)

type FieldChange struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// Change describes one committed mutation. Entity holds a copy of the
// entity after the mutation (a value, never a pointer into the store).
type Change struct {
	Kind    EntityKind    `json:"kind"`
	Op      Op            `json:"op"`
	ID      string        `json:"id"`
	BoardID string        `json:"board_id,omitempty"`
	Actor   string        `json:"actor,omitempty"`
	Fields  []FieldChange `json:"fields,omitempty"`
	Entity  any           `json:"entity"`
	At      time.Time     `json:"at"`
}

// Store owns every in-session entity and applies the cascade rules between
// them. Subscribers are called in commit order after the state lock is
// released; they must not mutate the store from inside the callback.
type Store struct {
	mu            sync.Mutex
	items         map[string]*WorkItem
	epics         map[string]*Epic
	sprints       map[string]*Sprint
	views         map[string]*SavedView
	teams         map[string]*Team
	invites       map[string]*Invite
	notifications map[string]*Notification
	sprintSeq     map[string]int

	emitMu  sync.Mutex
	subsMu  sync.Mutex
	subs    map[int]func(Change)
	nextSub int

	now    func() time.Time
	newID  func(prefix string) string
	logger *zap.Logger
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(fn func(prefix string) string) Option {
	return func(s *Store) { s.newID = fn }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		items:         make(map[string]*WorkItem),
		epics:         make(map[string]*Epic),
		sprints:       make(map[string]*Sprint),
		views:         make(map[string]*SavedView),
		teams:         make(map[string]*Team),
		invites:       make(map[string]*Invite),
		notifications: make(map[string]*Notification),
		sprintSeq:     make(map[string]int),
		subs:          make(map[int]func(Change)),
		now:           func() time.Time { return time.Now().UTC() },
		newID:         defaultID,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func defaultID(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	return prefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// Subscribe registers fn for every committed change and returns a func that
// removes it.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) subscribers() []func(Change) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subs[id])
	}
	return out
}

// mutation collects the changes of one store operation. fn must finish all of
// its validation before touching any collection.
type mutation struct {
	now     time.Time
	actor   string
	changes []Change
}

func (m *mutation) record(kind EntityKind, op Op, id, boardID string, fields []FieldChange, entity any) {
	m.changes = append(m.changes, Change{
		Kind:    kind,
		Op:      op,
		ID:      id,
		BoardID: boardID,
		Actor:   m.actor,
		Fields:  fields,
		Entity:  entity,
		At:      m.now,
	})
}

func (s *Store) mutate(actor string, fn func(m *mutation) error) error {
	s.mu.Lock()
	m := &mutation{now: s.now(), actor: actor}
	if err := fn(m); err != nil {
		s.mu.Unlock()
		return err
	}
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()

	subs := s.subscribers()
	for _, c := range m.changes {
		s.logger.Debug("store change",
			zap.String("kind", string(c.Kind)),
			zap.String("op", string(c.Op)),
			zap.String("id", c.ID),
			zap.Int("fields", len(c.Fields)))
		for _, fn := range subs {
			fn(c)
		}
	}
	return nil
}

func (s *Store) allocID(prefix string, taken func(string) bool) string {
	for {
		id := s.newID(prefix)
		if !taken(id) {
			return id
		}
	}
}

// Snapshot returns a deep copy of every collection, each sorted by id.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap Snapshot
	for _, it := range s.items {
		snap.Items = append(snap.Items, cloneItem(it))
	}
	for _, e := range s.epics {
		snap.Epics = append(snap.Epics, cloneEpic(e))
	}
	for _, sp := range s.sprints {
		snap.Sprints = append(snap.Sprints, cloneSprint(sp))
	}
	for _, v := range s.views {
		snap.Views = append(snap.Views, cloneView(v))
	}
	for _, t := range s.teams {
		snap.Teams = append(snap.Teams, cloneTeam(t))
	}
	for _, inv := range s.invites {
		snap.Invites = append(snap.Invites, *inv)
	}
	for _, n := range s.notifications {
		snap.Notifications = append(snap.Notifications, *n)
	}
	sort.Slice(snap.Items, func(i, j int) bool { return snap.Items[i].ID < snap.Items[j].ID })
	sort.Slice(snap.Epics, func(i, j int) bool { return snap.Epics[i].ID < snap.Epics[j].ID })
	sort.Slice(snap.Sprints, func(i, j int) bool { return snap.Sprints[i].ID < snap.Sprints[j].ID })
	sort.Slice(snap.Views, func(i, j int) bool { return snap.Views[i].ID < snap.Views[j].ID })
	sort.Slice(snap.Teams, func(i, j int) bool { return snap.Teams[i].ID < snap.Teams[j].ID })
	sort.Slice(snap.Invites, func(i, j int) bool { return snap.Invites[i].ID < snap.Invites[j].ID })
	sort.Slice(snap.Notifications, func(i, j int) bool { return snap.Notifications[i].ID < snap.Notifications[j].ID })
	return snap
}

// Restore replaces the store's collections with snap. No changes are emitted.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*WorkItem, len(snap.Items))
	for _, it := range snap.Items {
		c := cloneItem(&it)
		s.items[c.ID] = &c
	}
	s.epics = make(map[string]*Epic, len(snap.Epics))
	for _, e := range snap.Epics {
		c := cloneEpic(&e)
		s.epics[c.ID] = &c
	}
	s.sprints = make(map[string]*Sprint, len(snap.Sprints))
	s.sprintSeq = make(map[string]int)
	for _, sp := range snap.Sprints {
		c := cloneSprint(&sp)
		s.sprints[c.ID] = &c
		if c.Number > s.sprintSeq[c.BoardID] {
			s.sprintSeq[c.BoardID] = c.Number
		}
	}
	s.views = make(map[string]*SavedView, len(snap.Views))
	for _, v := range snap.Views {
		c := cloneView(&v)
		s.views[c.ID] = &c
	}
	s.teams = make(map[string]*Team, len(snap.Teams))
	for _, t := range snap.Teams {
		c := cloneTeam(&t)
		s.teams[c.ID] = &c
	}
	s.invites = make(map[string]*Invite, len(snap.Invites))
	for _, inv := range snap.Invites {
		c := inv
		s.invites[c.ID] = &c
	}
	s.notifications = make(map[string]*Notification, len(snap.Notifications))
	for _, n := range snap.Notifications {
		c := n
		s.notifications[c.ID] = &c
	}
}

func cloneItem(it *WorkItem) WorkItem {
	c := *it
	c.Watchers = append([]string{}, it.Watchers...)
	c.Comments = append([]Comment(nil), it.Comments...)
	if it.DueDate != nil {
		d := *it.DueDate
		c.DueDate = &d
	}
	return c
}

func cloneEpic(e *Epic) Epic {
	c := *e
	if e.ArchivedAt != nil {
		t := *e.ArchivedAt
		c.ArchivedAt = &t
	}
	if e.DeletedAt != nil {
		t := *e.DeletedAt
		c.DeletedAt = &t
	}
	return c
}

func cloneSprint(sp *Sprint) Sprint {
	c := *sp
	c.EpicIDs = append([]string{}, sp.EpicIDs...)
	if sp.StartDate != nil {
		t := *sp.StartDate
		c.StartDate = &t
	}
	if sp.EndDate != nil {
		t := *sp.EndDate
		c.EndDate = &t
	}
	return c
}

func cloneView(v *SavedView) SavedView {
	c := *v
	c.Filter.Statuses = append([]ItemStatus(nil), v.Filter.Statuses...)
	c.Filter.Priorities = append([]Priority(nil), v.Filter.Priorities...)
	return c
}

func cloneTeam(t *Team) Team {
	c := *t
	c.Members = append([]string{}, t.Members...)
	return c
}

func boardOrDefault(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return DefaultBoardID
	}
	return id
}

// normalizeSet trims, drops blanks and returns a sorted set.
func normalizeSet(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		u := strings.TrimSpace(raw)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
