package board

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type ItemInput struct {
	BoardID  string
	Title    string
	Status   ItemStatus
	Assignee string
	Reporter string
	Priority Priority
	EpicID   string
	SprintID string
	TeamID   string
	Watchers []string
	DueDate  *time.Time
}

// ItemPatch holds optional edits. A pointer to "" for EpicID or SprintID
// detaches the item.
type ItemPatch struct {
	Actor        string
	Title        *string
	Status       *ItemStatus
	Assignee     *string
	Priority     *Priority
	EpicID       *string
	SprintID     *string
	TeamID       *string
	DueDate      *time.Time
	ClearDueDate bool
}

func (s *Store) CreateItem(in ItemInput) (*WorkItem, error) {
	title := strings.TrimSpace(in.Title)
	reporter := strings.TrimSpace(in.Reporter)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if reporter == "" {
		return nil, fmt.Errorf("%w: reporter is required", ErrInvalidInput)
	}
	status := in.Status
	if status == "" {
		status = ItemBacklog
	}
	if !IsValidItemStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !IsValidPriority(priority) {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, priority)
	}

	var out WorkItem
	err := s.mutate(reporter, func(m *mutation) error {
		item := &WorkItem{
			BoardID:  boardOrDefault(in.BoardID),
			Title:    title,
			Status:   status,
			Assignee: strings.TrimSpace(in.Assignee),
			Reporter: reporter,
			Priority: priority,
			TeamID:   strings.TrimSpace(in.TeamID),
			Watchers: normalizeSet(in.Watchers),
			Version:  1,
		}
		if in.DueDate != nil {
			d := *in.DueDate
			item.DueDate = &d
		}
		if id := strings.TrimSpace(in.EpicID); id != "" {
			epic, err := s.liveEpicLocked(id, item.BoardID)
			if err != nil {
				return err
			}
			item.EpicID, item.Epic = epic.ID, epic.Name
		}
		if id := strings.TrimSpace(in.SprintID); id != "" {
			sp, err := s.liveSprintLocked(id, item.BoardID)
			if err != nil {
				return err
			}
			item.SprintID, item.Sprint = sp.ID, sp.Name
		}

		item.ID = s.allocID("wi", func(id string) bool { return s.items[id] != nil })
		item.CreatedAt = m.now
		item.UpdatedAt = m.now
		s.items[item.ID] = item

		out = cloneItem(item)
		m.record(KindItem, OpCreate, item.ID, item.BoardID, nil, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) GetItem(id string) (*WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[strings.TrimSpace(id)]
	if !ok {
		return nil, fmt.Errorf("%w: work item %q not found", ErrNotFound, id)
	}
	c := cloneItem(it)
	return &c, nil
}

// ListItems returns the items on boardID matching f, oldest first. An empty
// boardID matches every board.
func (s *Store) ListItems(boardID string, f ViewFilter) []WorkItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WorkItem, 0, len(s.items))
	for _, it := range s.items {
		if boardID != "" && it.BoardID != boardID {
			continue
		}
		if !f.Matches(it) {
			continue
		}
		out = append(out, cloneItem(it))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Matches reports whether it passes every criterion set on f.
func (f ViewFilter) Matches(it *WorkItem) bool {
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, it.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !containsPriority(f.Priorities, it.Priority) {
		return false
	}
	if f.Assignee != "" && it.Assignee != f.Assignee {
		return false
	}
	if f.EpicID != "" && it.EpicID != f.EpicID {
		return false
	}
	if f.SprintID != "" && it.SprintID != f.SprintID {
		return false
	}
	if t := strings.TrimSpace(f.Text); t != "" && !strings.Contains(strings.ToLower(it.Title), strings.ToLower(t)) {
		return false
	}
	return true
}

func containsStatus(list []ItemStatus, s ItemStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsPriority(list []Priority, p Priority) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}

// UpdateItem applies patch. When expectedVersion is set and does not match
// the stored version the write is rejected with ErrConflict.
func (s *Store) UpdateItem(id string, patch ItemPatch, expectedVersion *int64) (*WorkItem, error) {
	id = strings.TrimSpace(id)
	var out WorkItem
	err := s.mutate(strings.TrimSpace(patch.Actor), func(m *mutation) error {
		it, ok := s.items[id]
		if !ok {
			return fmt.Errorf("%w: work item %q not found", ErrNotFound, id)
		}
		if expectedVersion != nil && it.Version != *expectedVersion {
			return fmt.Errorf("%w: stale write; expected version %d, have %d", ErrConflict, *expectedVersion, it.Version)
		}

		next := cloneItem(it)
		if patch.Title != nil {
			t := strings.TrimSpace(*patch.Title)
			if t == "" {
				return fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
			}
			next.Title = t
		}
		if patch.Status != nil {
			if !IsValidItemStatus(*patch.Status) {
				return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *patch.Status)
			}
			next.Status = *patch.Status
		}
		if patch.Priority != nil {
			if !IsValidPriority(*patch.Priority) {
				return fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, *patch.Priority)
			}
			next.Priority = *patch.Priority
		}
		if patch.Assignee != nil {
			next.Assignee = strings.TrimSpace(*patch.Assignee)
		}
		if patch.TeamID != nil {
			next.TeamID = strings.TrimSpace(*patch.TeamID)
		}
		if patch.EpicID != nil {
			next.EpicID, next.Epic = "", ""
			if eid := strings.TrimSpace(*patch.EpicID); eid != "" {
				epic, err := s.liveEpicLocked(eid, it.BoardID)
				if err != nil {
					return err
				}
				next.EpicID, next.Epic = epic.ID, epic.Name
			}
		}
		if patch.SprintID != nil {
			next.SprintID, next.Sprint = "", ""
			if sid := strings.TrimSpace(*patch.SprintID); sid != "" {
				sp, err := s.liveSprintLocked(sid, it.BoardID)
				if err != nil {
					return err
				}
				next.SprintID, next.Sprint = sp.ID, sp.Name
			}
		}
		if patch.ClearDueDate {
			next.DueDate = nil
		} else if patch.DueDate != nil {
			d := *patch.DueDate
			next.DueDate = &d
		}

		fields := diffItem(it, &next)
		if len(fields) == 0 {
			out = cloneItem(it)
			return nil
		}
		next.Version = it.Version + 1
		next.UpdatedAt = m.now
		*it = next
		out = cloneItem(it)
		m.record(KindItem, OpUpdate, it.ID, it.BoardID, fields, out)

		for _, f := range fields {
			if f.Field == FieldAssignee && f.To != "" && f.To != m.actor {
				s.notifyLocked(m, Notification{
					Recipient:  f.To,
					Actor:      m.actor,
					EntityKind: KindItem,
					EntityID:   it.ID,
					Section:    "assignee",
					Message:    fmt.Sprintf("You were assigned to %q", it.Title),
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MoveItem is the drag-and-drop status transition.
func (s *Store) MoveItem(id string, status ItemStatus, actor string) (*WorkItem, error) {
	return s.UpdateItem(id, ItemPatch{Actor: actor, Status: &status}, nil)
}

func (s *Store) AddComment(itemID, author, body string) (*WorkItem, error) {
	itemID = strings.TrimSpace(itemID)
	author = strings.TrimSpace(author)
	body = strings.TrimSpace(body)
	if author == "" {
		return nil, fmt.Errorf("%w: author is required", ErrInvalidInput)
	}
	if body == "" {
		return nil, fmt.Errorf("%w: comment body is required", ErrInvalidInput)
	}

	var out WorkItem
	err := s.mutate(author, func(m *mutation) error {
		it, ok := s.items[itemID]
		if !ok {
			return fmt.Errorf("%w: work item %q not found", ErrNotFound, itemID)
		}
		it.Comments = append(it.Comments, Comment{
			ID:        s.newID("cm"),
			Author:    author,
			Body:      body,
			CreatedAt: m.now,
		})
		it.Version++
		it.UpdatedAt = m.now
		out = cloneItem(it)
		m.record(KindItem, OpUpdate, it.ID, it.BoardID, []FieldChange{{Field: FieldComment, To: body}}, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) Watch(itemID, user string) (*WorkItem, error) {
	return s.setWatching(itemID, user, true)
}

func (s *Store) Unwatch(itemID, user string) (*WorkItem, error) {
	return s.setWatching(itemID, user, false)
}

func (s *Store) setWatching(itemID, user string, on bool) (*WorkItem, error) {
	itemID = strings.TrimSpace(itemID)
	user = strings.TrimSpace(user)
	if user == "" {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	var out WorkItem
	err := s.mutate(user, func(m *mutation) error {
		it, ok := s.items[itemID]
		if !ok {
			return fmt.Errorf("%w: work item %q not found", ErrNotFound, itemID)
		}
		before := strings.Join(it.Watchers, ",")
		var next []string
		if on {
			next = normalizeSet(append(append([]string{}, it.Watchers...), user))
		} else {
			next = make([]string, 0, len(it.Watchers))
			for _, w := range it.Watchers {
				if w != user {
					next = append(next, w)
				}
			}
		}
		after := strings.Join(next, ",")
		if before == after {
			out = cloneItem(it)
			return nil
		}
		it.Watchers = next
		it.Version++
		it.UpdatedAt = m.now
		out = cloneItem(it)
		m.record(KindItem, OpUpdate, it.ID, it.BoardID, []FieldChange{{Field: FieldWatchers, From: before, To: after}}, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func diffItem(before, after *WorkItem) []FieldChange {
	var out []FieldChange
	add := func(field, from, to string) {
		if from != to {
			out = append(out, FieldChange{Field: field, From: from, To: to})
		}
	}
	add(FieldTitle, before.Title, after.Title)
	add(FieldStatus, string(before.Status), string(after.Status))
	add(FieldAssignee, before.Assignee, after.Assignee)
	add(FieldPriority, string(before.Priority), string(after.Priority))
	add(FieldDueDate, formatTime(before.DueDate), formatTime(after.DueDate))
	add(FieldEpic, before.Epic, after.Epic)
	add(FieldSprint, before.Sprint, after.Sprint)
	if before.TeamID != after.TeamID {
		out = append(out, FieldChange{Field: "team", From: before.TeamID, To: after.TeamID})
	}
	return out
}

// touchItemLocked bumps version and timestamp and records the change.
func (s *Store) touchItemLocked(m *mutation, it *WorkItem, fields ...FieldChange) {
	it.Version++
	it.UpdatedAt = m.now
	m.record(KindItem, OpUpdate, it.ID, it.BoardID, fields, cloneItem(it))
}

// liveEpicLocked resolves a reference from an entity on boardID. The epic
// must exist, be on the same board and not be deleted.
func (s *Store) liveEpicLocked(id, boardID string) (*Epic, error) {
	e, ok := s.epics[id]
	if !ok {
		return nil, fmt.Errorf("%w: epic %q not found", ErrInvalidInput, id)
	}
	if e.BoardID != boardID {
		return nil, fmt.Errorf("%w: epic %q is on board %s, not %s", ErrInvalidInput, id, e.BoardID, boardID)
	}
	if e.Status == EpicDeleted {
		return nil, fmt.Errorf("%w: epic %q is deleted", ErrInvalidInput, id)
	}
	return e, nil
}

func (s *Store) liveSprintLocked(id, boardID string) (*Sprint, error) {
	sp, ok := s.sprints[id]
	if !ok {
		return nil, fmt.Errorf("%w: sprint %q not found", ErrInvalidInput, id)
	}
	if sp.BoardID != boardID {
		return nil, fmt.Errorf("%w: sprint %q is on board %s, not %s", ErrInvalidInput, id, sp.BoardID, boardID)
	}
	if sp.State == SprintDeleted {
		return nil, fmt.Errorf("%w: sprint %q is deleted", ErrInvalidInput, id)
	}
	return sp, nil
}

// sortedItemIDsLocked gives cascades a deterministic order.
func (s *Store) sortedItemIDsLocked() []string {
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
