package board

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SprintInput creates a sprint when ID is empty and updates it otherwise.
type SprintInput struct {
	ID        string
	BoardID   string
	Name      string
	Goal      string
	StartDate *time.Time
	EndDate   *time.Time
	EpicIDs   []string
	TeamID    string
	Actor     string
}

// DeletePolicy picks what happens to a deleted sprint's items. The zero
// value unassigns them to the backlog; ReassignTo moves them to that sprint.
type DeletePolicy struct {
	ReassignTo string
}

type SprintFilter struct {
	BoardID       string
	IncludeClosed bool
}

// SaveSprint creates or updates a sprint. Every epic newly attached to the
// sprint pulls its work items into the sprint.
func (s *Store) SaveSprint(in SprintInput) (*Sprint, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: sprint name is required", ErrInvalidInput)
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return nil, fmt.Errorf("%w: sprint ends before it starts", ErrInvalidInput)
	}
	epicIDs := normalizeSet(in.EpicIDs)
	id := strings.TrimSpace(in.ID)

	var out Sprint
	err := s.mutate(in.Actor, func(m *mutation) error {
		var existing *Sprint
		boardID := boardOrDefault(in.BoardID)
		if id != "" {
			sp, ok := s.sprints[id]
			if !ok {
				return fmt.Errorf("%w: sprint %q not found", ErrNotFound, id)
			}
			if sp.State == SprintDeleted {
				return fmt.Errorf("%w: sprint %q is deleted", ErrInvalidInput, id)
			}
			existing = sp
			boardID = sp.BoardID
		}
		if other := s.liveSprintByNameLocked(boardID, name); other != nil && other != existing {
			return fmt.Errorf("%w: sprint %q already exists on board %s", ErrConflict, name, boardID)
		}
		for _, eid := range epicIDs {
			if _, err := s.liveEpicLocked(eid, boardID); err != nil {
				return err
			}
		}

		var prior []string
		var sp *Sprint
		oldName := ""
		op := OpUpdate
		if existing == nil {
			s.sprintSeq[boardID]++
			sp = &Sprint{
				ID:        s.allocID("sp", func(id string) bool { return s.sprints[id] != nil }),
				BoardID:   boardID,
				Number:    s.sprintSeq[boardID],
				State:     SprintPlanned,
				CreatedAt: m.now,
			}
			s.sprints[sp.ID] = sp
			op = OpCreate
		} else {
			sp = existing
			prior = sp.EpicIDs
			oldName = sp.Name
		}
		sp.Name = name
		sp.Goal = strings.TrimSpace(in.Goal)
		sp.StartDate = copyTime(in.StartDate)
		sp.EndDate = copyTime(in.EndDate)
		sp.TeamID = strings.TrimSpace(in.TeamID)
		sp.EpicIDs = epicIDs
		sp.UpdatedAt = m.now
		m.record(KindSprint, op, sp.ID, sp.BoardID, nil, cloneSprint(sp))

		added := newlyAdded(prior, epicIDs)
		for _, itemID := range s.sortedItemIDsLocked() {
			it := s.items[itemID]
			switch {
			case it.EpicID != "" && added[it.EpicID] && it.BoardID == sp.BoardID:
				if it.SprintID == sp.ID && it.Sprint == sp.Name {
					continue
				}
				from := it.Sprint
				it.SprintID, it.Sprint = sp.ID, sp.Name
				s.touchItemLocked(m, it, FieldChange{Field: FieldSprint, From: from, To: sp.Name})
			case oldName != "" && oldName != sp.Name && it.BoardID == sp.BoardID && (it.SprintID == sp.ID || it.Sprint == oldName):
				from := it.Sprint
				it.SprintID, it.Sprint = sp.ID, sp.Name
				s.touchItemLocked(m, it, FieldChange{Field: FieldSprint, From: from, To: sp.Name})
			}
		}
		out = cloneSprint(sp)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// newlyAdded returns the ids in next that are not in prior.
func newlyAdded(prior, next []string) map[string]bool {
	had := make(map[string]bool, len(prior))
	for _, id := range prior {
		had[id] = true
	}
	out := make(map[string]bool)
	for _, id := range next {
		if !had[id] {
			out[id] = true
		}
	}
	return out
}

func (s *Store) GetSprint(id string) (*Sprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.sprints[strings.TrimSpace(id)]
	if !ok {
		return nil, fmt.Errorf("%w: sprint %q not found", ErrNotFound, id)
	}
	c := cloneSprint(sp)
	return &c, nil
}

func (s *Store) ListSprints(boardID string, includeDeleted bool) []Sprint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Sprint, 0, len(s.sprints))
	for _, sp := range s.sortedSprintsLocked() {
		if boardID != "" && sp.BoardID != boardID {
			continue
		}
		if !includeDeleted && sp.State == SprintDeleted {
			continue
		}
		out = append(out, cloneSprint(sp))
	}
	return out
}

// UpdateSprintState moves planned -> active -> closed. Deleting goes through
// DeleteSprint with the default policy.
func (s *Store) UpdateSprintState(id string, to SprintState, actor string) (*Sprint, error) {
	if !IsValidSprintState(to) {
		return nil, fmt.Errorf("%w: unknown sprint state %q", ErrInvalidInput, to)
	}
	if to == SprintDeleted {
		return s.DeleteSprint(id, DeletePolicy{}, actor)
	}
	return s.transitionSprint(id, to, actor, nil)
}

func (s *Store) transitionSprint(id string, to SprintState, actor string, check func(*Sprint) error) (*Sprint, error) {
	id = strings.TrimSpace(id)
	var out Sprint
	err := s.mutate(actor, func(m *mutation) error {
		sp, ok := s.sprints[id]
		if !ok {
			return fmt.Errorf("%w: sprint %q not found", ErrNotFound, id)
		}
		if check != nil {
			if err := check(sp); err != nil {
				return err
			}
		}
		if err := ValidateSprintTransition(sp.State, to); err != nil {
			return err
		}
		if sp.State == to {
			out = cloneSprint(sp)
			return nil
		}
		if sp.State == SprintDeleted {
			if other := s.liveSprintByNameLocked(sp.BoardID, sp.Name); other != nil {
				return fmt.Errorf("%w: sprint %q already exists on board %s", ErrConflict, sp.Name, sp.BoardID)
			}
		}
		from := sp.State
		sp.State = to
		sp.UpdatedAt = m.now
		out = cloneSprint(sp)
		m.record(KindSprint, OpUpdate, sp.ID, sp.BoardID, []FieldChange{{Field: FieldStatus, From: string(from), To: string(to)}}, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSprint soft-deletes the sprint. Items carrying its name (or id) on
// the same board are unassigned, or moved to policy.ReassignTo when set.
func (s *Store) DeleteSprint(id string, policy DeletePolicy, actor string) (*Sprint, error) {
	id = strings.TrimSpace(id)
	targetID := strings.TrimSpace(policy.ReassignTo)
	var out Sprint
	err := s.mutate(actor, func(m *mutation) error {
		sp, ok := s.sprints[id]
		if !ok {
			return fmt.Errorf("%w: sprint %q not found", ErrNotFound, id)
		}
		if sp.State == SprintDeleted {
			out = cloneSprint(sp)
			return nil
		}
		var target *Sprint
		if targetID != "" {
			if targetID == sp.ID {
				return fmt.Errorf("%w: cannot reassign items to the sprint being deleted", ErrInvalidInput)
			}
			t, err := s.liveSprintLocked(targetID, sp.BoardID)
			if err != nil {
				return err
			}
			target = t
		}

		from := sp.State
		sp.State = SprintDeleted
		sp.UpdatedAt = m.now
		out = cloneSprint(sp)
		m.record(KindSprint, OpUpdate, sp.ID, sp.BoardID, []FieldChange{{Field: FieldStatus, From: string(from), To: string(SprintDeleted)}}, out)

		for _, itemID := range s.sortedItemIDsLocked() {
			it := s.items[itemID]
			if it.SprintID != sp.ID && (it.BoardID != sp.BoardID || it.Sprint != sp.Name) {
				continue
			}
			prev := it.Sprint
			if target != nil {
				it.SprintID, it.Sprint = target.ID, target.Name
			} else {
				it.SprintID, it.Sprint = "", ""
			}
			s.touchItemLocked(m, it, FieldChange{Field: FieldSprint, From: prev, To: it.Sprint})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RestoreSprint brings a deleted sprint back as planned.
func (s *Store) RestoreSprint(id, actor string) (*Sprint, error) {
	return s.transitionSprint(id, SprintPlanned, actor, func(sp *Sprint) error {
		if sp.State != SprintDeleted {
			return fmt.Errorf("%w: sprint %q is %s, not deleted", ErrInvalidStateTransition, sp.ID, sp.State)
		}
		return nil
	})
}

// SelectableSprints lists the sprints a user may pick in an editor: never
// deleted ones, closed ones only on request, and team sprints only for
// members of that team.
func (s *Store) SelectableSprints(user string, f SprintFilter) []Sprint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Sprint, 0)
	for _, sp := range s.sortedSprintsLocked() {
		if f.BoardID != "" && sp.BoardID != f.BoardID {
			continue
		}
		switch sp.State {
		case SprintDeleted:
			continue
		case SprintClosed:
			if !f.IncludeClosed {
				continue
			}
		}
		if sp.TeamID != "" && !s.isMemberLocked(sp.TeamID, user) {
			continue
		}
		out = append(out, cloneSprint(sp))
	}
	return out
}

func (s *Store) liveSprintByNameLocked(boardID, name string) *Sprint {
	for _, sp := range s.sprints {
		if sp.BoardID == boardID && sp.Name == name && sp.State != SprintDeleted {
			return sp
		}
	}
	return nil
}

// sortedSprintsLocked orders by board, then number.
func (s *Store) sortedSprintsLocked() []*Sprint {
	out := make([]*Sprint, 0, len(s.sprints))
	for _, sp := range s.sprints {
		out = append(out, sp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BoardID != out[j].BoardID {
			return out[i].BoardID < out[j].BoardID
		}
		if out[i].Number != out[j].Number {
			return out[i].Number < out[j].Number
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
