package board

import (
	"fmt"
	"sort"
	"strings"
)

type EpicInput struct {
	BoardID     string
	Name        string
	Description string
	Ease        int
	Impact      int
	Confidence  int
	Actor       string
}

type EpicPatch struct {
	Actor       string
	Name        *string
	Description *string
	Ease        *int
	Impact      *int
	Confidence  *int
}

func (s *Store) CreateEpic(in EpicInput) (*Epic, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: epic name is required", ErrInvalidInput)
	}
	if err := validateICE(in.Ease, in.Impact, in.Confidence); err != nil {
		return nil, err
	}

	var out Epic
	err := s.mutate(in.Actor, func(m *mutation) error {
		e := &Epic{
			ID:          s.allocID("ep", func(id string) bool { return s.epics[id] != nil }),
			BoardID:     boardOrDefault(in.BoardID),
			Name:        name,
			Description: strings.TrimSpace(in.Description),
			Ease:        in.Ease,
			Impact:      in.Impact,
			Confidence:  in.Confidence,
			ICEScore:    ICEScore(in.Ease, in.Impact, in.Confidence),
			Status:      EpicActive,
			CreatedAt:   m.now,
			UpdatedAt:   m.now,
		}
		s.epics[e.ID] = e
		out = cloneEpic(e)
		m.record(KindEpic, OpCreate, e.ID, e.BoardID, nil, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) GetEpic(id string) (*Epic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.epics[strings.TrimSpace(id)]
	if !ok {
		return nil, fmt.Errorf("%w: epic %q not found", ErrNotFound, id)
	}
	c := cloneEpic(e)
	return &c, nil
}

// ListEpics returns epics on boardID ordered by ICE score, highest first.
func (s *Store) ListEpics(boardID string, includeDeleted bool) []Epic {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Epic, 0, len(s.epics))
	for _, e := range s.epics {
		if boardID != "" && e.BoardID != boardID {
			continue
		}
		if !includeDeleted && e.Status == EpicDeleted {
			continue
		}
		out = append(out, cloneEpic(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ICEScore != out[j].ICEScore {
			return out[i].ICEScore > out[j].ICEScore
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// UpdateEpic edits name, description and ICE inputs. The score is
// recomputed whenever any input changes; a rename is carried to the
// denormalized epic name on every linked item.
func (s *Store) UpdateEpic(id string, patch EpicPatch) (*Epic, error) {
	id = strings.TrimSpace(id)
	var out Epic
	err := s.mutate(patch.Actor, func(m *mutation) error {
		e, ok := s.epics[id]
		if !ok {
			return fmt.Errorf("%w: epic %q not found", ErrNotFound, id)
		}
		if e.Status == EpicDeleted {
			return fmt.Errorf("%w: epic %q is deleted", ErrInvalidInput, id)
		}

		next := cloneEpic(e)
		if patch.Name != nil {
			n := strings.TrimSpace(*patch.Name)
			if n == "" {
				return fmt.Errorf("%w: epic name cannot be empty", ErrInvalidInput)
			}
			next.Name = n
		}
		if patch.Description != nil {
			next.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Ease != nil {
			next.Ease = *patch.Ease
		}
		if patch.Impact != nil {
			next.Impact = *patch.Impact
		}
		if patch.Confidence != nil {
			next.Confidence = *patch.Confidence
		}
		if err := validateICE(next.Ease, next.Impact, next.Confidence); err != nil {
			return err
		}
		next.ICEScore = ICEScore(next.Ease, next.Impact, next.Confidence)

		renamed := next.Name != e.Name
		next.UpdatedAt = m.now
		*e = next
		out = cloneEpic(e)
		m.record(KindEpic, OpUpdate, e.ID, e.BoardID, nil, out)

		if renamed {
			for _, itemID := range s.sortedItemIDsLocked() {
				it := s.items[itemID]
				if it.EpicID != e.ID {
					continue
				}
				from := it.Epic
				it.Epic = e.Name
				s.touchItemLocked(m, it, FieldChange{Field: FieldEpic, From: from, To: e.Name})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateEpicStatus moves an epic through its state machine. Moving to
// archived stamps ArchivedAt; moving to deleted detaches linked items.
func (s *Store) UpdateEpicStatus(id string, to EpicStatus, actor string) (*Epic, error) {
	if !IsValidEpicStatus(to) {
		return nil, fmt.Errorf("%w: unknown epic status %q", ErrInvalidInput, to)
	}
	if to == EpicDeleted {
		return s.DeleteEpic(id, actor)
	}
	id = strings.TrimSpace(id)

	var out Epic
	err := s.mutate(actor, func(m *mutation) error {
		e, ok := s.epics[id]
		if !ok {
			return fmt.Errorf("%w: epic %q not found", ErrNotFound, id)
		}
		if err := ValidateEpicTransition(e.Status, to); err != nil {
			return err
		}
		if e.Status == to {
			out = cloneEpic(e)
			return nil
		}
		from := e.Status
		e.Status = to
		if to == EpicArchived {
			t := m.now
			e.ArchivedAt = &t
		}
		if from == EpicDeleted {
			e.DeletedAt = nil
		}
		e.UpdatedAt = m.now
		out = cloneEpic(e)
		m.record(KindEpic, OpUpdate, e.ID, e.BoardID, []FieldChange{{Field: FieldStatus, From: string(from), To: string(to)}}, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteEpic soft-deletes the epic and detaches every item that references
// it. Items are never removed. Deleting an already deleted epic is a no-op.
func (s *Store) DeleteEpic(id, actor string) (*Epic, error) {
	id = strings.TrimSpace(id)
	var out Epic
	err := s.mutate(actor, func(m *mutation) error {
		e, ok := s.epics[id]
		if !ok {
			return fmt.Errorf("%w: epic %q not found", ErrNotFound, id)
		}
		if e.Status == EpicDeleted {
			out = cloneEpic(e)
			return nil
		}
		if err := ValidateEpicTransition(e.Status, EpicDeleted); err != nil {
			return err
		}

		from := e.Status
		e.Status = EpicDeleted
		t := m.now
		e.DeletedAt = &t
		e.UpdatedAt = m.now
		out = cloneEpic(e)
		m.record(KindEpic, OpUpdate, e.ID, e.BoardID, []FieldChange{{Field: FieldStatus, From: string(from), To: string(EpicDeleted)}}, out)

		for _, itemID := range s.sortedItemIDsLocked() {
			it := s.items[itemID]
			if it.EpicID != e.ID {
				continue
			}
			prev := it.Epic
			it.EpicID, it.Epic = "", ""
			s.touchItemLocked(m, it, FieldChange{Field: FieldEpic, From: prev, To: ""})
		}

		for _, sp := range s.sortedSprintsLocked() {
			kept := sp.EpicIDs[:0:0]
			for _, eid := range sp.EpicIDs {
				if eid != e.ID {
					kept = append(kept, eid)
				}
			}
			if len(kept) == len(sp.EpicIDs) {
				continue
			}
			sp.EpicIDs = kept
			sp.UpdatedAt = m.now
			m.record(KindSprint, OpUpdate, sp.ID, sp.BoardID, nil, cloneSprint(sp))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RestoreEpic brings a deleted epic back to active. Items detached by the
// delete stay detached.
func (s *Store) RestoreEpic(id, actor string) (*Epic, error) {
	id = strings.TrimSpace(id)
	var out Epic
	err := s.mutate(actor, func(m *mutation) error {
		e, ok := s.epics[id]
		if !ok {
			return fmt.Errorf("%w: epic %q not found", ErrNotFound, id)
		}
		if e.Status != EpicDeleted {
			return fmt.Errorf("%w: epic %q is %s, not deleted", ErrInvalidStateTransition, id, e.Status)
		}
		e.Status = EpicActive
		e.DeletedAt = nil
		e.UpdatedAt = m.now
		out = cloneEpic(e)
		m.record(KindEpic, OpUpdate, e.ID, e.BoardID, []FieldChange{{Field: FieldStatus, From: string(EpicDeleted), To: string(EpicActive)}}, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
