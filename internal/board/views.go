package board

import (
	"fmt"
	"sort"
	"strings"
)

// SaveView creates v when v.ID is empty and updates it otherwise. Only the
// owner may update a view. Marking a view default clears the owner's other
// defaults.
func (s *Store) SaveView(v SavedView) (*SavedView, error) {
	v.Owner = strings.TrimSpace(v.Owner)
	v.Name = strings.TrimSpace(v.Name)
	v.ID = strings.TrimSpace(v.ID)
	if v.Owner == "" {
		return nil, fmt.Errorf("%w: view owner is required", ErrInvalidInput)
	}
	if v.Name == "" {
		return nil, fmt.Errorf("%w: view name is required", ErrInvalidInput)
	}
	if v.Visibility == "" {
		v.Visibility = VisibilityPrivate
	}
	if !IsValidVisibility(v.Visibility) {
		return nil, fmt.Errorf("%w: unknown visibility %q", ErrInvalidInput, v.Visibility)
	}
	for _, st := range v.Filter.Statuses {
		if !IsValidItemStatus(st) {
			return nil, fmt.Errorf("%w: unknown status %q in filter", ErrInvalidInput, st)
		}
	}
	for _, p := range v.Filter.Priorities {
		if !IsValidPriority(p) {
			return nil, fmt.Errorf("%w: unknown priority %q in filter", ErrInvalidInput, p)
		}
	}

	var out SavedView
	err := s.mutate(v.Owner, func(m *mutation) error {
		op := OpCreate
		if v.ID != "" {
			cur, ok := s.views[v.ID]
			if !ok {
				return fmt.Errorf("%w: view %q not found", ErrNotFound, v.ID)
			}
			if cur.Owner != v.Owner {
				return fmt.Errorf("%w: view %q belongs to %s", ErrInvalidInput, v.ID, cur.Owner)
			}
			v.CreatedAt = cur.CreatedAt
			op = OpUpdate
		} else {
			v.ID = s.allocID("", func(id string) bool { return s.views[id] != nil })
			v.CreatedAt = m.now
		}
		v.UpdatedAt = m.now

		if v.Default {
			for _, other := range s.views {
				if other.ID == v.ID || other.Owner != v.Owner || !other.Default {
					continue
				}
				other.Default = false
				other.UpdatedAt = m.now
				m.record(KindView, OpUpdate, other.ID, "", nil, cloneView(other))
			}
		}

		stored := cloneView(&v)
		s.views[v.ID] = &stored
		out = cloneView(&stored)
		m.record(KindView, op, v.ID, "", nil, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) DeleteView(id, owner string) error {
	id = strings.TrimSpace(id)
	owner = strings.TrimSpace(owner)
	return s.mutate(owner, func(m *mutation) error {
		v, ok := s.views[id]
		if !ok {
			return fmt.Errorf("%w: view %q not found", ErrNotFound, id)
		}
		if v.Owner != owner {
			return fmt.Errorf("%w: view %q belongs to %s", ErrInvalidInput, id, v.Owner)
		}
		delete(s.views, id)
		m.record(KindView, OpDelete, id, "", nil, cloneView(v))
		return nil
	})
}

// ListViews returns the owner's views plus group views shared by others.
// Pinned views come first, then by name.
func (s *Store) ListViews(owner string) []SavedView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SavedView, 0)
	for _, v := range s.views {
		if v.Owner != owner && v.Visibility != VisibilityGroup {
			continue
		}
		out = append(out, cloneView(v))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// DefaultView returns the owner's default view, if any.
func (s *Store) DefaultView(owner string) (*SavedView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.views {
		if v.Owner == owner && v.Default {
			c := cloneView(v)
			return &c, true
		}
	}
	return nil, false
}
