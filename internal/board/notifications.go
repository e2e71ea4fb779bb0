package board

import (
	"fmt"
	"sort"
	"strings"
)

// Notify records a notification for n.Recipient.
func (s *Store) Notify(n Notification) (*Notification, error) {
	n.Recipient = strings.TrimSpace(n.Recipient)
	if n.Recipient == "" {
		return nil, fmt.Errorf("%w: recipient is required", ErrInvalidInput)
	}
	if strings.TrimSpace(n.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}
	var out Notification
	err := s.mutate(n.Actor, func(m *mutation) error {
		out = s.notifyLocked(m, n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) notifyLocked(m *mutation, n Notification) Notification {
	n.ID = s.allocID("", func(id string) bool { return s.notifications[id] != nil })
	n.Read = false
	n.CreatedAt = m.now
	stored := n
	s.notifications[n.ID] = &stored
	m.record(KindNotification, OpCreate, n.ID, "", nil, n)
	return n
}

// ListNotifications returns the recipient's notifications, newest first.
func (s *Store) ListNotifications(recipient string, unreadOnly bool) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, 0)
	for _, n := range s.notifications {
		if n.Recipient != recipient {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *Store) MarkRead(id string) (*Notification, error) {
	id = strings.TrimSpace(id)
	var out Notification
	err := s.mutate("", func(m *mutation) error {
		n, ok := s.notifications[id]
		if !ok {
			return fmt.Errorf("%w: notification %q not found", ErrNotFound, id)
		}
		out = *n
		if n.Read {
			return nil
		}
		n.Read = true
		out = *n
		m.record(KindNotification, OpUpdate, n.ID, "", nil, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
