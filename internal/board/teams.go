package board

import (
	"fmt"
	"sort"
	"strings"
)

func (s *Store) CreateTeam(name string, members []string, actor string) (*Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: team name is required", ErrInvalidInput)
	}
	var out Team
	err := s.mutate(actor, func(m *mutation) error {
		t := &Team{
			ID:        s.allocID("tm", func(id string) bool { return s.teams[id] != nil }),
			Name:      name,
			Members:   normalizeSet(append(append([]string{}, members...), actor)),
			CreatedAt: m.now,
		}
		s.teams[t.ID] = t
		out = cloneTeam(t)
		m.record(KindTeam, OpCreate, t.ID, "", nil, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) GetTeam(id string) (*Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[strings.TrimSpace(id)]
	if !ok {
		return nil, fmt.Errorf("%w: team %q not found", ErrNotFound, id)
	}
	c := cloneTeam(t)
	return &c, nil
}

func (s *Store) IsMember(teamID, user string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isMemberLocked(teamID, user)
}

func (s *Store) isMemberLocked(teamID, user string) bool {
	t, ok := s.teams[teamID]
	if !ok || user == "" {
		return false
	}
	i := sort.SearchStrings(t.Members, user)
	return i < len(t.Members) && t.Members[i] == user
}

// Invite records a pending invite. The inviter must already be a member.
func (s *Store) Invite(teamID, invitee, invitedBy string) (*Invite, error) {
	teamID = strings.TrimSpace(teamID)
	invitee = strings.TrimSpace(invitee)
	invitedBy = strings.TrimSpace(invitedBy)
	if invitee == "" {
		return nil, fmt.Errorf("%w: invitee is required", ErrInvalidInput)
	}
	var out Invite
	err := s.mutate(invitedBy, func(m *mutation) error {
		if _, ok := s.teams[teamID]; !ok {
			return fmt.Errorf("%w: team %q not found", ErrNotFound, teamID)
		}
		if !s.isMemberLocked(teamID, invitedBy) {
			return fmt.Errorf("%w: %s is not a member of team %s", ErrInvalidInput, invitedBy, teamID)
		}
		if s.isMemberLocked(teamID, invitee) {
			return fmt.Errorf("%w: %s is already a member", ErrConflict, invitee)
		}
		for _, inv := range s.invites {
			if inv.TeamID == teamID && inv.Invitee == invitee && inv.State == InvitePending {
				return fmt.Errorf("%w: %s already has a pending invite", ErrConflict, invitee)
			}
		}
		inv := &Invite{
			ID:        s.allocID("", func(id string) bool { return s.invites[id] != nil }),
			TeamID:    teamID,
			Invitee:   invitee,
			InvitedBy: invitedBy,
			State:     InvitePending,
			CreatedAt: m.now,
			UpdatedAt: m.now,
		}
		s.invites[inv.ID] = inv
		out = *inv
		m.record(KindInvite, OpCreate, inv.ID, "", nil, out)
		s.notifyLocked(m, Notification{
			Recipient:  invitee,
			Actor:      invitedBy,
			EntityKind: KindTeam,
			EntityID:   teamID,
			Section:    "invites",
			Message:    fmt.Sprintf("%s invited you to join %s", invitedBy, s.teams[teamID].Name),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RespondInvite accepts or declines a pending invite. Accepting adds the
// invitee to the team.
func (s *Store) RespondInvite(id string, accept bool) (*Invite, error) {
	id = strings.TrimSpace(id)
	var out Invite
	s.mu.Lock()
	actor := ""
	if inv, ok := s.invites[id]; ok {
		actor = inv.Invitee
	}
	s.mu.Unlock()

	err := s.mutate(actor, func(m *mutation) error {
		inv, ok := s.invites[id]
		if !ok {
			return fmt.Errorf("%w: invite %q not found", ErrNotFound, id)
		}
		if inv.State != InvitePending {
			return fmt.Errorf("%w: invite %q is already %s", ErrInvalidStateTransition, id, inv.State)
		}
		team, ok := s.teams[inv.TeamID]
		if !ok {
			return fmt.Errorf("%w: team %q not found", ErrNotFound, inv.TeamID)
		}
		if accept {
			inv.State = InviteAccepted
			team.Members = normalizeSet(append(team.Members, inv.Invitee))
			m.record(KindTeam, OpUpdate, team.ID, "", nil, cloneTeam(team))
		} else {
			inv.State = InviteDeclined
		}
		inv.UpdatedAt = m.now
		out = *inv
		m.record(KindInvite, OpUpdate, inv.ID, "", nil, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) ListInvites(invitee string, pendingOnly bool) []Invite {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Invite, 0)
	for _, inv := range s.invites {
		if inv.Invitee != invitee {
			continue
		}
		if pendingOnly && inv.State != InvitePending {
			continue
		}
		out = append(out, *inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
