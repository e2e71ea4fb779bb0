package board_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satyaki-up/sprintboard/internal/board"
)

func newTestStore(t *testing.T) *board.Store {
	t.Helper()
	clock := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	seq := 0
	return board.NewStore(
		board.WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
		board.WithIDGenerator(func(prefix string) string {
			seq++
			if prefix == "" {
				prefix = "id"
			}
			return fmt.Sprintf("%s-%d", prefix, seq)
		}),
	)
}

func mustEpic(t *testing.T, s *board.Store, name string) *board.Epic {
	t.Helper()
	e, err := s.CreateEpic(board.EpicInput{Name: name, Ease: 5, Impact: 5, Confidence: 5})
	require.NoError(t, err)
	return e
}

func mustItem(t *testing.T, s *board.Store, in board.ItemInput) *board.WorkItem {
	t.Helper()
	if in.Reporter == "" {
		in.Reporter = "alice"
	}
	it, err := s.CreateItem(in)
	require.NoError(t, err)
	return it
}

func TestICEScoreRecompute(t *testing.T) {
	s := newTestStore(t)
	e, err := s.CreateEpic(board.EpicInput{Name: "Checkout", Ease: 4, Impact: 6, Confidence: 8})
	require.NoError(t, err)
	assert.Equal(t, 6.0, e.ICEScore)
	assert.Equal(t, board.EpicActive, e.Status)

	impact := 10
	e, err = s.UpdateEpic(e.ID, board.EpicPatch{Impact: &impact})
	require.NoError(t, err)
	assert.Equal(t, 7.33, e.ICEScore)
}

func TestCreateEpicRejectsOutOfRangeInputs(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateEpic(board.EpicInput{Name: "x", Ease: 0, Impact: 5, Confidence: 5})
	require.ErrorIs(t, err, board.ErrInvalidInput)
	_, err = s.CreateEpic(board.EpicInput{Name: "x", Ease: 5, Impact: 11, Confidence: 5})
	require.ErrorIs(t, err, board.ErrInvalidInput)
	assert.Empty(t, s.ListEpics("", true))
}

func TestDeleteEpicDetachesItems(t *testing.T) {
	s := newTestStore(t)
	e := mustEpic(t, s, "Payments")
	a := mustItem(t, s, board.ItemInput{Title: "A", EpicID: e.ID})
	b := mustItem(t, s, board.ItemInput{Title: "B", EpicID: e.ID})
	c := mustItem(t, s, board.ItemInput{Title: "C"})
	require.Equal(t, "Payments", a.Epic)

	deleted, err := s.DeleteEpic(e.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, board.EpicDeleted, deleted.Status)
	require.NotNil(t, deleted.DeletedAt)

	for _, id := range []string{a.ID, b.ID} {
		it, err := s.GetItem(id)
		require.NoError(t, err)
		assert.Empty(t, it.EpicID)
		assert.Empty(t, it.Epic)
		assert.Equal(t, int64(2), it.Version)
	}
	untouched, err := s.GetItem(c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), untouched.Version)
	assert.Len(t, s.ListItems("", board.ViewFilter{}), 3)
}

func TestRestoreEpicDoesNotReattach(t *testing.T) {
	s := newTestStore(t)
	e := mustEpic(t, s, "Search")
	a := mustItem(t, s, board.ItemInput{Title: "A", EpicID: e.ID})

	_, err := s.DeleteEpic(e.ID, "alice")
	require.NoError(t, err)
	restored, err := s.RestoreEpic(e.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, board.EpicActive, restored.Status)
	assert.Nil(t, restored.DeletedAt)

	it, err := s.GetItem(a.ID)
	require.NoError(t, err)
	assert.Empty(t, it.EpicID)

	_, err = s.RestoreEpic(e.ID, "alice")
	require.ErrorIs(t, err, board.ErrInvalidStateTransition)
}

func TestEpicStatusMachine(t *testing.T) {
	s := newTestStore(t)
	e := mustEpic(t, s, "Onboarding")

	got, err := s.UpdateEpicStatus(e.ID, board.EpicOnHold, "alice")
	require.NoError(t, err)
	assert.Equal(t, board.EpicOnHold, got.Status)

	got, err = s.UpdateEpicStatus(e.ID, board.EpicArchived, "alice")
	require.NoError(t, err)
	require.NotNil(t, got.ArchivedAt)

	_, err = s.UpdateEpicStatus(e.ID, board.EpicActive, "alice")
	require.ErrorIs(t, err, board.ErrInvalidStateTransition)

	_, err = s.UpdateEpicStatus(e.ID, "bogus", "alice")
	require.ErrorIs(t, err, board.ErrInvalidInput)
}

func TestUpdateEpicStatusDeletedDetaches(t *testing.T) {
	s := newTestStore(t)
	e := mustEpic(t, s, "Reports")
	a := mustItem(t, s, board.ItemInput{Title: "A", EpicID: e.ID})

	_, err := s.UpdateEpicStatus(e.ID, board.EpicDeleted, "alice")
	require.NoError(t, err)
	it, err := s.GetItem(a.ID)
	require.NoError(t, err)
	assert.Empty(t, it.EpicID)
}

func TestSaveSprintPullsInEpicItems(t *testing.T) {
	s := newTestStore(t)
	sp, err := s.SaveSprint(board.SprintInput{Name: "Sprint 1"})
	require.NoError(t, err)
	assert.Equal(t, 1, sp.Number)
	assert.Equal(t, board.SprintPlanned, sp.State)

	e := mustEpic(t, s, "Billing")
	a := mustItem(t, s, board.ItemInput{Title: "A", EpicID: e.ID})
	other := mustItem(t, s, board.ItemInput{Title: "unrelated"})

	sp, err = s.SaveSprint(board.SprintInput{ID: sp.ID, Name: "Sprint 1", EpicIDs: []string{e.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{e.ID}, sp.EpicIDs)

	got, err := s.GetItem(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sprint 1", got.Sprint)
	assert.Equal(t, sp.ID, got.SprintID)

	got, err = s.GetItem(other.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Sprint)
}

func TestSaveSprintOnlyCascadesNewlyAddedEpics(t *testing.T) {
	s := newTestStore(t)
	e := mustEpic(t, s, "Billing")
	sp, err := s.SaveSprint(board.SprintInput{Name: "Sprint 1", EpicIDs: []string{e.ID}})
	require.NoError(t, err)

	// An item added to the epic after the sprint was saved is not pulled in
	// by a save that does not newly add the epic.
	late := mustItem(t, s, board.ItemInput{Title: "late", EpicID: e.ID})
	_, err = s.SaveSprint(board.SprintInput{ID: sp.ID, Name: "Sprint 1", EpicIDs: []string{e.ID}, Goal: "ship"})
	require.NoError(t, err)

	got, err := s.GetItem(late.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Sprint)
}

func TestSaveSprintValidatesBeforeMutating(t *testing.T) {
	s := newTestStore(t)
	var changes []board.Change
	s.Subscribe(func(c board.Change) { changes = append(changes, c) })

	_, err := s.SaveSprint(board.SprintInput{Name: "   "})
	require.ErrorIs(t, err, board.ErrInvalidInput)

	_, err = s.SaveSprint(board.SprintInput{Name: "Sprint 1", EpicIDs: []string{"ep-missing"}})
	require.ErrorIs(t, err, board.ErrInvalidInput)

	assert.Empty(t, changes)
	assert.Empty(t, s.ListSprints("", true))

	_, err = s.SaveSprint(board.SprintInput{Name: "Sprint 1"})
	require.NoError(t, err)
	_, err = s.SaveSprint(board.SprintInput{Name: "Sprint 1"})
	require.ErrorIs(t, err, board.ErrConflict)
}

func TestSprintNumbersAreMonotonicPerBoard(t *testing.T) {
	s := newTestStore(t)
	a, err := s.SaveSprint(board.SprintInput{BoardID: "web", Name: "W1"})
	require.NoError(t, err)
	b, err := s.SaveSprint(board.SprintInput{BoardID: "web", Name: "W2"})
	require.NoError(t, err)
	c, err := s.SaveSprint(board.SprintInput{BoardID: "mobile", Name: "M1"})
	require.NoError(t, err)
	_, err = s.DeleteSprint(b.ID, board.DeletePolicy{}, "alice")
	require.NoError(t, err)
	d, err := s.SaveSprint(board.SprintInput{BoardID: "web", Name: "W3"})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 1, 3}, []int{a.Number, b.Number, c.Number, d.Number})
}

func TestDeleteSprintUnassigns(t *testing.T) {
	s := newTestStore(t)
	sp, err := s.SaveSprint(board.SprintInput{Name: "Sprint 1"})
	require.NoError(t, err)
	sp2, err := s.SaveSprint(board.SprintInput{Name: "Sprint 2"})
	require.NoError(t, err)
	a := mustItem(t, s, board.ItemInput{Title: "A", SprintID: sp.ID})
	b := mustItem(t, s, board.ItemInput{Title: "B", SprintID: sp2.ID})

	deleted, err := s.DeleteSprint(sp.ID, board.DeletePolicy{}, "alice")
	require.NoError(t, err)
	assert.Equal(t, board.SprintDeleted, deleted.State)

	got, err := s.GetItem(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "", got.Sprint)
	assert.Equal(t, "", got.SprintID)

	gotB, err := s.GetItem(b.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(b, gotB); diff != "" {
		t.Fatalf("unrelated item changed (-want +got):\n%s", diff)
	}
}

func TestReferencesMustStayOnTheSameBoard(t *testing.T) {
	s := newTestStore(t)
	epic, err := s.CreateEpic(board.EpicInput{BoardID: "x", Name: "E", Ease: 5, Impact: 5, Confidence: 5})
	require.NoError(t, err)
	a := mustItem(t, s, board.ItemInput{BoardID: "x", Title: "A", EpicID: epic.ID})
	xSprint, err := s.SaveSprint(board.SprintInput{BoardID: "x", Name: "Sprint 1"})
	require.NoError(t, err)
	ySprint, err := s.SaveSprint(board.SprintInput{BoardID: "y", Name: "Sprint 1"})
	require.NoError(t, err)

	// Attaching another board's epic is rejected before anything changes.
	_, err = s.SaveSprint(board.SprintInput{ID: ySprint.ID, Name: "Sprint 1", EpicIDs: []string{epic.ID}})
	require.ErrorIs(t, err, board.ErrInvalidInput)
	_, err = s.SaveSprint(board.SprintInput{BoardID: "y", Name: "Sprint 2", EpicIDs: []string{epic.ID}})
	require.ErrorIs(t, err, board.ErrInvalidInput)
	got, err := s.GetItem(a.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(a, got); diff != "" {
		t.Fatalf("item changed by rejected save (-want +got):\n%s", diff)
	}
	assert.Len(t, s.ListSprints("y", true), 1)

	yID := ySprint.ID
	_, err = s.UpdateItem(a.ID, board.ItemPatch{Actor: "alice", SprintID: &yID}, nil)
	require.ErrorIs(t, err, board.ErrInvalidInput)
	_, err = s.CreateItem(board.ItemInput{BoardID: "y", Title: "B", Reporter: "alice", EpicID: epic.ID})
	require.ErrorIs(t, err, board.ErrInvalidInput)
	_, err = s.CreateItem(board.ItemInput{BoardID: "x", Title: "C", Reporter: "alice", SprintID: ySprint.ID})
	require.ErrorIs(t, err, board.ErrInvalidInput)
	_, err = s.DeleteSprint(xSprint.ID, board.DeletePolicy{ReassignTo: ySprint.ID}, "alice")
	require.ErrorIs(t, err, board.ErrInvalidInput)

	// Same-named sprints on other boards are not touched by a delete.
	xID := xSprint.ID
	_, err = s.UpdateItem(a.ID, board.ItemPatch{Actor: "alice", SprintID: &xID}, nil)
	require.NoError(t, err)
	_, err = s.DeleteSprint(ySprint.ID, board.DeletePolicy{}, "alice")
	require.NoError(t, err)
	got, err = s.GetItem(a.ID)
	require.NoError(t, err)
	assert.Equal(t, xSprint.ID, got.SprintID)
	assert.Equal(t, "Sprint 1", got.Sprint)
}

func TestDeleteSprintReassigns(t *testing.T) {
	s := newTestStore(t)
	from, err := s.SaveSprint(board.SprintInput{Name: "Sprint 1"})
	require.NoError(t, err)
	to, err := s.SaveSprint(board.SprintInput{Name: "Sprint 2"})
	require.NoError(t, err)
	a := mustItem(t, s, board.ItemInput{Title: "A", SprintID: from.ID})

	_, err = s.DeleteSprint(from.ID, board.DeletePolicy{ReassignTo: from.ID}, "alice")
	require.ErrorIs(t, err, board.ErrInvalidInput)

	_, err = s.DeleteSprint(from.ID, board.DeletePolicy{ReassignTo: to.ID}, "alice")
	require.NoError(t, err)

	got, err := s.GetItem(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sprint 2", got.Sprint)
	assert.Equal(t, to.ID, got.SprintID)
}

func TestSprintStateMachineAndRestore(t *testing.T) {
	s := newTestStore(t)
	sp, err := s.SaveSprint(board.SprintInput{Name: "Sprint 1"})
	require.NoError(t, err)

	_, err = s.UpdateSprintState(sp.ID, board.SprintClosed, "alice")
	require.ErrorIs(t, err, board.ErrInvalidStateTransition)

	got, err := s.UpdateSprintState(sp.ID, board.SprintActive, "alice")
	require.NoError(t, err)
	assert.Equal(t, board.SprintActive, got.State)

	_, err = s.RestoreSprint(sp.ID, "alice")
	require.ErrorIs(t, err, board.ErrInvalidStateTransition)

	_, err = s.UpdateSprintState(sp.ID, board.SprintDeleted, "alice")
	require.NoError(t, err)

	got, err = s.RestoreSprint(sp.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, board.SprintPlanned, got.State)
}

func TestSelectableSprints(t *testing.T) {
	s := newTestStore(t)
	team, err := s.CreateTeam("core", []string{"bob"}, "alice")
	require.NoError(t, err)

	open, err := s.SaveSprint(board.SprintInput{Name: "Open"})
	require.NoError(t, err)
	closed, err := s.SaveSprint(board.SprintInput{Name: "Closed"})
	require.NoError(t, err)
	_, err = s.UpdateSprintState(closed.ID, board.SprintActive, "alice")
	require.NoError(t, err)
	_, err = s.UpdateSprintState(closed.ID, board.SprintClosed, "alice")
	require.NoError(t, err)
	gone, err := s.SaveSprint(board.SprintInput{Name: "Gone"})
	require.NoError(t, err)
	_, err = s.DeleteSprint(gone.ID, board.DeletePolicy{}, "alice")
	require.NoError(t, err)
	private, err := s.SaveSprint(board.SprintInput{Name: "Team only", TeamID: team.ID})
	require.NoError(t, err)

	names := func(list []board.Sprint) []string {
		var out []string
		for _, sp := range list {
			out = append(out, sp.Name)
		}
		return out
	}

	assert.Equal(t, []string{open.Name}, names(s.SelectableSprints("carol", board.SprintFilter{})))
	assert.Equal(t, []string{open.Name, private.Name}, names(s.SelectableSprints("bob", board.SprintFilter{})))
	assert.Equal(t, []string{open.Name, closed.Name, private.Name}, names(s.SelectableSprints("alice", board.SprintFilter{IncludeClosed: true})))
}

func TestUpdateItemVersioning(t *testing.T) {
	s := newTestStore(t)
	it := mustItem(t, s, board.ItemInput{Title: "A"})
	require.Equal(t, int64(1), it.Version)

	status := board.ItemInProgress
	expected := it.Version
	updated, err := s.UpdateItem(it.ID, board.ItemPatch{Actor: "alice", Status: &status}, &expected)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.True(t, updated.UpdatedAt.After(it.UpdatedAt))

	_, err = s.UpdateItem(it.ID, board.ItemPatch{Actor: "alice", Status: &status}, &expected)
	require.ErrorIs(t, err, board.ErrConflict)

	// A no-op edit leaves the version alone.
	same, err := s.UpdateItem(it.ID, board.ItemPatch{Actor: "alice", Status: &status}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), same.Version)
}

func TestUpdateItemRejectsDeletedEpic(t *testing.T) {
	s := newTestStore(t)
	e := mustEpic(t, s, "Old")
	_, err := s.DeleteEpic(e.ID, "alice")
	require.NoError(t, err)
	it := mustItem(t, s, board.ItemInput{Title: "A"})

	_, err = s.UpdateItem(it.ID, board.ItemPatch{EpicID: &e.ID}, nil)
	require.ErrorIs(t, err, board.ErrInvalidInput)
	_, err = s.CreateItem(board.ItemInput{Title: "B", Reporter: "alice", EpicID: e.ID})
	require.ErrorIs(t, err, board.ErrInvalidInput)
}

func TestUpdateItemEmitsFieldDiffsAndAssigneeNotification(t *testing.T) {
	s := newTestStore(t)
	it := mustItem(t, s, board.ItemInput{Title: "A"})

	var changes []board.Change
	cancel := s.Subscribe(func(c board.Change) { changes = append(changes, c) })
	defer cancel()

	assignee := "bob"
	status := board.ItemInReview
	_, err := s.UpdateItem(it.ID, board.ItemPatch{Actor: "alice", Assignee: &assignee, Status: &status}, nil)
	require.NoError(t, err)

	require.Len(t, changes, 2)
	assert.Equal(t, board.KindItem, changes[0].Kind)
	assert.Equal(t, []board.FieldChange{
		{Field: board.FieldStatus, From: "backlog", To: "in_review"},
		{Field: board.FieldAssignee, From: "", To: "bob"},
	}, changes[0].Fields)
	assert.Equal(t, "alice", changes[0].Actor)
	assert.Equal(t, board.KindNotification, changes[1].Kind)

	notes := s.ListNotifications("bob", true)
	require.Len(t, notes, 1)
	_, err = s.MarkRead(notes[0].ID)
	require.NoError(t, err)
	assert.Empty(t, s.ListNotifications("bob", true))
	assert.Len(t, s.ListNotifications("bob", false), 1)
}

func TestCommentsAndWatchers(t *testing.T) {
	s := newTestStore(t)
	it := mustItem(t, s, board.ItemInput{Title: "A", Watchers: []string{"bob", " bob ", ""}})
	assert.Equal(t, []string{"bob"}, it.Watchers)

	it, err := s.Watch(it.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, it.Watchers)

	it, err = s.Unwatch(it.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, it.Watchers)

	it, err = s.AddComment(it.ID, "carol", "looks good")
	require.NoError(t, err)
	require.Len(t, it.Comments, 1)
	assert.Equal(t, int64(4), it.Version)

	_, err = s.AddComment(it.ID, "carol", "  ")
	require.ErrorIs(t, err, board.ErrInvalidInput)
}

func TestSavedViewsSingleDefault(t *testing.T) {
	s := newTestStore(t)
	first, err := s.SaveView(board.SavedView{Owner: "alice", Name: "Mine", Default: true})
	require.NoError(t, err)
	second, err := s.SaveView(board.SavedView{Owner: "alice", Name: "Bugs", Default: true, Pinned: true})
	require.NoError(t, err)
	_, err = s.SaveView(board.SavedView{Owner: "bob", Name: "Team", Visibility: board.VisibilityGroup})
	require.NoError(t, err)
	_, err = s.SaveView(board.SavedView{Owner: "bob", Name: "Secret"})
	require.NoError(t, err)

	def, ok := s.DefaultView("alice")
	require.True(t, ok)
	assert.Equal(t, second.ID, def.ID)

	views := s.ListViews("alice")
	require.Len(t, views, 3)
	assert.Equal(t, "Bugs", views[0].Name)
	assert.False(t, views[1].Default)
	assert.Equal(t, first.ID, views[1].ID)
	assert.Equal(t, "Team", views[2].Name)

	err = s.DeleteView(first.ID, "bob")
	require.ErrorIs(t, err, board.ErrInvalidInput)
	require.NoError(t, s.DeleteView(first.ID, "alice"))
	assert.Len(t, s.ListViews("alice"), 2)
}

func TestViewFilterAppliesToListItems(t *testing.T) {
	s := newTestStore(t)
	mustItem(t, s, board.ItemInput{Title: "Fix login", Assignee: "bob", Priority: board.PriorityHigh})
	mustItem(t, s, board.ItemInput{Title: "Add logout", Assignee: "carol"})

	got := s.ListItems("", board.ViewFilter{Text: "LOGIN"})
	require.Len(t, got, 1)
	assert.Equal(t, "Fix login", got[0].Title)

	got = s.ListItems("", board.ViewFilter{Priorities: []board.Priority{board.PriorityMedium}})
	require.Len(t, got, 1)
	assert.Equal(t, "carol", got[0].Assignee)
}

func TestInvites(t *testing.T) {
	s := newTestStore(t)
	team, err := s.CreateTeam("core", nil, "alice")
	require.NoError(t, err)

	_, err = s.Invite(team.ID, "bob", "mallory")
	require.ErrorIs(t, err, board.ErrInvalidInput)

	inv, err := s.Invite(team.ID, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, board.InvitePending, inv.State)
	_, err = s.Invite(team.ID, "bob", "alice")
	require.ErrorIs(t, err, board.ErrConflict)
	assert.Len(t, s.ListNotifications("bob", true), 1)

	inv, err = s.RespondInvite(inv.ID, true)
	require.NoError(t, err)
	assert.Equal(t, board.InviteAccepted, inv.State)
	assert.True(t, s.IsMember(team.ID, "bob"))

	_, err = s.RespondInvite(inv.ID, false)
	require.ErrorIs(t, err, board.ErrInvalidStateTransition)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	e, err := s.CreateEpic(board.EpicInput{BoardID: "web", Name: "E", Ease: 5, Impact: 5, Confidence: 5})
	require.NoError(t, err)
	sp, err := s.SaveSprint(board.SprintInput{BoardID: "web", Name: "S1", EpicIDs: []string{e.ID}})
	require.NoError(t, err)
	mustItem(t, s, board.ItemInput{BoardID: "web", Title: "A", EpicID: e.ID, SprintID: sp.ID})

	snap := s.Snapshot()
	restored := newTestStore(t)
	restored.Restore(snap)
	if diff := cmp.Diff(snap, restored.Snapshot()); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}

	next, err := restored.SaveSprint(board.SprintInput{BoardID: "web", Name: "S2"})
	require.NoError(t, err)
	assert.Equal(t, 2, next.Number)
}
