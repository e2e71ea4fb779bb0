package db_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/satyaki-up/sprintboard/internal/board"
	"github.com/satyaki-up/sprintboard/internal/db"
)

func newTestRepository(t *testing.T) *db.Repository {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "board.db")
	database, err := db.Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})
	return db.NewRepository(database)
}

func TestPersistedStoreReloadsIntegration(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	store := board.NewStore()
	cancel := store.Subscribe(repo.Persister(nil, 0))
	defer cancel()

	epic, err := store.CreateEpic(board.EpicInput{Name: "Checkout", Ease: 4, Impact: 6, Confidence: 8})
	if err != nil {
		t.Fatalf("create epic: %v", err)
	}
	item, err := store.CreateItem(board.ItemInput{Title: "Pay button", Reporter: "alice", EpicID: epic.ID})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	sprint, err := store.SaveSprint(board.SprintInput{Name: "Sprint 1", EpicIDs: []string{epic.ID}})
	if err != nil {
		t.Fatalf("save sprint: %v", err)
	}
	view, err := store.SaveView(board.SavedView{Owner: "alice", Name: "Mine"})
	if err != nil {
		t.Fatalf("save view: %v", err)
	}
	if err := store.DeleteView(view.ID, "alice"); err != nil {
		t.Fatalf("delete view: %v", err)
	}
	if _, err := store.DeleteSprint(sprint.ID, board.DeletePolicy{}, "alice"); err != nil {
		t.Fatalf("delete sprint: %v", err)
	}

	snap, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(store.Snapshot(), snap); diff != "" {
		t.Fatalf("reloaded snapshot mismatch (-want +got):\n%s", diff)
	}

	reloaded := board.NewStore()
	reloaded.Restore(snap)
	got, err := reloaded.GetItem(item.ID)
	if err != nil {
		t.Fatalf("get reloaded item: %v", err)
	}
	if got.Sprint != "" || got.EpicID != epic.ID {
		t.Fatalf("expected item in epic without sprint, got %+v", got)
	}
	if got.Version != 3 {
		t.Fatalf("expected version 3 after sprint pull-in and unassign, got %d", got.Version)
	}
}

func TestChangeLogIntegration(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	store := board.NewStore()
	cancel := store.Subscribe(repo.Persister(nil, 0))
	defer cancel()

	item, err := store.CreateItem(board.ItemInput{Title: "Docs", Reporter: "alice"})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if _, err := store.MoveItem(item.ID, board.ItemDone, "bob"); err != nil {
		t.Fatalf("move item: %v", err)
	}

	changes, err := repo.RecentChanges(ctx, board.KindItem, item.ID, 10)
	if err != nil {
		t.Fatalf("recent changes: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(changes))
	}
	latest := changes[0]
	if latest.Op != board.OpUpdate || latest.Actor != "bob" {
		t.Fatalf("unexpected latest change %+v", latest)
	}
	want := []board.FieldChange{{Field: "status", From: "backlog", To: "done"}}
	if diff := cmp.Diff(want, latest.Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	if changes[1].Op != board.OpCreate || len(changes[1].Fields) != 0 {
		t.Fatalf("unexpected create change %+v", changes[1])
	}
}
