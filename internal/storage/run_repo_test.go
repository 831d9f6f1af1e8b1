package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestRepo(t *testing.T) (*RunRepo, *sql.DB) {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewRunRepo(db), db
}

func TestRunRepo_CreateAndGet(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	run := Run{
		ID:            "run-1",
		Collection:    "health_assistant",
		InputDir:      "/data/pdfs",
		IndexVersion:  "abc123",
		StartedAt:     started,
		FinishedAt:    started.Add(90 * time.Second),
		Discovered:    3,
		Indexed:       1,
		Partial:       1,
		Failed:        1,
		ChunksStored:  7,
		ChunksSkipped: 1,
	}
	docs := []RunDocument{
		{DocumentID: "b.pdf", RelPath: "b.pdf", Outcome: "failed", Reason: "extraction_failed", Error: "bad xref"},
		{DocumentID: "guides_a.pdf", RelPath: "guides/a.pdf", Category: "guides", Outcome: "indexed", TotalChunks: 4, Stored: 4},
		{DocumentID: "c.pdf", RelPath: "c.pdf", Outcome: "partial", TotalChunks: 4, Stored: 3, Skipped: 1},
	}

	if err := repo.Create(ctx, run, docs); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Collection != run.Collection || got.ChunksStored != 7 || got.Partial != 1 {
		t.Errorf("Get() = %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("Get() StartedAt = %v, want %v", got.StartedAt, started)
	}

	gotDocs, err := repo.Documents(ctx, "run-1")
	if err != nil {
		t.Fatalf("Documents() error = %v", err)
	}
	if len(gotDocs) != 3 {
		t.Fatalf("Documents() returned %d, want 3", len(gotDocs))
	}
	if gotDocs[0].DocumentID != "b.pdf" || gotDocs[0].Error != "bad xref" {
		t.Errorf("Documents()[0] = %+v", gotDocs[0])
	}
	if gotDocs[2].DocumentID != "guides_a.pdf" || gotDocs[2].Category != "guides" || gotDocs[2].RunID != "run-1" {
		t.Errorf("Documents()[2] = %+v", gotDocs[2])
	}
}

func TestRunRepo_Get_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestRunRepo_Create_RollsBack(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()

	// Duplicate document ids violate the primary key.
	docs := []RunDocument{{DocumentID: "a.pdf"}, {DocumentID: "a.pdf"}}
	if err := repo.Create(ctx, Run{ID: "run-x", StartedAt: time.Now(), FinishedAt: time.Now()}, docs); err == nil {
		t.Fatal("Create() expected error for duplicate documents")
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("runs count = %d, want 0 after rollback", count)
	}
}

func TestRunRepo_List(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		started := base.Add(time.Duration(i) * time.Hour)
		if err := repo.Create(ctx, Run{ID: id, StartedAt: started, FinishedAt: started}, nil); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	runs, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "third" || runs[1].ID != "second" {
		t.Errorf("List() = %+v", runs)
	}

	runs, err = repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 3 {
		t.Errorf("List(0) returned %d runs, want 3", len(runs))
	}
}
