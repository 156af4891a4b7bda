package backup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stagehand/lineup/internal/database"
)

func testService(t *testing.T, retention int) (*Service, string) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewService(db, dir, retention, logger), dir
}

func TestBackupAndList(t *testing.T) {
	svc, dir := testService(t, 5)

	snap, err := svc.Backup(context.Background())
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if snap.Size == 0 {
		t.Error("expected non-empty snapshot")
	}
	if _, err := os.Stat(filepath.Join(dir, snap.Filename)); err != nil {
		t.Errorf("snapshot file missing: %v", err)
	}

	snapshots, err := svc.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snapshots))
	}
	if snapshots[0].Filename != snap.Filename {
		t.Errorf("listed %q, want %q", snapshots[0].Filename, snap.Filename)
	}
}

func TestBackupPrunesBeyondRetention(t *testing.T) {
	svc, dir := testService(t, 2)

	// Seed older snapshots the prune pass should remove.
	for _, name := range []string{"lineup-20230101-000000.db", "lineup-20230102-000000.db"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := svc.Backup(context.Background()); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	snapshots, err := svc.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("expected 2 snapshots after prune, got %d", len(snapshots))
	}
	for _, snap := range snapshots {
		if snap.Filename == "lineup-20230101-000000.db" {
			t.Error("oldest snapshot survived pruning")
		}
	}
}

func TestListIgnoresForeignFiles(t *testing.T) {
	svc, dir := testService(t, 5)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	snapshots, err := svc.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snapshots) != 0 {
		t.Errorf("expected no snapshots, got %d", len(snapshots))
	}
}
