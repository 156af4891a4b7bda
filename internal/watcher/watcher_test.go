package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type runRecorder struct {
	mu   sync.Mutex
	runs []string // event IDs in order
}

func (r *runRecorder) run(_ context.Context, eventID, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, eventID)
	return nil
}

func (r *runRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

func (r *runRecorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.runs) == 0 {
		return ""
	}
	return r.runs[len(r.runs)-1]
}

func testLogger() *slog.Logger {
	return slog.Default()
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestDroppedExportTriggersRun(t *testing.T) {
	inbox := t.TempDir()
	rec := &runRecorder{}

	svc := NewService(inbox, rec.run, testLogger())
	svc.SetDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Start(ctx) //nolint:errcheck
	time.Sleep(100 * time.Millisecond) // let watcher initialize

	path := filepath.Join(inbox, "summer-fest-2023.csv")
	if err := os.WriteFile(path, []byte("Artist\tStage\tStart\tEnd\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 2*time.Second, func() bool { return rec.count() == 1 })
	if got := rec.last(); got != "summer-fest-2023" {
		t.Errorf("event ID = %q, want summer-fest-2023", got)
	}

	// The processed file is renamed so it cannot trigger again.
	waitFor(t, 2*time.Second, func() bool {
		_, err := os.Stat(path + ".done")
		return err == nil
	})
}

func TestExistingExportProcessedAtStartup(t *testing.T) {
	inbox := t.TempDir()
	path := filepath.Join(inbox, "leftover.tsv")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := &runRecorder{}
	svc := NewService(inbox, rec.run, testLogger())
	svc.SetDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Start(ctx) //nolint:errcheck

	waitFor(t, 2*time.Second, func() bool { return rec.count() == 1 })
	if got := rec.last(); got != "leftover" {
		t.Errorf("event ID = %q, want leftover", got)
	}
}

func TestNonScheduleFilesIgnored(t *testing.T) {
	inbox := t.TempDir()
	rec := &runRecorder{}

	svc := NewService(inbox, rec.run, testLogger())
	svc.SetDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Start(ctx) //nolint:errcheck
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(inbox, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(200 * time.Millisecond)
	if rec.count() != 0 {
		t.Errorf("expected no runs, got %d", rec.count())
	}
}

func TestRapidWritesCoalesce(t *testing.T) {
	inbox := t.TempDir()
	rec := &runRecorder{}

	svc := NewService(inbox, rec.run, testLogger())
	svc.SetDebounce(100 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Start(ctx) //nolint:errcheck
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(inbox, "berlin-open-air.csv")
	for i := 0; i < 5; i++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.WriteString("row\n"); err != nil {
			t.Fatal(err)
		}
		f.Close()
		time.Sleep(20 * time.Millisecond)
	}

	waitFor(t, 2*time.Second, func() bool { return rec.count() >= 1 })
	time.Sleep(300 * time.Millisecond)
	if rec.count() != 1 {
		t.Errorf("expected a single coalesced run, got %d", rec.count())
	}
}
