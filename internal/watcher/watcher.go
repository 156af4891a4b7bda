// Package watcher runs lineup resolution for schedule exports dropped into
// an inbox directory. A file named <event-id>.csv (or .tsv) triggers one
// pipeline run for that event once writes to it have quieted down.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RunFunc resolves the lineup export at path for eventID.
type RunFunc func(ctx context.Context, eventID, path string) error

// Service watches an inbox directory and dispatches pipeline runs. Files
// already present at startup are processed too, so a restart never strands
// an export.
type Service struct {
	inbox    string
	run      RunFunc
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]time.Time // path -> last event time
}

// NewService creates an inbox watcher.
func NewService(inbox string, run RunFunc, logger *slog.Logger) *Service {
	return &Service{
		inbox:    inbox,
		run:      run,
		logger:   logger.With(slog.String("component", "inbox-watcher")),
		debounce: 2 * time.Second,
		pending:  make(map[string]time.Time),
	}
}

// SetDebounce overrides the default quiet period (for testing).
func (s *Service) SetDebounce(d time.Duration) {
	s.debounce = d
}

// Start blocks until ctx is canceled, watching the inbox for schedule
// exports. Writes are coalesced per file: a run fires only after the file
// has seen no events for the debounce interval, so partially written
// exports are not parsed.
func (s *Service) Start(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close() //nolint:errcheck

	if err := w.Add(s.inbox); err != nil {
		return err
	}
	s.logger.Info("inbox watcher starting", slog.String("inbox", s.inbox))

	s.sweepExisting()

	timer := time.NewTimer(s.debounce)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("inbox watcher stopping")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !isScheduleFile(ev.Name) {
				continue
			}
			s.mu.Lock()
			s.pending[ev.Name] = time.Now()
			s.mu.Unlock()
			resetTimer(timer, s.debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("fsnotify error", slog.String("error", err.Error()))

		case <-timer.C:
			s.dispatchQuiet(ctx)
			s.mu.Lock()
			remaining := len(s.pending)
			s.mu.Unlock()
			if remaining > 0 {
				resetTimer(timer, s.debounce)
			}
		}
	}
}

// sweepExisting queues schedule files already sitting in the inbox.
func (s *Service) sweepExisting() {
	entries, err := os.ReadDir(s.inbox)
	if err != nil {
		s.logger.Warn("reading inbox failed", slog.String("error", err.Error()))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e.IsDir() || !isScheduleFile(e.Name()) {
			continue
		}
		s.pending[filepath.Join(s.inbox, e.Name())] = time.Time{}
	}
}

// dispatchQuiet runs every pending file whose last event is older than the
// debounce interval. Processed files are renamed with a .done suffix so
// they are not picked up again.
func (s *Service) dispatchQuiet(ctx context.Context) {
	cutoff := time.Now().Add(-s.debounce)

	s.mu.Lock()
	var ready []string
	for path, last := range s.pending {
		if last.Before(cutoff) {
			ready = append(ready, path)
			delete(s.pending, path)
		}
	}
	s.mu.Unlock()

	for _, path := range ready {
		if ctx.Err() != nil {
			return
		}
		eventID := eventIDFromPath(path)
		s.logger.Info("processing inbox export",
			slog.String("path", path),
			slog.String("event_id", eventID))

		if err := s.run(ctx, eventID, path); err != nil {
			s.logger.Error("inbox run failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		if err := os.Rename(path, path+".done"); err != nil {
			s.logger.Warn("marking export done failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}
}

func isScheduleFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		return true
	}
	return false
}

// eventIDFromPath derives the event ID from the file name stem.
func eventIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
