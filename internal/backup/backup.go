// Package backup snapshots the SQLite database with VACUUM INTO and prunes
// old snapshots by count.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// snapshotPattern matches snapshot filenames: lineup-YYYYMMDD-HHMMSS.db
var snapshotPattern = regexp.MustCompile(`^lineup-\d{8}-\d{6}\.db$`)

// Snapshot describes one backup file.
type Snapshot struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Service manages database snapshots.
type Service struct {
	db        *sql.DB
	dir       string
	retention int
	logger    *slog.Logger
}

// NewService creates a backup service keeping at most retention snapshots.
func NewService(db *sql.DB, dir string, retention int, logger *slog.Logger) *Service {
	return &Service{
		db:        db,
		dir:       dir,
		retention: retention,
		logger:    logger.With(slog.String("component", "backup")),
	}
}

// Backup snapshots the database with VACUUM INTO and prunes snapshots
// beyond the retention count.
func (s *Service) Backup(ctx context.Context) (*Snapshot, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	now := time.Now().UTC()
	filename := fmt.Sprintf("lineup-%s.db", now.Format("20060102-150405"))
	dest := filepath.Join(s.dir, filename)

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return nil, fmt.Errorf("VACUUM INTO: %w", err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("stat backup file: %w", err)
	}
	s.logger.Info("backup complete",
		slog.String("filename", filename),
		slog.Int64("size", info.Size()))

	if err := s.prune(); err != nil {
		s.logger.Warn("pruning snapshots failed", slog.String("error", err.Error()))
	}

	return &Snapshot{Filename: filename, Size: info.Size(), CreatedAt: now}, nil
}

// List returns snapshots sorted newest first.
func (s *Service) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var snapshots []Snapshot
	for _, entry := range entries {
		if entry.IsDir() || !snapshotPattern.MatchString(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(entry.Name(), "lineup-"), ".db")
		ts, err := time.Parse("20060102-150405", stamp)
		if err != nil {
			ts = info.ModTime().UTC()
		}
		snapshots = append(snapshots, Snapshot{
			Filename:  entry.Name(),
			Size:      info.Size(),
			CreatedAt: ts,
		})
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})
	return snapshots, nil
}

// prune removes snapshots beyond the retention count, oldest first.
func (s *Service) prune() error {
	if s.retention < 1 {
		return nil
	}
	snapshots, err := s.List()
	if err != nil {
		return err
	}
	for _, snap := range snapshots[min(s.retention, len(snapshots)):] {
		path := filepath.Join(s.dir, snap.Filename)
		if err := os.Remove(path); err != nil {
			s.logger.Warn("removing old snapshot failed",
				slog.String("filename", snap.Filename),
				slog.String("error", err.Error()))
			continue
		}
		s.logger.Info("pruned old snapshot", slog.String("filename", snap.Filename))
	}
	return nil
}
