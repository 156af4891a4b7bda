package event

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is a festival edition the pipeline links artists to.
type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Year      int       `json:"year"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service provides event and event–artist link data operations.
type Service struct {
	db *sql.DB
}

// NewService creates an event service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// CreateEvent inserts a new event, assigning an ID when none is set.
// An empty timezone defaults to UTC.
func (s *Service) CreateEvent(ctx context.Context, e *Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timezone == "" {
		e.Timezone = "UTC"
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, name, year, timezone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.Name, e.Year, e.Timezone, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("creating event: %w", err)
	}
	return nil
}

// GetEvent retrieves an event by primary key.
func (s *Service) GetEvent(ctx context.Context, id string) (*Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, year, timezone, created_at, updated_at FROM events WHERE id = ?`, id)

	var e Event
	var createdAt, updatedAt string
	err := row.Scan(&e.ID, &e.Name, &e.Year, &e.Timezone, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting event: %w", err)
	}
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

// parseTime parses an RFC3339 timestamp, returning the zero time on failure.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
