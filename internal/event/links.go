package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Link statuses.
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Link is one event–artist relation: a performance slot with one or more
// resolved artists. Stage, bounds and custom name are nullable because
// free-text lineups often lack them.
type Link struct {
	ID         string     `json:"id"`
	EventID    string     `json:"event_id"`
	ArtistIDs  []string   `json:"artist_ids"`
	Stage      *string    `json:"stage,omitempty"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	CustomName *string    `json:"custom_name,omitempty"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// UpsertLink inserts the link unless a row with the same natural key
// already exists. The natural key is (event, stage, start, end,
// custom name, artist-id set); null fields compare null-safely and the
// artist list compares as a set. Returns true when a row was inserted.
func (s *Service) UpsertLink(ctx context.Context, link *Link) (bool, error) {
	if link.EventID == "" {
		return false, fmt.Errorf("link requires an event id")
	}
	if len(link.ArtistIDs) == 0 {
		return false, fmt.Errorf("link requires at least one artist id")
	}

	artistIDs := normalizedIDSet(link.ArtistIDs)
	startUTC := normalizedTime(link.StartTime)
	endUTC := normalizedTime(link.EndTime)

	// IS is SQLite's null-safe equality: NULL IS NULL holds, NULL = NULL
	// does not.
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM event_artist
		WHERE event_id = ?
		  AND stage IS ?
		  AND start_time IS ?
		  AND end_time IS ?
		  AND custom_name IS ?
		  AND artist_ids = ?
	`, link.EventID, nullableString(link.Stage), startUTC, endUTC,
		nullableString(link.CustomName), artistIDs)

	var existing int
	if err := row.Scan(&existing); err != nil {
		return false, fmt.Errorf("checking existing link: %w", err)
	}
	if existing > 0 {
		return false, nil
	}

	if link.ID == "" {
		link.ID = uuid.New().String()
	}
	if link.Status == "" {
		link.Status = StatusConfirmed
	}
	now := time.Now().UTC()
	link.CreatedAt = now
	link.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO event_artist (id, event_id, artist_ids, stage, start_time, end_time, custom_name, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, link.ID, link.EventID, artistIDs, nullableString(link.Stage), startUTC, endUTC,
		nullableString(link.CustomName), link.Status,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("inserting link: %w", err)
	}
	return true, nil
}

// ListLinks returns all links for an event, oldest first.
func (s *Service) ListLinks(ctx context.Context, eventID string) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, artist_ids, stage, start_time, end_time, custom_name, status, created_at, updated_at
		FROM event_artist WHERE event_id = ? ORDER BY created_at, id
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var links []Link
	for rows.Next() {
		var l Link
		var artistIDs string
		var stage, startTime, endTime, customName *string
		var createdAt, updatedAt string
		if err := rows.Scan(&l.ID, &l.EventID, &artistIDs, &stage, &startTime, &endTime,
			&customName, &l.Status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning link: %w", err)
		}
		if err := json.Unmarshal([]byte(artistIDs), &l.ArtistIDs); err != nil {
			return nil, fmt.Errorf("decoding artist ids: %w", err)
		}
		l.Stage = stage
		l.CustomName = customName
		if startTime != nil {
			t := parseTime(*startTime)
			l.StartTime = &t
		}
		if endTime != nil {
			t := parseTime(*endTime)
			l.EndTime = &t
		}
		l.CreatedAt = parseTime(createdAt)
		l.UpdatedAt = parseTime(updatedAt)
		links = append(links, l)
	}
	return links, rows.Err()
}

// CountLinks returns the number of links stored for an event.
func (s *Service) CountLinks(ctx context.Context, eventID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM event_artist WHERE event_id = ?`, eventID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting links: %w", err)
	}
	return n, nil
}

// normalizedIDSet encodes artist IDs as a sorted JSON array so two lists
// with the same members always compare equal.
func normalizedIDSet(ids []string) string {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	unique := make([]string, 0, len(set))
	for id := range set {
		unique = append(unique, id)
	}
	sort.Strings(unique)
	data, _ := json.Marshal(unique)
	return string(data)
}

// normalizedTime renders a nullable time as UTC RFC3339. Both local-naive
// and already-UTC inputs end up in the same representation before the
// natural-key comparison.
func normalizedTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// nullableString maps nil and empty to SQL NULL.
func nullableString(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
