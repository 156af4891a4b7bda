package artist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// identityColumns is the ordered list of columns for SELECT queries.
const identityColumns = `id, name, canonical_name, catalog_id, profile_url, image_url, description, created_at, updated_at`

// Service provides artist identity data operations.
type Service struct {
	db *sql.DB
}

// NewService creates an artist service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Create inserts a new identity, assigning an ID when none is set.
func (s *Service) Create(ctx context.Context, a *Identity) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artists (id, name, canonical_name, catalog_id, profile_url, image_url, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID, a.Name, a.CanonicalName, a.CatalogID, a.ProfileURL, a.ImageURL, a.Description,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating artist: %w", err)
	}
	return nil
}

// GetByID retrieves an identity by primary key.
func (s *Service) GetByID(ctx context.Context, id string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM artists WHERE id = ?`, id)
	a, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("artist not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting artist by id: %w", err)
	}
	return a, nil
}

// GetByCanonicalName retrieves an identity by canonical name,
// case-insensitively. Returns nil without error when no row matches.
func (s *Service) GetByCanonicalName(ctx context.Context, canonical string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM artists WHERE canonical_name = ? COLLATE NOCASE`, canonical)
	a, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting artist by canonical name: %w", err)
	}
	return a, nil
}

// GetByCatalogID retrieves an identity by its external catalog reference.
// Returns nil without error when no row matches.
func (s *Service) GetByCatalogID(ctx context.Context, catalogID string) (*Identity, error) {
	if catalogID == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM artists WHERE catalog_id = ?`, catalogID)
	a, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting artist by catalog id: %w", err)
	}
	return a, nil
}

// UpdateEnrichment sets the catalog link fields on an existing identity.
// Only enrichment fields change; name and canonical name stay as created.
func (s *Service) UpdateEnrichment(ctx context.Context, id, catalogID, profileURL, imageURL string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE artists SET catalog_id = ?, profile_url = ?, image_url = ?, updated_at = ?
		WHERE id = ?
	`, catalogID, profileURL, imageURL, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating artist enrichment: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("artist not found: %s", id)
	}
	return nil
}

// ListMissingCatalogLink returns up to limit identities without a catalog
// reference, oldest first. They are candidates for enrichment backfill.
func (s *Service) ListMissingCatalogLink(ctx context.Context, limit int) ([]Identity, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+identityColumns+` FROM artists WHERE catalog_id = '' ORDER BY created_at LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing unenriched artists: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var identities []Identity
	for rows.Next() {
		a, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning artist: %w", err)
		}
		identities = append(identities, *a)
	}
	return identities, rows.Err()
}

// Count returns the number of persisted identities.
func (s *Service) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artists`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting artists: %w", err)
	}
	return n, nil
}

// scanIdentity reads one identity row.
func scanIdentity(row interface{ Scan(...any) error }) (*Identity, error) {
	var a Identity
	var createdAt, updatedAt string
	if err := row.Scan(
		&a.ID, &a.Name, &a.CanonicalName, &a.CatalogID,
		&a.ProfileURL, &a.ImageURL, &a.Description,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

// parseTime parses an RFC3339 timestamp, returning the zero time on failure.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
