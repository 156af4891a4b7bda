package artist

import "time"

// Identity is a persisted canonical artist. Created on first unmatched
// canonical name, enriched on later encounters, never deleted by this
// engine.
type Identity struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	CanonicalName string    `json:"canonical_name"`
	CatalogID     string    `json:"catalog_id,omitempty"`
	ProfileURL    string    `json:"profile_url,omitempty"`
	ImageURL      string    `json:"image_url,omitempty"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Enriched reports whether the identity already carries a catalog link.
func (a *Identity) Enriched() bool {
	return a.CatalogID != ""
}
