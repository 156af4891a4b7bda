package artist

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stagehand/lineup/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCreateAndGetByID(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	a := &Identity{Name: "Amelie Lens", CanonicalName: "Amelie Lens"}
	if err := svc.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID == "" {
		t.Fatal("expected ID to be set after Create")
	}

	got, err := svc.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "Amelie Lens" {
		t.Errorf("name = %q", got.Name)
	}
	if got.Enriched() {
		t.Error("new identity should not be enriched")
	}
}

func TestGetByCanonicalNameCaseInsensitive(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	a := &Identity{Name: "Ben Klock", CanonicalName: "Ben Klock"}
	if err := svc.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.GetByCanonicalName(ctx, "BEN KLOCK")
	if err != nil {
		t.Fatalf("GetByCanonicalName: %v", err)
	}
	if got == nil || got.ID != a.ID {
		t.Fatalf("expected case-insensitive hit, got %+v", got)
	}

	miss, err := svc.GetByCanonicalName(ctx, "Nobody")
	if err != nil {
		t.Fatalf("GetByCanonicalName miss: %v", err)
	}
	if miss != nil {
		t.Errorf("expected nil for unknown name, got %+v", miss)
	}
}

func TestUpdateEnrichment(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	a := &Identity{Name: "Kiasmos", CanonicalName: "Kiasmos"}
	if err := svc.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	err := svc.UpdateEnrichment(ctx, a.ID, "cat-42", "https://catalog.example/cat-42", "https://img.example/cat-42.jpg")
	if err != nil {
		t.Fatalf("UpdateEnrichment: %v", err)
	}

	got, err := svc.GetByCatalogID(ctx, "cat-42")
	if err != nil {
		t.Fatalf("GetByCatalogID: %v", err)
	}
	if got == nil || got.ID != a.ID {
		t.Fatalf("expected catalog-id hit, got %+v", got)
	}
	if !got.Enriched() {
		t.Error("expected identity to be enriched")
	}

	if err := svc.UpdateEnrichment(ctx, "missing-id", "x", "", ""); err == nil {
		t.Error("expected error for unknown artist")
	}
}

func TestListMissingCatalogLink(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	for _, name := range []string{"One", "Two"} {
		if err := svc.Create(ctx, &Identity{Name: name, CanonicalName: name}); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}
	enriched := &Identity{Name: "Three", CanonicalName: "Three", CatalogID: "cat-3"}
	if err := svc.Create(ctx, enriched); err != nil {
		t.Fatalf("Create enriched: %v", err)
	}

	missing, err := svc.ListMissingCatalogLink(ctx, 10)
	if err != nil {
		t.Fatalf("ListMissingCatalogLink: %v", err)
	}
	if len(missing) != 2 {
		t.Fatalf("expected 2 unenriched, got %d", len(missing))
	}

	n, err := svc.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}
