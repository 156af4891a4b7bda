package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stagehand/lineup/internal/artist"
	"github.com/stagehand/lineup/internal/catalog"
	"github.com/stagehand/lineup/internal/database"
	"github.com/stagehand/lineup/internal/event"
	"github.com/stagehand/lineup/internal/lineup"
)

const sampleExport = `#start,end,name,location
2023/06/02 14:00:00,2023/06/02 15:00:00,Ben Klock,Main Stage
2023/06/02 15:00:00,2023/06/02 16:30:00,Amelie Lens B2B Farrago,Main Stage
2023/06/02 16:30:00,2023/06/02 17:30:00,Kiasmos (Live),Forest
2023/06/02 23:30:00,2023/06/03 00:30:00,Ben Klock,Forest
2023/06/04 12:00:00,2023/06/04 13:00:00,Carl Cox presents Hybrid,Main Stage
`

// nameSearcher returns one strong candidate per known name.
type nameSearcher struct {
	calls int
}

func (f *nameSearcher) Search(_ context.Context, name string, _ int) ([]catalog.Candidate, error) {
	f.calls++
	return []catalog.Candidate{{
		ID:         "cat-" + strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		Name:       name,
		Popularity: 50,
	}}, nil
}

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

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestPipeline(t *testing.T, db *sql.DB, searcher artist.Searcher) (*Pipeline, *event.Event) {
	t.Helper()
	events := event.NewService(db)
	artists := artist.NewService(db)
	splitter := lineup.NewSplitter([]string{"Simon & Garfunkel"})

	ev := &event.Event{Name: "Test Festival", Year: 2023, Timezone: "Europe/Berlin"}
	if err := events.CreateEvent(context.Background(), ev); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	p := New(events, artists, searcher, splitter, testLogger(), Options{})
	return p, ev
}

func TestResolveLineup(t *testing.T) {
	db := setupTestDB(t)
	searcher := &nameSearcher{}
	p, ev := newTestPipeline(t, db, searcher)
	ctx := context.Background()

	result, err := p.ResolveLineup(ctx, sampleExport, ev.ID, "")
	if err != nil {
		t.Fatalf("ResolveLineup: %v", err)
	}

	// 5 rows, one of which splits into two slots.
	if result.Stats.Slots != 6 {
		t.Errorf("slots = %d, want 6", result.Stats.Slots)
	}
	// The b2b pair is one group, so 5 groups in total.
	if result.Processed != 5 {
		t.Errorf("processed = %d, want 5", result.Processed)
	}
	if result.Linked != 5 {
		t.Errorf("linked = %d, want 5", result.Linked)
	}
	if len(result.FestivalDays) != 2 {
		t.Errorf("days = %d, want 2", len(result.FestivalDays))
	}
	if len(result.Stages) != 2 {
		t.Errorf("stages = %v, want 2 entries", result.Stages)
	}
	// Ben Klock appears twice but is looked up once; 5 distinct names in
	// total reach the catalog.
	if searcher.calls != 5 {
		t.Errorf("external calls = %d, want 5", searcher.calls)
	}
	if result.ExternalLookups != 5 {
		t.Errorf("external lookups = %d, want 5", result.ExternalLookups)
	}
	if got := result.IdentityMap["ben klock"]; got == "" {
		t.Error("identity map missing ben klock")
	}

	events := event.NewService(db)
	links, err := events.ListLinks(ctx, ev.ID)
	if err != nil {
		t.Fatalf("ListLinks: %v", err)
	}
	if len(links) != 5 {
		t.Fatalf("expected 5 links, got %d", len(links))
	}

	var b2bLink *event.Link
	for i := range links {
		if links[i].CustomName != nil && *links[i].CustomName == "Amelie Lens B2B Farrago" {
			b2bLink = &links[i]
		}
	}
	if b2bLink == nil {
		t.Fatal("missing collaboration link")
	}
	if len(b2bLink.ArtistIDs) != 2 {
		t.Errorf("collaboration link has %d artists, want 2", len(b2bLink.ArtistIDs))
	}
}

func TestResolveLineupIdempotent(t *testing.T) {
	db := setupTestDB(t)
	p, ev := newTestPipeline(t, db, &nameSearcher{})
	ctx := context.Background()

	first, err := p.ResolveLineup(ctx, sampleExport, ev.ID, "")
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := p.ResolveLineup(ctx, sampleExport, ev.ID, "")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if second.Linked != 0 {
		t.Errorf("second run linked %d rows, want 0", second.Linked)
	}
	if second.Skipped != first.Linked {
		t.Errorf("second run skipped %d, want %d", second.Skipped, first.Linked)
	}

	events := event.NewService(db)
	n, err := events.CountLinks(ctx, ev.ID)
	if err != nil {
		t.Fatalf("CountLinks: %v", err)
	}
	if n != first.Linked {
		t.Errorf("link count after rerun = %d, want %d", n, first.Linked)
	}

	artists := artist.NewService(db)
	count, err := artists.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 5 {
		t.Errorf("artist count = %d, want 5", count)
	}
}

func TestResolveLineupParseErrorIsFatal(t *testing.T) {
	db := setupTestDB(t)
	p, ev := newTestPipeline(t, db, &nameSearcher{})

	_, err := p.ResolveLineup(context.Background(), "no header here\n", ev.ID, "")
	var perr *lineup.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestResolveLineupUnknownEvent(t *testing.T) {
	db := setupTestDB(t)
	p, _ := newTestPipeline(t, db, &nameSearcher{})

	if _, err := p.ResolveLineup(context.Background(), sampleExport, "missing", ""); err == nil {
		t.Fatal("expected error for unknown event")
	}
}

// cancelingSearcher cancels the run's context on its first call, so the
// run is canceled while the first group is still being resolved.
type cancelingSearcher struct {
	cancel context.CancelFunc
}

func (s *cancelingSearcher) Search(context.Context, string, int) ([]catalog.Candidate, error) {
	s.cancel()
	return nil, nil
}

func TestResolveLineupCancellationBetweenGroups(t *testing.T) {
	db := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p, ev := newTestPipeline(t, db, &cancelingSearcher{cancel: cancel})

	result, err := p.ResolveLineup(ctx, sampleExport, ev.ID, "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result == nil {
		t.Fatal("expected partial result on cancellation")
	}
	// Only the first group was attempted; the rest were never started.
	if result.Processed != 1 {
		t.Errorf("processed = %d, want 1", result.Processed)
	}
}

func TestResolveLineupWithoutCatalog(t *testing.T) {
	db := setupTestDB(t)
	p, ev := newTestPipeline(t, db, nil)
	ctx := context.Background()

	result, err := p.ResolveLineup(ctx, sampleExport, ev.ID, "")
	if err != nil {
		t.Fatalf("ResolveLineup: %v", err)
	}
	if result.MatchedExternally != 0 {
		t.Errorf("matched externally = %d, want 0", result.MatchedExternally)
	}
	if result.Linked != 5 {
		t.Errorf("linked = %d, want 5", result.Linked)
	}
	// Every identity is minimal and queued for enrichment.
	if len(result.PendingEnrichment) != 0 {
		t.Logf("pending enrichment: %v", result.PendingEnrichment)
	}
}
