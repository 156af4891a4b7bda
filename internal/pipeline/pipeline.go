package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stagehand/lineup/internal/artist"
	"github.com/stagehand/lineup/internal/event"
	"github.com/stagehand/lineup/internal/lineup"
)

// Options tunes one pipeline instance.
type Options struct {
	// DayGap is the maximum quiet period inside one festival day.
	DayGap time.Duration
	// MatchThreshold is the composite-score floor for catalog acceptance.
	MatchThreshold float64
	// SearchLimit is the top-K candidate count per catalog lookup.
	SearchLimit int
	// CallDelay is the fixed pause between catalog lookups.
	CallDelay time.Duration
}

// Result is the outcome of one lineup resolution run.
type Result struct {
	FestivalDays []lineup.FestivalDay `json:"festival_days"`
	Stages       []string             `json:"stages"`
	Stats        lineup.Stats         `json:"stats"`

	// Processed counts collaboration groups seen; Linked counts rows
	// inserted; Skipped counts groups whose link already existed.
	Processed int `json:"processed"`
	Linked    int `json:"linked"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`

	MatchedExternally int `json:"matched_externally"`
	ExternalLookups   int `json:"external_lookups"`

	// IdentityMap maps each lowercased canonical name seen this run to
	// its resolved artist ID.
	IdentityMap map[string]string `json:"identity_map"`
	// PendingEnrichment lists identities still missing a catalog link.
	PendingEnrichment []string `json:"pending_enrichment,omitempty"`
}

// Pipeline wires the lineup core to the artist resolver and link store.
// Runs are sequential; the caller serializes runs per event.
type Pipeline struct {
	events   *event.Service
	artists  *artist.Service
	searcher artist.Searcher
	splitter *lineup.Splitter
	logger   *slog.Logger
	opts     Options
}

// New creates a pipeline. searcher may be nil to run without external
// matching.
func New(events *event.Service, artists *artist.Service, searcher artist.Searcher,
	splitter *lineup.Splitter, logger *slog.Logger, opts Options) *Pipeline {
	if opts.DayGap <= 0 {
		opts.DayGap = lineup.DefaultDayGap
	}
	return &Pipeline{
		events:   events,
		artists:  artists,
		searcher: searcher,
		splitter: splitter,
		logger:   logger.With(slog.String("component", "pipeline")),
		opts:     opts,
	}
}

// ResolveLineup parses rawSource, resolves every artist, and persists one
// link per collaboration group for the event. tz overrides the event's
// stored timezone when non-empty.
//
// Parse failures abort the run. Resolution and linkage failures are
// per-group: the run continues and reports them in the Result; persistence
// errors are additionally joined into the returned error so callers see the
// data-integrity risk.
func (p *Pipeline) ResolveLineup(ctx context.Context, rawSource, eventID, tz string) (*Result, error) {
	ev, err := p.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if tz == "" {
		tz = ev.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", tz, err)
	}

	rows, err := lineup.ParseSchedule(rawSource)
	if err != nil {
		return nil, err
	}

	slots := p.expandRows(rows, loc)
	groups := lineup.GroupSlots(slots)
	days, stages := lineup.SegmentDays(slots, loc, p.opts.DayGap)

	resolver := artist.NewResolver(p.artists, p.searcher, p.logger, artist.ResolverOptions{
		MatchThreshold: p.opts.MatchThreshold,
		SearchLimit:    p.opts.SearchLimit,
		CallDelay:      p.opts.CallDelay,
	})

	result := &Result{
		FestivalDays: days,
		Stages:       stages,
		Stats:        lineup.Collect(slots),
	}

	var persistErrs []error
	for _, g := range groups {
		// Cancellation is checked between groups only: a group's
		// resolution and linkage complete atomically from the caller's
		// perspective.
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Processed++

		ids := p.resolveGroup(ctx, resolver, g, &persistErrs)
		if len(ids) == 0 {
			result.Failed++
			continue
		}

		created, err := p.linkGroup(ctx, eventID, g, ids)
		if err != nil {
			p.logger.Error("linking group failed",
				slog.String("stage", g.Key.Stage),
				slog.String("error", err.Error()))
			persistErrs = append(persistErrs, err)
			result.Failed++
			continue
		}
		if created {
			result.Linked++
		} else {
			result.Skipped++
		}
	}

	result.MatchedExternally = resolver.Matched
	result.ExternalLookups = resolver.Lookups
	result.IdentityMap = resolver.IdentityMap()
	result.PendingEnrichment = resolver.PendingEnrichment()

	p.logger.Info("lineup resolved",
		slog.String("event_id", eventID),
		slog.Int("slots", result.Stats.Slots),
		slog.Int("days", len(result.FestivalDays)),
		slog.Int("linked", result.Linked),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
		slog.Int("external_lookups", result.ExternalLookups))

	return result, errors.Join(persistErrs...)
}

// expandRows cleans, splits and time-parses raw rows into slots. Rows with
// unparseable times are dropped with a warning.
func (p *Pipeline) expandRows(rows []lineup.RawRow, loc *time.Location) []lineup.PerformanceSlot {
	var slots []lineup.PerformanceSlot
	for _, row := range rows {
		start, err := lineup.ParseSlotTime(row.StartRaw, loc)
		if err != nil {
			p.logger.Warn("dropping row", slog.String("name", row.NameRaw), slog.String("error", err.Error()))
			continue
		}
		end, err := lineup.ParseSlotTime(row.EndRaw, loc)
		if err != nil {
			p.logger.Warn("dropping row", slog.String("name", row.NameRaw), slog.String("error", err.Error()))
			continue
		}
		start, end = lineup.NormalizeRange(start, end)

		split := p.splitter.Split(row.NameRaw)
		for _, name := range split.Names {
			slots = append(slots, lineup.PerformanceSlot{
				ArtistNameRaw: name,
				Stage:         row.Stage,
				Start:         start,
				End:           end,
				Mode:          split.Mode,
				CustomName:    split.CustomName,
			})
		}
	}
	return slots
}

// resolveGroup resolves every member of a group, returning the IDs that
// resolved. One member failing does not block the others.
func (p *Pipeline) resolveGroup(ctx context.Context, resolver *artist.Resolver,
	g lineup.CollaborationGroup, persistErrs *[]error) []string {
	var ids []string
	for _, s := range g.Slots {
		id, err := resolver.Resolve(ctx, s.ArtistNameRaw)
		if err != nil {
			p.logger.Error("resolving artist failed",
				slog.String("name", s.ArtistNameRaw),
				slog.String("error", err.Error()))
			*persistErrs = append(*persistErrs, err)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// linkGroup upserts the event–artist link for one group.
func (p *Pipeline) linkGroup(ctx context.Context, eventID string, g lineup.CollaborationGroup, ids []string) (bool, error) {
	link := &event.Link{
		EventID:   eventID,
		ArtistIDs: ids,
		Status:    event.StatusConfirmed,
	}
	if g.Key.Stage != "" {
		stage := g.Key.Stage
		link.Stage = &stage
	}
	if !g.Key.Start.IsZero() {
		start := g.Key.Start
		link.StartTime = &start
	}
	if !g.Key.End.IsZero() {
		end := g.Key.End
		link.EndTime = &end
	}
	if custom := g.CustomName(); custom != "" {
		link.CustomName = &custom
	}
	return p.events.UpsertLink(ctx, link)
}
