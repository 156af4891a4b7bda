package artist

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/stagehand/lineup/internal/catalog"
	"github.com/stagehand/lineup/internal/lineup"
)

// DefaultMatchThreshold is the composite-score floor for accepting an
// external candidate. A candidate scoring exactly at the threshold is
// accepted.
const DefaultMatchThreshold = 0.6

// Composite score weights: name similarity dominates, popularity breaks
// ties between plausible names, rank resolves the rest.
const (
	weightSimilarity = 0.6
	weightPopularity = 0.3
	weightRank       = 0.1
)

// Searcher is the slice of the catalog client the resolver depends on.
type Searcher interface {
	Search(ctx context.Context, name string, limit int) ([]catalog.Candidate, error)
}

// ResolverOptions tunes a Resolver.
type ResolverOptions struct {
	// MatchThreshold defaults to DefaultMatchThreshold when zero.
	MatchThreshold float64
	// SearchLimit is the top-K candidate count per lookup (default 10).
	SearchLimit int
	// CallDelay is the fixed pause between external lookups.
	CallDelay time.Duration
}

// Resolver maps raw artist names to persisted identities. Within one
// Resolver a name is looked up externally at most once; repeated names
// resolve from the memo.
type Resolver struct {
	store   *Service
	catalog Searcher
	logger  *slog.Logger
	opts    ResolverOptions

	memo     map[string]string
	lastCall time.Time
	pending  []string

	// Lookups counts external searches issued, for run reports.
	Lookups int
	// Matched counts identities linked to a catalog entry this run.
	Matched int
}

// NewResolver creates a resolver. searcher may be nil, in which case every
// unknown name becomes a new minimal identity.
func NewResolver(store *Service, searcher Searcher, logger *slog.Logger, opts ResolverOptions) *Resolver {
	if opts.MatchThreshold <= 0 {
		opts.MatchThreshold = DefaultMatchThreshold
	}
	if opts.SearchLimit < 1 {
		opts.SearchLimit = 10
	}
	return &Resolver{
		store:   store,
		catalog: searcher,
		logger:  logger.With(slog.String("component", "resolver")),
		opts:    opts,
		memo:    make(map[string]string),
	}
}

// Resolve maps a raw artist name to a persisted identity ID.
//
// Lookup order: memo, exact canonical match in the store, external catalog
// search with composite scoring, then creation of a new identity. External
// failures are logged and treated as "no match"; they never fail the call.
func (r *Resolver) Resolve(ctx context.Context, rawName string) (string, error) {
	canonical := lineup.CleanName(rawName)
	if canonical == "" {
		canonical = strings.TrimSpace(rawName)
	}
	key := strings.ToLower(canonical)

	if id, ok := r.memo[key]; ok {
		return id, nil
	}

	existing, err := r.store.GetByCanonicalName(ctx, canonical)
	if err != nil {
		return "", err
	}
	if existing != nil {
		if !existing.Enriched() {
			r.pending = append(r.pending, existing.ID)
		}
		r.memo[key] = existing.ID
		return existing.ID, nil
	}

	best := r.searchBest(ctx, canonical)
	if best != nil {
		// The catalog entry may already be linked under a name variant.
		linked, err := r.store.GetByCatalogID(ctx, best.ID)
		if err != nil {
			return "", err
		}
		if linked != nil {
			r.Matched++
			r.memo[key] = linked.ID
			return linked.ID, nil
		}

		a := &Identity{
			Name:          best.Name,
			CanonicalName: canonical,
			CatalogID:     best.ID,
			ProfileURL:    best.ProfileURL,
			ImageURL:      best.ArtworkURL,
		}
		if err := r.store.Create(ctx, a); err != nil {
			return "", err
		}
		r.Matched++
		r.memo[key] = a.ID
		return a.ID, nil
	}

	a := &Identity{Name: canonical, CanonicalName: canonical}
	if err := r.store.Create(ctx, a); err != nil {
		return "", err
	}
	r.memo[key] = a.ID
	return a.ID, nil
}

// PendingEnrichment returns the IDs of identities encountered this run that
// still lack a catalog link. The caller drains them out of band.
func (r *Resolver) PendingEnrichment() []string {
	return r.pending
}

// IdentityMap returns a copy of the memo: lowercased canonical name to
// resolved artist ID for every name seen this run.
func (r *Resolver) IdentityMap() map[string]string {
	m := make(map[string]string, len(r.memo))
	for k, v := range r.memo {
		m[k] = v
	}
	return m
}

// Enrich re-attempts the catalog match for an existing identity and, on
// acceptance, stores the catalog reference and artwork.
func (r *Resolver) Enrich(ctx context.Context, id string) (bool, error) {
	a, err := r.store.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if a.Enriched() {
		return false, nil
	}

	best := r.searchBest(ctx, a.CanonicalName)
	if best == nil {
		return false, nil
	}
	if err := r.store.UpdateEnrichment(ctx, a.ID, best.ID, best.ProfileURL, best.ArtworkURL); err != nil {
		return false, err
	}
	r.Matched++
	return true, nil
}

// searchBest performs the rate-paced external lookup and composite scoring.
// It returns nil on any failure or when no candidate reaches the threshold.
func (r *Resolver) searchBest(ctx context.Context, canonical string) *catalog.Candidate {
	if r.catalog == nil {
		return nil
	}

	r.pace(ctx)
	r.Lookups++
	candidates, err := r.catalog.Search(ctx, canonical, r.opts.SearchLimit)
	r.lastCall = time.Now()
	if err != nil {
		r.logger.Warn("catalog lookup failed, treating as no match",
			slog.String("name", canonical),
			slog.String("error", err.Error()))
		return nil
	}
	if len(candidates) == 0 {
		return nil
	}

	idx, score := scoreCandidates(canonical, candidates)
	if score < r.opts.MatchThreshold {
		r.logger.Debug("best candidate below threshold",
			slog.String("name", canonical),
			slog.String("candidate", candidates[idx].Name),
			slog.Float64("score", score))
		return nil
	}
	return &candidates[idx]
}

// pace enforces the fixed inter-call delay, respecting cancellation.
func (r *Resolver) pace(ctx context.Context) {
	if r.opts.CallDelay <= 0 || r.lastCall.IsZero() {
		return
	}
	wait := r.opts.CallDelay - time.Since(r.lastCall)
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// scoreCandidates composite-scores every candidate against the query and
// returns the index and score of the best one.
//
//	score = 0.6*similarity + 0.3*logPopularity + 0.1*inverseRank
//
// Popularity is log-normalized against the most popular candidate in the
// batch; rank rewards the catalog's own ordering.
func scoreCandidates(query string, candidates []catalog.Candidate) (int, float64) {
	maxPop := 0
	for _, c := range candidates {
		if c.Popularity > maxPop {
			maxPop = c.Popularity
		}
	}
	logMax := math.Log10(float64(maxPop) + 1)

	bestIdx, bestScore := 0, -1.0
	n := float64(len(candidates))
	for i, c := range candidates {
		similarity := lineup.Similarity(query, c.Name)

		popularity := 0.0
		if logMax > 0 {
			popularity = math.Log10(float64(c.Popularity)+1) / logMax
		}

		rank := 1 - float64(i)/n

		score := weightSimilarity*similarity + weightPopularity*popularity + weightRank*rank
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	return bestIdx, bestScore
}
