// Package aggregator looks up festivals on a public schedule-aggregator
// directory and fetches their tabular lineup exports. The export feeds the
// resolution pipeline as a raw source; nothing here touches the datastore.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/stagehand/lineup/internal/lineup"
)

const defaultBaseURL = "https://clashfinder.com"

// defaultNameThreshold is the floor for accepting a directory entry as a
// match for the requested festival name.
const defaultNameThreshold = 0.8

// ErrNoMatch reports that no directory entry matched the requested
// festival name and year.
type ErrNoMatch struct {
	Name string
	Year int
}

func (e *ErrNoMatch) Error() string {
	return fmt.Sprintf("aggregator: no festival matching %q (%d)", e.Name, e.Year)
}

// ErrUnavailable reports a transport or server-side failure talking to the
// directory.
type ErrUnavailable struct {
	Cause error
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("aggregator unavailable: %v", e.Cause)
}

func (e *ErrUnavailable) Unwrap() error { return e.Cause }

// Festival is one directory entry.
type Festival struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Year int    `json:"year"`
}

// directoryResponse mirrors the directory listing payload.
type directoryResponse struct {
	Festivals []Festival `json:"festivals"`
}

// Client queries the aggregator directory. Safe for concurrent use.
type Client struct {
	client    *http.Client
	limiter   *rate.Limiter
	logger    *slog.Logger
	baseURL   string
	threshold float64
}

// New creates a client with the default base URL.
func New(logger *slog.Logger) *Client {
	return NewWithBaseURL(logger, defaultBaseURL)
}

// NewWithBaseURL creates a client with a custom base URL (for testing).
func NewWithBaseURL(logger *slog.Logger, baseURL string) *Client {
	return &Client{
		client:    &http.Client{Timeout: 15 * time.Second},
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		logger:    logger.With(slog.String("component", "aggregator")),
		baseURL:   strings.TrimRight(baseURL, "/"),
		threshold: defaultNameThreshold,
	}
}

// SetNameThreshold overrides the default similarity floor. Values outside
// (0, 1] are ignored.
func (c *Client) SetNameThreshold(v float64) {
	if v > 0 && v <= 1 {
		c.threshold = v
	}
}

// FindFestival fuzzy-matches name against the directory and validates the
// event year. The best entry at or above the similarity floor wins; ties go
// to the earlier directory position. Returns *ErrNoMatch when nothing
// qualifies.
func (c *Client) FindFestival(ctx context.Context, name string, year int) (*Festival, error) {
	if name == "" {
		return nil, &ErrNoMatch{Name: name, Year: year}
	}

	params := url.Values{
		"q":    {name},
		"year": {fmt.Sprintf("%d", year)},
	}
	body, err := c.get(ctx, c.baseURL+"/data/searchevents.json?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp directoryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing directory response: %w", err)
	}

	var best *Festival
	bestScore := 0.0
	for i := range resp.Festivals {
		f := resp.Festivals[i]
		if f.Year != year {
			continue
		}
		score := lineup.Similarity(name, f.Name)
		if score < c.threshold || score <= bestScore {
			continue
		}
		best = &resp.Festivals[i]
		bestScore = score
	}
	if best == nil {
		return nil, &ErrNoMatch{Name: name, Year: year}
	}

	c.logger.Debug("festival matched",
		slog.String("query", name),
		slog.String("festival_id", best.ID),
		slog.Float64("similarity", bestScore))
	return best, nil
}

// FetchExport downloads the tabular lineup export for a festival ID. The
// returned text feeds schedule parsing unchanged.
func (c *Client) FetchExport(ctx context.Context, festivalID string) (string, error) {
	reqURL := fmt.Sprintf("%s/data/event/%s.csv", c.baseURL, url.PathEscape(festivalID))
	body, err := c.get(ctx, reqURL)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &ErrUnavailable{Cause: fmt.Errorf("rate limiter: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &ErrUnavailable{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ErrUnavailable{Cause: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, &ErrUnavailable{Cause: fmt.Errorf("reading response: %w", err)}
	}
	return body, nil
}
