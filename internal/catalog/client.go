package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

// Client queries the music-catalog search service. All requests pass a
// shared rate limiter; rate-limit responses are retried with exponential
// backoff up to a bounded attempt count.
type Client struct {
	client     *http.Client
	limiter    *rate.Limiter
	tokens     oauth2.TokenSource
	logger     *slog.Logger
	baseURL    string
	maxRetries uint64
}

// Options configures a Client.
type Options struct {
	BaseURL string
	// Tokens supplies bearer tokens with expiry tracked inside the source.
	// Nil means unauthenticated requests (tests, open catalogs).
	Tokens            oauth2.TokenSource
	RequestsPerSecond float64
	MaxRetries        int
}

// NewClient creates a catalog client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		client:     &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		tokens:     opts.Tokens,
		logger:     logger.With(slog.String("component", "catalog")),
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		maxRetries: uint64(maxRetries),
	}
}

// NewTokenSource builds a client-credentials token source for the catalog.
// Token refresh and expiry are handled inside the source; no token state
// lives anywhere else.
func NewTokenSource(ctx context.Context, tokenURL, clientID, clientSecret string) oauth2.TokenSource {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	return cfg.TokenSource(ctx)
}

// Search queries the catalog for artists matching name, returning at most
// limit candidates ordered as the catalog ranked them.
func (c *Client) Search(ctx context.Context, name string, limit int) ([]Candidate, error) {
	if name == "" {
		return nil, nil
	}
	if limit < 1 {
		limit = 10
	}

	params := url.Values{
		"q":     {name},
		"limit": {strconv.Itoa(limit)},
	}
	reqURL := c.baseURL + "/search/artist?" + params.Encode()

	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	candidates := make([]Candidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		candidates = append(candidates, Candidate{
			ID:         r.ID,
			Name:       r.Name,
			Popularity: r.Popularity,
			ProfileURL: r.ProfileURL,
			ArtworkURL: bestArtwork(r.Images),
		})
	}

	c.logger.Debug("artist search completed",
		slog.String("query", name),
		slog.Int("results", len(candidates)))

	return candidates, nil
}

// doRequest executes a GET with auth and rate limiting, retrying
// rate-limited and server-side failures with exponential backoff. After the
// retry budget is spent the last error is returned as *ErrUnavailable.
func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	var body []byte

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if c.tokens != nil {
			tok, err := c.tokens.Token()
			if err != nil {
				return fmt.Errorf("fetching token: %w", err)
			}
			tok.SetAuthHeader(req)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close() //nolint:errcheck

		switch {
		case resp.StatusCode == http.StatusOK:
			body, err = io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
			return err
		case resp.StatusCode == http.StatusNotFound:
			return &ErrNotFound{ID: reqURL}
		case resp.StatusCode == http.StatusTooManyRequests:
			c.logger.Warn("rate limited by catalog, backing off")
			return retry.RetryableError(fmt.Errorf("rate limited by server"))
		case resp.StatusCode >= 500:
			return retry.RetryableError(fmt.Errorf("server status %d", resp.StatusCode))
		default:
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
	})
	if err != nil {
		var notFound *ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &ErrUnavailable{Cause: err}
	}
	return body, nil
}
