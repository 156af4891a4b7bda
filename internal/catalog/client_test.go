package catalog

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"golang.org/x/oauth2"
)

// staticTokenSource issues a fixed token.
type staticTokenSource struct{}

func (staticTokenSource) Token() (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "test-token"}, nil
}

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("loading fixture %s: %v", name, err)
	}
	return data
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return NewClient(Options{
		BaseURL:           baseURL,
		RequestsPerSecond: 1000,
		MaxRetries:        2,
	}, testLogger())
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/artist" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if got := r.URL.Query().Get("limit"); got != "10" {
			t.Errorf("limit = %q, want 10", got)
		}
		w.Write(loadFixture(t, "search_artists.json"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	candidates, err := c.Search(context.Background(), "amelie lens", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].Name != "Amelie Lens" || candidates[0].Popularity != 72 {
		t.Errorf("unexpected first candidate: %+v", candidates[0])
	}
	// The highest-resolution artwork variant wins.
	if candidates[0].ArtworkURL != "https://img.example/cat-001-large.jpg" {
		t.Errorf("unexpected artwork: %q", candidates[0].ArtworkURL)
	}
	if candidates[1].ArtworkURL != "" {
		t.Errorf("expected no artwork for second candidate, got %q", candidates[1].ArtworkURL)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	c := newTestClient(t, "http://localhost")
	candidates, err := c.Search(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if candidates != nil {
		t.Errorf("expected nil, got %v", candidates)
	}
}

func TestSearchRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(loadFixture(t, "search_artists.json"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	candidates, err := c.Search(context.Background(), "amelie lens", 10)
	if err != nil {
		t.Fatalf("Search after retry: %v", err)
	}
	if len(candidates) != 2 {
		t.Errorf("expected 2 candidates, got %d", len(candidates))
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestSearchExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Search(context.Background(), "amelie lens", 10)
	var unavailable *ErrUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSearchSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write(loadFixture(t, "search_artists.json"))
	}))
	defer srv.Close()

	c := NewClient(Options{
		BaseURL:           srv.URL,
		Tokens:            staticTokenSource{},
		RequestsPerSecond: 1000,
	}, testLogger())
	if _, err := c.Search(context.Background(), "amelie lens", 10); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("authorization = %q", gotAuth)
	}
}

func TestBestArtwork(t *testing.T) {
	images := []imageResult{
		{URL: "small", Width: 64, Height: 64},
		{URL: "large", Width: 640, Height: 640},
		{URL: ""},
	}
	if got := bestArtwork(images); got != "large" {
		t.Errorf("bestArtwork = %q, want large", got)
	}
	if got := bestArtwork(nil); got != "" {
		t.Errorf("bestArtwork(nil) = %q, want empty", got)
	}
}
