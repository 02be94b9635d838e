// file: internal/metadata/tmdb.go
// version: 1.0.0
// guid: 7f2c5a18-9d3e-4b61-a7f0-e4b8c1d6a903

package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/jdfalk/mediashare/internal/logging"
	"github.com/jdfalk/mediashare/internal/metrics"
)

const breakerName = "tmdb"

// TMDBConfig configures a TMDBClient.
type TMDBConfig struct {
	APIKey       string
	BaseURL      string
	ImageBaseURL string
	Timeout      time.Duration
	RatePerSec   float64
}

// TMDBClient searches The Movie Database.
type TMDBClient struct {
	httpClient   *http.Client
	apiKey       string
	baseURL      string
	imageBaseURL string
	limiter      *rate.Limiter
	cb           *gobreaker.CircuitBreaker[[]Match]
}

type tmdbResult struct {
	Title        string   `json:"title"`
	Name         string   `json:"name"`
	ReleaseDate  string   `json:"release_date"`
	FirstAirDate string   `json:"first_air_date"`
	PosterPath   string   `json:"poster_path"`
	BackdropPath string   `json:"backdrop_path"`
	VoteAverage  *float64 `json:"vote_average"`
	Overview     string   `json:"overview"`
}

type tmdbSearchResponse struct {
	Page    int          `json:"page"`
	Results []tmdbResult `json:"results"`
}

// NewTMDBClient creates a client. Every request is bounded by cfg.Timeout and
// paced by cfg.RatePerSec (<= 0 disables pacing).
func NewTMDBClient(cfg TMDBConfig) *TMDBClient {
	limit := rate.Inf
	burst := 1
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
		burst = max(1, int(cfg.RatePerSec))
	}

	c := &TMDBClient{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		apiKey:       strings.TrimSpace(cfg.APIKey),
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
		limiter:      rate.NewLimiter(limit, burst),
	}

	metrics.SetBreakerState(breakerName, 0)
	c.cb = gobreaker.NewCircuitBreaker[[]Match](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// An empty result is a healthy answer
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoResults)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.SetBreakerState(name, stateValue(to))
		},
	})
	return c
}

// Name returns the display name for this metadata source.
func (c *TMDBClient) Name() string {
	return "TMDB"
}

// Enabled reports whether an API key is configured.
func (c *TMDBClient) Enabled() bool {
	return c.apiKey != ""
}

// ImageURL returns the absolute URL of a poster or backdrop path.
func (c *TMDBClient) ImageURL(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.imageBaseURL + "/" + strings.TrimLeft(path, "/")
}

// Search queries /search/tv or /search/movie. The year filter is sent only for
// movies.
func (c *TMDBClient) Search(ctx context.Context, q Query) ([]Match, error) {
	if !c.Enabled() {
		return nil, ErrSourceDisabled
	}
	if strings.TrimSpace(q.Title) == "" {
		return nil, ErrNoResults
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	start := time.Now()
	matches, err := c.cb.Execute(func() ([]Match, error) {
		return c.search(ctx, q)
	})
	metrics.ObserveRemoteLookup(time.Since(start))
	return matches, err
}

func (c *TMDBClient) search(ctx context.Context, q Query) ([]Match, error) {
	kind := "movie"
	if q.IsSeries {
		kind = "tv"
	}
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("query", q.Title)
	if q.Year != "" && !q.IsSeries {
		params.Set("year", q.Year)
	}
	searchURL := fmt.Sprintf("%s/search/%s?%s", c.baseURL, kind, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("search %s returned status %d", kind, resp.StatusCode)
	}

	var body tmdbSearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if len(body.Results) == 0 {
		return nil, ErrNoResults
	}

	matches := make([]Match, 0, len(body.Results))
	for _, r := range body.Results {
		m := Match{
			Title:        r.Title,
			Year:         yearOf(r.ReleaseDate),
			PosterPath:   r.PosterPath,
			BackdropPath: r.BackdropPath,
			Rating:       r.VoteAverage,
			Overview:     r.Overview,
		}
		if q.IsSeries {
			m.Title = r.Name
			m.Year = yearOf(r.FirstAirDate)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func yearOf(date string) string {
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
