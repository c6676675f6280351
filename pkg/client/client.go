// Package client performs GET requests against the pricing API, returning
// the status and JSON body, with an optional Redis revalidation cache.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stuartb55/octopusagile/pkg/cache"
	"github.com/stuartb55/octopusagile/pkg/ratelimit"
)

// Prometheus metrics for pricing API requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agile_api_requests_total",
		Help: "Total pricing API requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agile_api_request_duration_seconds",
		Help:    "Pricing API request duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agile_api_errors_total",
		Help: "Total pricing API errors by class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// User-Agent header sent with every request
	UserAgent string

	// Timeout for the underlying HTTP client
	Timeout time.Duration

	// Cache is optional; nil disables transport caching
	Cache *cache.Manager

	// Retention is how long cached responses are kept after revalidation
	Retention time.Duration
}

// DefaultConfig returns a configuration without caching.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
		Retention: 24 * time.Hour,
	}
}

// Response is a completed GET.
type Response struct {
	StatusCode int
	Body       []byte

	// FromCache is true when no new body was downloaded
	FromCache bool
}

// Client is the pricing API HTTP client.
type Client struct {
	httpClient *http.Client
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
	now        func() time.Time
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cfg.Cache,
		config:     cfg,
		logger:     log.With().Str("component", "api-client").Logger(),
		now:        time.Now,
	}, nil
}

// GetJSON fetches rawURL. A cached response younger than revalidate is
// returned without a network call; an older one is revalidated with a
// conditional request. A zero revalidate bypasses the cache.
//
// Non-2xx responses are returned as *APIError, except 429 which becomes a
// *ratelimit.RateLimitError wrapping the APIError.
func (c *Client) GetJSON(ctx context.Context, rawURL string, revalidate time.Duration) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	useCache := c.cache != nil && revalidate > 0
	key := cache.KeyFromURL(u)
	now := c.now()

	var cached *cache.CacheEntry
	if useCache {
		cached, err = c.cache.Get(ctx, key)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("url", rawURL).Msg("Cache get error")
		}
		if cached != nil && !cached.NeedsRevalidation(now) {
			c.logger.Debug().Str("url", rawURL).Msg("Serving fresh cached response")
			return &Response{StatusCode: cached.StatusCode, Body: cached.Data, FromCache: true}, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	if cached != nil && cache.ShouldMakeConditionalRequest(cached) {
		cache.AddConditionalHeaders(req, cached)
		c.logger.Debug().
			Str("url", rawURL).
			Str("etag", cached.ETag).
			Msg("Making conditional request")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		// The caller's context takes precedence over the transport error
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, &APIError{Class: ErrorClassNetwork, Message: "GET " + u.Path, Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusNotModified && cached != nil {
		cache.Revalidations.WithLabelValues("not_modified").Inc()
		cached.Refresh(now, revalidate, c.config.Retention)
		if err := c.cache.Set(ctx, key, cached); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to refresh cached response")
		}
		c.logger.Debug().Str("url", rawURL).Msg("304 Not Modified - using cache")
		return &Response{StatusCode: cached.StatusCode, Body: cached.Data, FromCache: true}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.statusError(resp, now)
	}

	if cached != nil {
		cache.Revalidations.WithLabelValues("modified").Inc()
	}

	if !useCache {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &APIError{Class: ErrorClassNetwork, Message: "read body", Err: err}
		}
		return &Response{StatusCode: resp.StatusCode, Body: body}, nil
	}

	entry, err := cache.ResponseToEntry(resp, now, revalidate, c.config.Retention)
	if err != nil {
		return nil, &APIError{Class: ErrorClassNetwork, Message: "read body", Err: err}
	}
	if err := c.cache.Set(ctx, key, entry); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to cache response")
	}

	return &Response{StatusCode: resp.StatusCode, Body: entry.Data}, nil
}

// statusError converts a non-2xx response into the error taxonomy.
func (c *Client) statusError(resp *http.Response, now time.Time) error {
	class := Classify(resp.StatusCode)
	errorsTotal.WithLabelValues(string(class)).Inc()

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Class:      class,
		Message:    http.StatusText(resp.StatusCode),
	}

	c.logger.Warn().
		Int("status", resp.StatusCode).
		Str("error_class", string(class)).
		Msg("Pricing API request error")

	if class == ErrorClassRateLimit {
		return &ratelimit.RateLimitError{
			Message:    "upstream rate limit exceeded",
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), now),
			Err:        apiErr,
		}
	}

	return apiErr
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
