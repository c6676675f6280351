package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StopReason explains why a walk ended.
type StopReason string

const (
	// StopLastPage means the final page had no next link.
	StopLastPage StopReason = "last_page"

	// StopRejectedNext means the next link failed the AllowNext guard.
	StopRejectedNext StopReason = "rejected_next"

	// StopResultCap means the accumulated results exceeded MaxResults.
	StopResultCap StopReason = "result_cap"

	// StopPageCeiling means MaxPages pages were requested.
	StopPageCeiling StopReason = "page_ceiling"
)

// Page is one page of a `next`-linked listing.
type Page[T any] struct {
	Count    int
	Next     *string
	Previous *string
	Results  []T
}

// PageFetcher fetches and decodes a single page.
type PageFetcher[T any] interface {
	FetchPage(ctx context.Context, url string) (*Page[T], error)
}

// FetcherFunc adapts a function to PageFetcher.
type FetcherFunc[T any] func(ctx context.Context, url string) (*Page[T], error)

// FetchPage calls f.
func (f FetcherFunc[T]) FetchPage(ctx context.Context, url string) (*Page[T], error) {
	return f(ctx, url)
}

// Config holds walker configuration.
type Config struct {
	// MaxPages is the loop-safety ceiling on page requests
	MaxPages int

	// MaxResults stops the walk once exceeded
	MaxResults int

	// AllowNext guards every next link; nil accepts all
	AllowNext func(next string) bool
}

// DefaultConfig returns the ceilings used for the pricing API.
func DefaultConfig() Config {
	return Config{
		MaxPages:   50,
		MaxResults: 5000,
	}
}

// Summary describes a completed walk.
type Summary struct {
	Pages      int
	Results    int
	StopReason StopReason
	Duration   time.Duration
}

// Walker follows next links page by page.
type Walker[T any] struct {
	fetcher PageFetcher[T]
	config  Config
	logger  zerolog.Logger
}

// NewWalker creates a new walker.
func NewWalker[T any](fetcher PageFetcher[T], config Config) *Walker[T] {
	defaults := DefaultConfig()
	if config.MaxPages <= 0 {
		config.MaxPages = defaults.MaxPages
	}
	if config.MaxResults <= 0 {
		config.MaxResults = defaults.MaxResults
	}

	return &Walker[T]{
		fetcher: fetcher,
		config:  config,
		logger:  log.With().Str("component", "pagination").Logger(),
	}
}

// FetchAll walks from firstURL and returns every result in upstream order.
func (w *Walker[T]) FetchAll(ctx context.Context, firstURL string) ([]T, Summary, error) {
	start := time.Now()
	var (
		results []T
		summary Summary
	)

	url := firstURL
	for {
		if err := ctx.Err(); err != nil {
			return nil, summary, err
		}

		page, err := w.fetcher.FetchPage(ctx, url)
		summary.Pages++
		if err != nil {
			return nil, summary, fmt.Errorf("fetch page %d: %w", summary.Pages, err)
		}

		results = append(results, page.Results...)
		summary.Results = len(results)

		w.logger.Debug().
			Int("page", summary.Pages).
			Int("page_results", len(page.Results)).
			Int("total_results", summary.Results).
			Msg("Fetched page")

		if reason, done := w.stop(page, summary); done {
			summary.StopReason = reason
			break
		}
		url = *page.Next
	}

	summary.Duration = time.Since(start)

	w.logger.Debug().
		Int("pages", summary.Pages).
		Int("results", summary.Results).
		Str("stop_reason", string(summary.StopReason)).
		Dur("duration", summary.Duration).
		Msg("Pagination complete")

	return results, summary, nil
}

// stop decides whether the walk ends after page.
func (w *Walker[T]) stop(page *Page[T], summary Summary) (StopReason, bool) {
	if page.Next == nil || *page.Next == "" {
		return StopLastPage, true
	}

	if w.config.AllowNext != nil && !w.config.AllowNext(*page.Next) {
		w.logger.Warn().
			Str("next", *page.Next).
			Int("page", summary.Pages).
			Msg("Rejected next page URL, stopping pagination")
		return StopRejectedNext, true
	}

	if summary.Results > w.config.MaxResults {
		w.logger.Warn().
			Int("results", summary.Results).
			Int("max_results", w.config.MaxResults).
			Msg("Result cap exceeded, stopping pagination")
		return StopResultCap, true
	}

	if summary.Pages >= w.config.MaxPages {
		w.logger.Warn().
			Int("max_pages", w.config.MaxPages).
			Msg("Page ceiling reached, stopping pagination")
		return StopPageCeiling, true
	}

	return "", false
}
