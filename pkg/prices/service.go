package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stuartb55/octopusagile/pkg/client"
	"github.com/stuartb55/octopusagile/pkg/pagination"
	"github.com/stuartb55/octopusagile/pkg/ratelimit"
	"github.com/stuartb55/octopusagile/pkg/validation"
)

// isoLayout is the millisecond UTC format the pricing API expects.
const isoLayout = "2006-01-02T15:04:05.000Z"

var (
	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agile_prices_fetches_total",
		Help: "Total price fetches by result",
	}, []string{"result"})

	pagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agile_prices_pages_total",
		Help: "Total pricing API pages fetched",
	})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agile_prices_fetch_duration_seconds",
		Help:    "Duration of a complete price fetch across all pages",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	lastPoints = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agile_prices_last_fetch_points",
		Help: "Number of price points returned by the last successful fetch",
	})
)

// Config holds the price service configuration.
type Config struct {
	// BaseURL of the pricing API, e.g. https://api.octopus.energy/v1
	BaseURL string

	ProductCode string
	TariffCode  string

	// MaxDays is the upper clamp for the days argument
	MaxDays int

	// MaxResults stops pagination once exceeded
	MaxResults int

	// MaxPages is the pagination loop-safety ceiling
	MaxPages int

	// Revalidate is the transport cache revalidation hint
	Revalidate time.Duration

	// Location defines calendar day boundaries
	Location *time.Location
}

// DefaultConfig returns the configuration for the public Agile tariff in
// the South Eastern region.
func DefaultConfig() Config {
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		loc = time.UTC
	}
	return Config{
		BaseURL:     "https://api.octopus.energy/v1",
		ProductCode: "AGILE-24-10-01",
		TariffCode:  "E-1R-AGILE-24-10-01-C",
		MaxDays:     30,
		MaxResults:  5000,
		MaxPages:    50,
		Revalidate:  5 * time.Minute,
		Location:    loc,
	}
}

// Getter is the HTTP collaborator the service fetches pages through.
type Getter interface {
	GetJSON(ctx context.Context, rawURL string, revalidate time.Duration) (*client.Response, error)
}

// Service fetches price series.
type Service struct {
	getter  Getter
	limiter *ratelimit.Limiter
	config  Config
	host    string
	logger  zerolog.Logger
	now     func() time.Time
}

// NewService creates a price service. Every page request runs through limiter.
func NewService(getter Getter, limiter *ratelimit.Limiter, cfg Config) (*Service, error) {
	if getter == nil {
		return nil, fmt.Errorf("getter is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}

	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.ProductCode == "" {
		cfg.ProductCode = defaults.ProductCode
	}
	if cfg.TariffCode == "" {
		cfg.TariffCode = defaults.TariffCode
	}
	if cfg.MaxDays <= 0 {
		cfg.MaxDays = defaults.MaxDays
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaults.MaxResults
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaults.MaxPages
	}
	if cfg.Location == nil {
		cfg.Location = defaults.Location
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !validation.ValidateURL(cfg.BaseURL, base.Host) {
		return nil, fmt.Errorf("base url must be an absolute https url: %q", cfg.BaseURL)
	}

	return &Service{
		getter:  getter,
		limiter: limiter,
		config:  cfg,
		host:    base.Host,
		logger:  log.With().Str("component", "prices").Logger(),
		now:     time.Now,
	}, nil
}

// Config returns the service configuration.
func (s *Service) Config() Config {
	return s.config
}

// SetClock replaces the time source used for windows and current-slot lookup.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// ClampDays silently bounds days to [1, MaxDays].
func (s *Service) ClampDays(days int) int {
	if days < 1 {
		return 1
	}
	if days > s.config.MaxDays {
		return s.config.MaxDays
	}
	return days
}

// Window returns the period requested for days: from local midnight days ago
// to the last millisecond of tomorrow.
func (s *Service) Window(days int) (time.Time, time.Time) {
	now := s.now().In(s.config.Location)
	y, m, d := now.Date()

	from := time.Date(y, m, d-days, 0, 0, 0, 0, s.config.Location)
	to := time.Date(y, m, d+1, 23, 59, 59, int(999*time.Millisecond), s.config.Location)
	return from, to
}

// RatesURL builds the first page URL for a window.
func (s *Service) RatesURL(from, to time.Time) string {
	query := url.Values{}
	query.Set("period_from", from.UTC().Format(isoLayout))
	query.Set("period_to", to.UTC().Format(isoLayout))

	return fmt.Sprintf("%s/products/%s/electricity-tariffs/%s/standard-unit-rates/?%s",
		s.config.BaseURL,
		url.PathEscape(s.config.ProductCode),
		url.PathEscape(s.config.TariffCode),
		query.Encode())
}

// GetEnergyPrices fetches every price point from local midnight days ago
// through tomorrow. The series is in upstream order, which is not guaranteed
// to be sorted.
func (s *Service) GetEnergyPrices(ctx context.Context, days int) FetchResult[[]PricePoint] {
	return s.fetch(ctx, days, s.logger)
}

// GetCurrentPrice returns the point whose period contains now.
func (s *Service) GetCurrentPrice(ctx context.Context) FetchResult[*PricePoint] {
	return s.current(s.GetEnergyPrices(ctx, 1))
}

func (s *Service) current(series FetchResult[[]PricePoint]) FetchResult[*PricePoint] {
	if !series.OK() {
		return Failed[*PricePoint](series.Error)
	}

	now := s.now()
	for i := range series.Data {
		if series.Data[i].Contains(now) {
			p := series.Data[i]
			return Succeeded(&p)
		}
	}

	return Failed[*PricePoint](NoCurrentPriceMessage)
}

func (s *Service) fetch(ctx context.Context, days int, logger zerolog.Logger) FetchResult[[]PricePoint] {
	start := time.Now()
	days = s.ClampDays(days)
	from, to := s.Window(days)

	walker := pagination.NewWalker[PricePoint](pagination.FetcherFunc[PricePoint](s.fetchPage), pagination.Config{
		MaxPages:   s.config.MaxPages,
		MaxResults: s.config.MaxResults,
		AllowNext: func(next string) bool {
			return validation.ValidateURL(next, s.host)
		},
	})

	series, summary, err := walker.FetchAll(ctx, s.RatesURL(from, to))
	fetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		fetchesTotal.WithLabelValues(errorKind(err)).Inc()
		logger.Error().
			Err(err).
			Int("days", days).
			Int("pages", summary.Pages).
			Msg("Failed to fetch energy prices")
		return Failed[[]PricePoint](errorMessage(err))
	}

	if series == nil {
		series = []PricePoint{}
	}

	fetchesTotal.WithLabelValues("success").Inc()
	lastPoints.Set(float64(len(series)))
	logger.Info().
		Int("days", days).
		Int("pages", summary.Pages).
		Int("points", len(series)).
		Str("stop_reason", string(summary.StopReason)).
		Dur("duration", time.Since(start)).
		Msg("Fetched energy prices")

	return Succeeded(series)
}

// fetchPage performs one rate-limited GET and validates the body before
// decoding it.
func (s *Service) fetchPage(ctx context.Context, pageURL string) (*pagination.Page[PricePoint], error) {
	var body []byte
	err := s.limiter.Execute(ctx, func(ctx context.Context) error {
		resp, err := s.getter.GetJSON(ctx, pageURL, s.config.Revalidate)
		if err != nil {
			return err
		}
		body = resp.Body
		return nil
	})
	if err != nil {
		return nil, err
	}
	pagesTotal.Inc()

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if !validation.ValidateAPIPage(raw) {
		return nil, fmt.Errorf("%w: page failed validation", ErrInvalidFormat)
	}

	var page wirePage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	points := make([]PricePoint, 0, len(page.Results))
	for _, w := range page.Results {
		points = append(points, w.point())
	}

	return &pagination.Page[PricePoint]{
		Count:    page.Count,
		Next:     page.Next,
		Previous: page.Previous,
		Results:  points,
	}, nil
}
