package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for limiter operations, labelled by limiter name.
var (
	limiterRecentRequests = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "agile_ratelimit_recent_requests",
		Help: "Number of calls inside the current sliding window",
	}, []string{"limiter"})

	limiterWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agile_ratelimit_wait_seconds",
		Help:    "Time spent waiting for request budget",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60},
	}, []string{"limiter"})

	limiterRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agile_ratelimit_rejections_total",
		Help: "Calls rejected because the required wait exceeded the maximum",
	}, []string{"limiter"})

	limiterRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agile_ratelimit_retries_total",
		Help: "Retry attempts by error class",
	}, []string{"limiter", "error_class"})

	limiterRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agile_ratelimit_retry_exhausted_total",
		Help: "Calls that failed after exhausting all retries",
	}, []string{"limiter"})

	limiterTimeoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agile_ratelimit_timeouts_total",
		Help: "Attempts abandoned after the per-call timeout",
	}, []string{"limiter"})
)

// Work is a unit of work executed by a Limiter. The context is cancelled when
// the per-call timeout fires.
type Work func(ctx context.Context) error

// Limiter enforces a sliding-window request budget and minimum call spacing
// for one upstream target. It is safe for concurrent use; its timestamp
// history is shared by every caller of the same instance.
type Limiter struct {
	name   string
	config Config
	logger zerolog.Logger

	mu          sync.Mutex
	recent      []time.Time
	lastRequest time.Time

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// New creates a Limiter. The name labels its metrics and log lines.
func New(name string, cfg Config, logger zerolog.Logger) *Limiter {
	return &Limiter{
		name:   name,
		config: cfg.withDefaults(),
		logger: logger.With().Str("component", "ratelimit").Str("limiter", name).Logger(),
		now:    time.Now,
		sleep:  sleepContext,
		jitter: rand.Float64,
	}
}

// Config returns the limiter configuration.
func (l *Limiter) Config() Config {
	return l.config
}

// Execute runs work once the request budget allows it, retrying failures with
// exponential backoff. Rate limit errors, timeouts, cancellation and explicit
// 401/403/404 failures are returned immediately. After MaxRetries additional
// attempts the last error is returned joined with ErrRetryExhausted.
func (l *Limiter) Execute(ctx context.Context, work Work) error {
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := l.acquire(ctx); err != nil {
			return err
		}

		err := l.run(ctx, work)
		if err == nil {
			if attempt > 0 {
				l.logger.Info().Int("attempt", attempt+1).Msg("Call succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			l.logger.Debug().Err(err).Str("error_class", errorClass(err)).Msg("Non-retryable failure")
			return err
		}

		if attempt >= l.config.MaxRetries {
			break
		}

		delay := l.backoff(attempt)
		limiterRetriesTotal.WithLabelValues(l.name, errorClass(err)).Inc()
		l.logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("Retrying after backoff")

		if err := l.sleep(ctx, delay); err != nil {
			return fmt.Errorf("backoff interrupted: %w", err)
		}
	}

	limiterRetryExhaustedTotal.WithLabelValues(l.name).Inc()
	l.logger.Error().
		Err(lastErr).
		Int("max_retries", l.config.MaxRetries).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, l.config.MaxRetries+1, lastErr)
}

// acquire blocks until a call may start and records it. The check and the
// record happen under the same lock.
func (l *Limiter) acquire(ctx context.Context) error {
	var waited time.Duration
	for {
		l.mu.Lock()
		now := l.now()
		retryAfter := l.retryAfterLocked(now)
		if retryAfter <= 0 {
			l.recent = append(l.recent, now)
			l.lastRequest = now
			limiterRecentRequests.WithLabelValues(l.name).Set(float64(len(l.recent)))
			l.mu.Unlock()
			if waited > 0 {
				limiterWaitSeconds.WithLabelValues(l.name).Observe(waited.Seconds())
			}
			return nil
		}
		recent := len(l.recent)
		l.mu.Unlock()

		if retryAfter > l.config.MaxWait {
			limiterRejectionsTotal.WithLabelValues(l.name).Inc()
			l.logger.Warn().
				Dur("retry_after", retryAfter).
				Int("recent_requests", recent).
				Msg("Request budget exhausted")
			return &RateLimitError{
				Message:    fmt.Sprintf("%d requests in the last %s", recent, l.config.Window),
				RetryAfter: retryAfter,
			}
		}

		l.logger.Debug().Dur("retry_after", retryAfter).Msg("Waiting for request budget")
		if err := l.sleep(ctx, retryAfter); err != nil {
			return err
		}
		waited += retryAfter
	}
}

// retryAfterLocked prunes the window and returns how long a caller must wait
// before the next call, or zero.
func (l *Limiter) retryAfterLocked(now time.Time) time.Duration {
	l.pruneLocked(now)

	if len(l.recent) >= l.config.MaxRequests {
		return l.recent[0].Add(l.config.Window).Sub(now)
	}

	if !l.lastRequest.IsZero() {
		if elapsed := now.Sub(l.lastRequest); elapsed < l.config.MinInterval {
			return l.config.MinInterval - elapsed
		}
	}

	return 0
}

func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.config.Window)
	i := 0
	for i < len(l.recent) && !l.recent[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.recent = append(l.recent[:0], l.recent[i:]...)
	}
}

// run invokes work racing against the per-call timeout. On timeout the
// attempt is abandoned and its eventual result ignored.
func (l *Limiter) run(ctx context.Context, work Work) error {
	callCtx, cancel := context.WithTimeout(ctx, l.config.CallTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- work(callCtx)
	}()

	select {
	case err := <-done:
		if err != nil && l.timedOut(ctx, callCtx) {
			return l.timeoutError()
		}
		return err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return l.timeoutError()
	}
}

func (l *Limiter) timedOut(parent, call context.Context) bool {
	return parent.Err() == nil && errors.Is(call.Err(), context.DeadlineExceeded)
}

func (l *Limiter) timeoutError() error {
	limiterTimeoutsTotal.WithLabelValues(l.name).Inc()
	return &TimeoutError{
		Message: "request did not complete in time",
		Timeout: l.config.CallTimeout,
	}
}

// backoff returns min(base * 2^attempt, max) plus up to 10% jitter.
func (l *Limiter) backoff(attempt int) time.Duration {
	delay := float64(l.config.BaseBackoff) * math.Pow(2, float64(attempt))
	if delay > float64(l.config.MaxBackoff) {
		delay = float64(l.config.MaxBackoff)
	}
	delay += l.jitter() * backoffJitterFactor * delay
	return time.Duration(delay)
}

// Stats prunes the window and reports the limiter state. It never records a
// call.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	retryAfter := l.retryAfterLocked(now)
	limiterRecentRequests.WithLabelValues(l.name).Set(float64(len(l.recent)))

	stats := Stats{
		RecentRequestCount: len(l.recent),
		Window:             l.config.Window,
		CanMakeRequestNow:  retryAfter <= 0,
	}
	if retryAfter > 0 {
		next := now.Add(retryAfter)
		stats.NextAvailableTime = &next
	}
	return stats
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
