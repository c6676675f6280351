// Package scheduler refreshes the current price on half-hour slot boundaries.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/stuartb55/octopusagile/pkg/prices"
)

// SlotInterval is the length of one Agile pricing slot.
const SlotInterval = 30 * time.Minute

var (
	currentPrice = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agile_current_price_pence",
		Help: "Current inc-VAT unit rate in pence per kWh",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agile_scheduler_runs_total",
		Help: "Scheduled refreshes by result",
	}, []string{"result"})
)

// TickFunc is invoked on every aligned interval.
type TickFunc func(ctx context.Context, slot time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	AlignToSlot  bool
	StartupDelay time.Duration
}

// Scheduler drives aligned execution of refresh jobs.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{
		opts:   opts,
		logger: logger.With().Str("component", "scheduler").Logger(),
		now:    time.Now,
	}
}

// Run blocks, invoking tick at each aligned interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	next := s.nextTick(s.now().UTC())
	for {
		delay := next.Sub(s.now())
		if delay < 0 {
			next = s.nextTick(s.now().UTC())
			delay = next.Sub(s.now())
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_slot", next).Msg("waiting for next slot")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		slot := s.slotStart(next)
		if err := tick(ctx, slot); err != nil {
			s.logger.Error().Err(err).Time("slot", slot).Msg("tick execution failed")
		}

		next = next.Add(s.opts.Interval)
	}
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToSlot {
		return now.Add(s.opts.Interval)
	}
	slot := now.Truncate(s.opts.Interval)
	if !slot.After(now) {
		slot = slot.Add(s.opts.Interval)
	}
	return slot
}

func (s *Scheduler) slotStart(t time.Time) time.Time {
	if !s.opts.AlignToSlot {
		return t
	}
	return t.Truncate(s.opts.Interval)
}

// ErrNoCurrentPrice is returned by a refresh that found no covering slot.
var ErrNoCurrentPrice = errors.New(prices.NoCurrentPriceMessage)

// CurrentPriceSource is satisfied by *prices.Service.
type CurrentPriceSource interface {
	NewCycle() *prices.Cycle
}

// RefreshCurrentPrice returns a TickFunc that opens a fresh cycle per slot,
// fetches the current price and publishes it on the price gauge.
func RefreshCurrentPrice(source CurrentPriceSource, logger zerolog.Logger) TickFunc {
	return func(ctx context.Context, slot time.Time) error {
		cycle := source.NewCycle()
		result := cycle.GetCurrentPrice(ctx)
		if !result.OK() {
			runsTotal.WithLabelValues("error").Inc()
			if result.Error == prices.NoCurrentPriceMessage {
				return ErrNoCurrentPrice
			}
			return errors.New(result.Error)
		}

		current := result.Data
		currentPrice.Set(current.ValueIncVAT)
		runsTotal.WithLabelValues("success").Inc()

		logger.Info().
			Str("cycle", cycle.ID.String()).
			Time("slot", slot).
			Time("valid_from", current.ValidFrom).
			Float64("value_inc_vat", current.ValueIncVAT).
			Msg("current price refreshed")
		return nil
	}
}
