package prices

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stuartb55/octopusagile/pkg/cache"
)

// Cycle scopes memoization to one logical request. Repeated or concurrent
// calls for the same window share a single fetch.
type Cycle struct {
	ID      uuid.UUID
	service *Service
	series  *cache.Memo[int, FetchResult[[]PricePoint]]
	logger  zerolog.Logger
}

// NewCycle starts a request cycle.
func (s *Service) NewCycle() *Cycle {
	id := uuid.New()
	return &Cycle{
		ID:      id,
		service: s,
		series:  cache.NewMemo[int, FetchResult[[]PricePoint]](),
		logger:  s.logger.With().Str("cycle", id.String()).Logger(),
	}
}

// GetEnergyPrices is Service.GetEnergyPrices memoized by clamped days.
// The context of the first caller drives the shared fetch.
func (c *Cycle) GetEnergyPrices(ctx context.Context, days int) FetchResult[[]PricePoint] {
	days = c.service.ClampDays(days)
	return c.series.Do(days, func() FetchResult[[]PricePoint] {
		return c.service.fetch(ctx, days, c.logger)
	})
}

// GetCurrentPrice is Service.GetCurrentPrice sharing the cycle's one-day fetch.
func (c *Cycle) GetCurrentPrice(ctx context.Context) FetchResult[*PricePoint] {
	return c.service.current(c.GetEnergyPrices(ctx, 1))
}

// Reset discards memoized results.
func (c *Cycle) Reset() {
	c.series.Reset()
}
