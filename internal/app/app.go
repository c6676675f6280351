// Package app wires configuration into the price service and its front ends.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stuartb55/octopusagile/internal/config"
	"github.com/stuartb55/octopusagile/internal/dashboard"
	"github.com/stuartb55/octopusagile/internal/scheduler"
	"github.com/stuartb55/octopusagile/internal/server"
	"github.com/stuartb55/octopusagile/pkg/cache"
	"github.com/stuartb55/octopusagile/pkg/client"
	"github.com/stuartb55/octopusagile/pkg/prices"
	"github.com/stuartb55/octopusagile/pkg/ratelimit"
	"github.com/stuartb55/octopusagile/pkg/render"
)

// limiterName labels the pricing API limiter in logs and metrics.
const limiterName = "octopus"

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// openCache connects to Redis when configured. A nil manager means caching
// is disabled.
func (a *App) openCache(ctx context.Context) (*cache.Manager, func(), error) {
	if a.Config.Redis.Addr == "" {
		return nil, func() {}, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})

	manager := cache.NewManager(redisClient)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := manager.Ping(pingCtx); err != nil {
		_ = redisClient.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", a.Config.Redis.Addr, err)
	}
	a.Logger.Info().Str("addr", a.Config.Redis.Addr).Msg("Connected to Redis")

	closer := func() {
		if err := redisClient.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
	return manager, closer, nil
}

// NewService builds the rate-limited price service on top of manager, which
// may be nil.
func (a *App) NewService(manager *cache.Manager) (*prices.Service, error) {
	httpClient, err := client.New(client.Config{
		UserAgent: a.Config.Octopus.UserAgent,
		Timeout:   a.Config.Octopus.HTTPTimeout,
		Cache:     manager,
		Retention: a.Config.Redis.Retention,
	})
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.New(limiterName, a.Config.LimiterConfig(), a.Logger)
	return prices.NewService(httpClient, limiter, a.Config.PricesConfig())
}

// Serve runs the HTTP server and, when enabled, the scheduled refresh until
// SIGINT or SIGTERM.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	manager, closeCache, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	defer closeCache()

	svc, err := a.NewService(manager)
	if err != nil {
		return err
	}

	loc := a.Config.Location()
	builder := dashboard.NewBuilder(a.Config.DaysBounds(), loc, a.Logger)

	var store server.Pinger
	if manager != nil {
		store = manager
	}
	srv := server.New(svc, builder, store, server.Options{
		Addr:            a.Config.Server.Addr,
		ReadTimeout:     a.Config.Server.ReadTimeout,
		WriteTimeout:    a.Config.Server.WriteTimeout,
		ShutdownTimeout: a.Config.Server.ShutdownTimeout,
		Bounds:          a.Config.DaysBounds(),
		Location:        loc,
	}, a.Logger)

	if a.Config.Scheduler.Enabled {
		sched := scheduler.New(scheduler.Options{
			Interval:     a.Config.Scheduler.Interval,
			AlignToSlot:  a.Config.Scheduler.AlignToSlot,
			StartupDelay: a.Config.Scheduler.StartupDelay,
		}, a.Logger)

		go func() {
			err := sched.Run(ctx, scheduler.RefreshCurrentPrice(svc, a.Logger))
			if err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error().Err(err).Msg("Scheduler stopped")
			}
		}()
	}

	return srv.Run(ctx)
}

// PrintPrices writes the grouped price table for days to w.
func (a *App) PrintPrices(ctx context.Context, w io.Writer, days int) error {
	series, err := a.fetchSeries(ctx, days)
	if err != nil {
		return err
	}
	return render.WriteTable(w, series, time.Now(), a.Config.Location())
}

// WriteChart renders the price chart for days to a PNG file at path.
func (a *App) WriteChart(ctx context.Context, path string, days int) error {
	series, err := a.fetchSeries(ctx, days)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	opts := render.DefaultChartOptions()
	opts.Location = a.Config.Location()
	if err := render.WriteChartPNG(file, series, opts); err != nil {
		return err
	}

	a.Logger.Info().Str("path", path).Int("points", len(series)).Msg("Chart written")
	return nil
}

func (a *App) fetchSeries(ctx context.Context, days int) ([]prices.PricePoint, error) {
	manager, closeCache, err := a.openCache(ctx)
	if err != nil {
		return nil, err
	}
	defer closeCache()

	svc, err := a.NewService(manager)
	if err != nil {
		return nil, err
	}

	result := svc.GetEnergyPrices(ctx, days)
	if !result.OK() {
		return nil, errors.New(result.Error)
	}
	return result.Data, nil
}
