// Package server serves the price dashboard, its JSON API and the chart over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/stuartb55/octopusagile/internal/dashboard"
	"github.com/stuartb55/octopusagile/pkg/metrics"
	"github.com/stuartb55/octopusagile/pkg/prices"
	"github.com/stuartb55/octopusagile/pkg/validation"
)

// Pinger reports whether a backing store is reachable. *cache.Manager
// satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the listener.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Bounds          validation.DaysBounds
	Location        *time.Location
}

// Server is the HTTP front end.
type Server struct {
	prices    *prices.Service
	dashboard *dashboard.Builder
	store     Pinger
	opts      Options
	logger    zerolog.Logger
	router    chi.Router
}

// New wires the routes. store may be nil when no cache is configured.
func New(svc *prices.Service, builder *dashboard.Builder, store Pinger, opts Options, logger zerolog.Logger) *Server {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		prices:    svc,
		dashboard: builder,
		store:     store,
		opts:      opts,
		logger:    logger.With().Str("component", "server").Logger(),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleDashboardPage)
	r.Get("/chart.png", s.handleChart)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/prices", s.handlePrices)
		r.Get("/prices/current", s.handleCurrentPrice)
		r.Get("/dashboard", s.handleDashboardJSON)
	})

	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request served")
	})
}
