package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"github.com/stuartb55/octopusagile/pkg/prices"
	"github.com/stuartb55/octopusagile/pkg/render"
	"github.com/stuartb55/octopusagile/pkg/validation"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"pence": render.FormatPence,
}).ParseFS(templateFS, "templates/dashboard.html"))

// cycleHeader carries the request cycle ID on API responses.
const cycleHeader = "X-Price-Cycle"

func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	cycle := s.prices.NewCycle()
	view := s.dashboard.Build(r.Context(), cycle, r.URL.Query().Get("days"))

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, view); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render dashboard")
		http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set(cycleHeader, cycle.ID.String())
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleDashboardJSON(w http.ResponseWriter, r *http.Request) {
	cycle := s.prices.NewCycle()
	view := s.dashboard.Build(r.Context(), cycle, r.URL.Query().Get("days"))

	w.Header().Set(cycleHeader, cycle.ID.String())
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	days, err := validation.ValidateDaysParameter(r.URL.Query().Get("days"), s.opts.Bounds)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	cycle := s.prices.NewCycle()
	result := cycle.GetEnergyPrices(r.Context(), days)

	w.Header().Set(cycleHeader, cycle.ID.String())
	writeJSON(w, resultStatus(result.OK(), result.Error), result)
}

func (s *Server) handleCurrentPrice(w http.ResponseWriter, r *http.Request) {
	cycle := s.prices.NewCycle()
	result := cycle.GetCurrentPrice(r.Context())

	w.Header().Set(cycleHeader, cycle.ID.String())
	writeJSON(w, resultStatus(result.OK(), result.Error), result)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	days, err := validation.ValidateDaysParameter(r.URL.Query().Get("days"), s.opts.Bounds)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result := s.prices.NewCycle().GetEnergyPrices(r.Context(), days)
	if !result.OK() {
		http.Error(w, result.Error, http.StatusBadGateway)
		return
	}

	opts := render.DefaultChartOptions()
	opts.Location = s.opts.Location
	if width, err := strconv.Atoi(r.URL.Query().Get("w")); err == nil && width >= 320 && width <= 2560 {
		opts.Width = width
		opts.Height = width * 9 / 16
	}

	var buf bytes.Buffer
	if err := render.WriteChartPNG(&buf, result.Data, opts); err != nil {
		if errors.Is(err, render.ErrNoData) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s.logger.Error().Err(err).Int("days", days).Msg("Failed to render chart")
		http.Error(w, "failed to render chart", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "cache": "disabled"})
		return
	}

	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("Cache not reachable")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "cache": "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "cache": "ok"})
}

// resultStatus maps a fetch outcome to an HTTP status.
func resultStatus(ok bool, message string) int {
	switch {
	case ok:
		return http.StatusOK
	case message == prices.NoCurrentPriceMessage:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func writeValidationError(w http.ResponseWriter, err error) {
	body := map[string]string{"error": err.Error()}
	var vErr *validation.ValidationError
	if errors.As(err, &vErr) {
		body["field"] = vErr.Field
	}
	writeJSON(w, http.StatusBadRequest, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
