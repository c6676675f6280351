// Package dashboard composes the price dashboard view from one request cycle.
//
// It is the boundary where query parameter errors are downgraded to warnings
// and fetch failures become a renderable state; Build never returns an error.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/stuartb55/octopusagile/pkg/analytics"
	"github.com/stuartb55/octopusagile/pkg/prices"
	"github.com/stuartb55/octopusagile/pkg/render"
	"github.com/stuartb55/octopusagile/pkg/validation"
)

// State is what the page shows in place of, or alongside, the price data.
type State string

const (
	StateOK    State = "ok"
	StateEmpty State = "empty"
	StateError State = "error"
)

// trendEpsilon is the slope, in pence per slot, below which prices are flat.
const trendEpsilon = 0.01

// SeriesSource is satisfied by *prices.Cycle and *prices.Service.
type SeriesSource interface {
	GetEnergyPrices(ctx context.Context, days int) prices.FetchResult[[]prices.PricePoint]
}

// Slot is one priced half hour prepared for display.
type Slot struct {
	ValidFrom   time.Time `json:"validFrom"`
	ValidTo     time.Time `json:"validTo"`
	Label       string    `json:"label"`
	ValueIncVAT float64   `json:"valueIncVat"`
	Price       string    `json:"price"`
	Current     bool      `json:"current"`
	Negative    bool      `json:"negative"`
}

// Summary is analytics.Stats with formatted values.
type Summary struct {
	analytics.Stats
	MinPrice  string `json:"minPrice"`
	MaxPrice  string `json:"maxPrice"`
	AvgPrice  string `json:"avgPrice"`
	Direction string `json:"direction"`
}

// Day is one displayable calendar day.
type Day struct {
	Key      string  `json:"key"`
	Label    string  `json:"label"`
	Tomorrow bool    `json:"tomorrow"`
	Slots    []Slot  `json:"slots"`
	Summary  Summary `json:"summary"`
}

// View is everything the dashboard renders.
type View struct {
	Days        int       `json:"days"`
	QuickSelect []int     `json:"quickSelect"`
	Warning     string    `json:"warning,omitempty"`
	State       State     `json:"state"`
	Error       string    `json:"error,omitempty"`
	RetryURL    string    `json:"retryUrl,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`

	Current  *Slot    `json:"current"`
	Next     *Slot    `json:"next"`
	Cheapest *Slot    `json:"cheapest"`
	Summary  *Summary `json:"summary"`
	Calendar []Day    `json:"calendar"`

	TomorrowSlots   int  `json:"tomorrowSlots"`
	TomorrowPartial bool `json:"tomorrowPartial"`
}

// Builder builds dashboard views.
type Builder struct {
	bounds   validation.DaysBounds
	location *time.Location
	logger   zerolog.Logger
	now      func() time.Time
}

// NewBuilder creates a Builder for the given days policy and display zone.
func NewBuilder(bounds validation.DaysBounds, loc *time.Location, logger zerolog.Logger) *Builder {
	if loc == nil {
		loc = time.UTC
	}
	return &Builder{
		bounds:   bounds,
		location: loc,
		logger:   logger.With().Str("component", "dashboard").Logger(),
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (b *Builder) SetClock(now func() time.Time) {
	b.now = now
}

// Days resolves the raw days query value. Invalid input yields the default
// and a warning message instead of an error.
func (b *Builder) Days(rawDays string) (int, string) {
	days, err := validation.ValidateDaysParameter(rawDays, b.bounds)
	if err == nil {
		return days, ""
	}

	var vErr *validation.ValidationError
	if errors.As(err, &vErr) {
		b.logger.Warn().
			Str("field", vErr.Field).
			Str("value", rawDays).
			Int("default", b.bounds.Default).
			Msg("Invalid days parameter, using default")
	}
	warning := fmt.Sprintf("Showing %d days: %s", b.bounds.Default, err.Error())
	return b.bounds.Default, warning
}

// Build fetches the series for rawDays through src and derives the view.
func (b *Builder) Build(ctx context.Context, src SeriesSource, rawDays string) *View {
	now := b.now()
	days, warning := b.Days(rawDays)

	view := &View{
		Days:        days,
		QuickSelect: validation.QuickSelectDays,
		Warning:     warning,
		GeneratedAt: now,
		Calendar:    []Day{},
	}

	result := src.GetEnergyPrices(ctx, days)
	if !result.OK() {
		view.State = StateError
		view.Error = result.Error
		view.RetryURL = b.RetryURL(days)
		return view
	}
	if len(result.Data) == 0 {
		view.State = StateEmpty
		view.RetryURL = b.RetryURL(days)
		return view
	}

	view.State = StateOK
	sorted := analytics.SortByValidFrom(result.Data)

	current, next := analytics.GetCurrentAndNextPrices(sorted, now)
	view.Current = b.slot(current, now)
	view.Next = b.slot(next, now)
	view.Cheapest = b.slot(analytics.GetCheapestPrice24h(sorted, now), now)

	summary := summarize(analytics.CalculateStats(sorted))
	view.Summary = &summary

	tomorrow := analytics.TomorrowKey(now, b.location)
	groups := analytics.GroupByCalendarDay(sorted, b.location)
	for _, key := range analytics.DisplayableDays(groups, now, b.location) {
		points := groups[key]
		day := Day{
			Key:      key,
			Label:    points[0].ValidFrom.In(b.location).Format("Monday 2 January"),
			Tomorrow: key == tomorrow,
			Slots:    make([]Slot, 0, len(points)),
			Summary:  summarize(analytics.CalculateStats(points)),
		}
		for i := range points {
			day.Slots = append(day.Slots, *b.slot(&points[i], now))
		}
		view.Calendar = append(view.Calendar, day)
	}

	view.TomorrowSlots = analytics.TomorrowSlots(sorted, now, b.location)
	view.TomorrowPartial = view.TomorrowSlots > 0 && view.TomorrowSlots < analytics.SlotsPerDay

	return view
}

// RetryURL links back to the dashboard for days.
func (b *Builder) RetryURL(days int) string {
	return fmt.Sprintf("/?days=%d", days)
}

func (b *Builder) slot(p *prices.PricePoint, now time.Time) *Slot {
	if p == nil {
		return nil
	}
	from := p.ValidFrom.In(b.location)
	return &Slot{
		ValidFrom:   p.ValidFrom,
		ValidTo:     p.ValidTo,
		Label:       from.Format("15:04") + "-" + p.ValidTo.In(b.location).Format("15:04"),
		ValueIncVAT: p.ValueIncVAT,
		Price:       render.FormatPence(p.ValueIncVAT),
		Current:     p.Contains(now),
		Negative:    p.ValueIncVAT < 0,
	}
}

func summarize(stats analytics.Stats) Summary {
	direction := "flat"
	switch {
	case stats.Trend > trendEpsilon:
		direction = "rising"
	case stats.Trend < -trendEpsilon:
		direction = "falling"
	}
	return Summary{
		Stats:     stats,
		MinPrice:  render.FormatPence(stats.Min),
		MaxPrice:  render.FormatPence(stats.Max),
		AvgPrice:  render.FormatPence(stats.Avg),
		Direction: direction,
	}
}
