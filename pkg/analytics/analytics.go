// Package analytics derives statistics and lookups from a fetched price
// series. Every function is pure; the current time is always passed in.
package analytics

import (
	"sort"
	"time"

	"github.com/stuartb55/octopusagile/pkg/prices"
)

const (
	// SlotsPerDay is the number of half-hour periods in a normal day.
	SlotsPerDay = 48

	// MinDisplayableSlots is the least number of slots a past or current
	// day needs before it is shown.
	MinDisplayableSlots = 46

	// DateKeyLayout formats calendar day keys.
	DateKeyLayout = "2006-01-02"
)

// Stats summarises the inc-VAT values of a series.
type Stats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Trend float64 `json:"trend"`
	Count int     `json:"count"`
}

// CalculateStats returns min, max and mean of the inc-VAT values, plus the
// least-squares slope of value against position in the series.
func CalculateStats(series []prices.PricePoint) Stats {
	n := len(series)
	if n == 0 {
		return Stats{}
	}

	stats := Stats{
		Min:   series[0].ValueIncVAT,
		Max:   series[0].ValueIncVAT,
		Count: n,
	}

	var sum float64
	for _, p := range series {
		v := p.ValueIncVAT
		sum += v
		if v < stats.Min {
			stats.Min = v
		}
		if v > stats.Max {
			stats.Max = v
		}
	}
	stats.Avg = sum / float64(n)
	stats.Trend = trend(series)

	return stats
}

// trend is the OLS slope of value regressed on index.
func trend(series []prices.PricePoint) float64 {
	n := float64(len(series))
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, p := range series {
		x := float64(i)
		sumX += x
		sumY += p.ValueIncVAT
		sumXY += x * p.ValueIncVAT
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// SortByValidFrom returns a copy of series ordered by start time. Points with
// equal start times keep their input order.
func SortByValidFrom(series []prices.PricePoint) []prices.PricePoint {
	sorted := make([]prices.PricePoint, len(series))
	copy(sorted, series)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ValidFrom.Before(sorted[j].ValidFrom)
	})
	return sorted
}

// GetCurrentAndNextPrices finds the period containing now and the period
// after it. When no period contains now, next is the first period starting
// after now.
func GetCurrentAndNextPrices(series []prices.PricePoint, now time.Time) (current, next *prices.PricePoint) {
	sorted := SortByValidFrom(series)

	for i := range sorted {
		p := &sorted[i]

		if current == nil && p.Contains(now) {
			current = p
			next = nil
			if i+1 < len(sorted) {
				next = &sorted[i+1]
			}
			continue
		}

		if current == nil && next == nil && p.ValidFrom.After(now) {
			next = p
		}
	}

	return current, next
}

// GetCheapestPrice24h returns the lowest inc-VAT point starting within
// [now, now+24h]. Ties go to the earliest in input order.
func GetCheapestPrice24h(series []prices.PricePoint, now time.Time) *prices.PricePoint {
	horizon := now.Add(24 * time.Hour)

	var cheapest *prices.PricePoint
	for i := range series {
		p := &series[i]
		if p.ValidFrom.Before(now) || p.ValidFrom.After(horizon) {
			continue
		}
		if cheapest == nil || p.ValueIncVAT < cheapest.ValueIncVAT {
			cheapest = p
		}
	}

	if cheapest == nil {
		return nil
	}
	out := *cheapest
	return &out
}

// DateKey returns the calendar day of t in loc.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateKeyLayout)
}

// GroupByCalendarDay partitions series by the local date of ValidFrom,
// preserving order inside each day.
func GroupByCalendarDay(series []prices.PricePoint, loc *time.Location) map[string][]prices.PricePoint {
	groups := make(map[string][]prices.PricePoint)
	for _, p := range series {
		key := DateKey(p.ValidFrom, loc)
		groups[key] = append(groups[key], p)
	}
	return groups
}

// TomorrowKey is the date key of the day after now in loc.
func TomorrowKey(now time.Time, loc *time.Location) string {
	local := now.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d+1, 12, 0, 0, 0, loc).Format(DateKeyLayout)
}

// IsDisplayableDay applies the completeness policy: tomorrow is shown with
// any slots, other days need MinDisplayableSlots.
func IsDisplayableDay(dateKey string, count int, now time.Time, loc *time.Location) bool {
	if dateKey == TomorrowKey(now, loc) {
		return count > 0
	}
	return count >= MinDisplayableSlots
}

// DisplayableDays returns the sorted keys of groups that pass IsDisplayableDay.
func DisplayableDays(groups map[string][]prices.PricePoint, now time.Time, loc *time.Location) []string {
	days := make([]string, 0, len(groups))
	for key, points := range groups {
		if IsDisplayableDay(key, len(points), now, loc) {
			days = append(days, key)
		}
	}
	sort.Strings(days)
	return days
}

// TomorrowSlots counts the points that start tomorrow.
func TomorrowSlots(series []prices.PricePoint, now time.Time, loc *time.Location) int {
	key := TomorrowKey(now, loc)
	count := 0
	for _, p := range series {
		if DateKey(p.ValidFrom, loc) == key {
			count++
		}
	}
	return count
}

// HasTomorrowData reports whether any of tomorrow's prices are published.
func HasTomorrowData(series []prices.PricePoint, now time.Time, loc *time.Location) bool {
	return TomorrowSlots(series, now, loc) > 0
}
