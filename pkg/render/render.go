// Package render draws price series as PNG charts and text tables.
package render

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/stuartb55/octopusagile/pkg/analytics"
	"github.com/stuartb55/octopusagile/pkg/prices"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("no price data to render")

// FormatPence renders a unit rate to two decimal places, e.g. "15.23p".
func FormatPence(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + "p"
}

// ChartOptions sizes the chart.
type ChartOptions struct {
	Width    int
	Height   int
	Location *time.Location
}

// DefaultChartOptions returns a 1280x720 chart in UTC.
func DefaultChartOptions() ChartOptions {
	return ChartOptions{Width: 1280, Height: 720, Location: time.UTC}
}

// WriteChartPNG draws inc-VAT prices over time with the series average.
func WriteChartPNG(w io.Writer, series []prices.PricePoint, opts ChartOptions) error {
	if len(series) == 0 {
		return ErrNoData
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		defaults := DefaultChartOptions()
		opts.Width, opts.Height = defaults.Width, defaults.Height
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	sorted := analytics.SortByValidFrom(series)
	stats := analytics.CalculateStats(sorted)

	x := make([]time.Time, len(sorted))
	y := make([]float64, len(sorted))
	avg := make([]float64, len(sorted))
	for i, p := range sorted {
		x[i] = p.ValidFrom.In(opts.Location)
		y[i] = p.ValueIncVAT
		avg[i] = stats.Avg
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.1fp")
	}
	graph := chart.Chart{
		Width:  opts.Width,
		Height: opts.Height,
		XAxis: chart.XAxis{
			ValueFormatter: func(v interface{}) string {
				return chart.TimeValueFormatterWithFormat(v, "02 Jan 15:04")
			},
		},
		YAxis: chart.YAxis{
			Name:           "Price inc. VAT (p/kWh)",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Unit rate",
				XValues: x,
				YValues: y,
			},
			chart.TimeSeries{
				Name:    fmt.Sprintf("Average %s", FormatPence(stats.Avg)),
				XValues: x,
				YValues: avg,
				Style: chart.Style{
					StrokeDashArray: []float64{5, 5},
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

// WriteTable prints one block per displayable day followed by the summary.
func WriteTable(w io.Writer, series []prices.PricePoint, now time.Time, loc *time.Location) error {
	if len(series) == 0 {
		_, err := fmt.Fprintln(w, "No price data available.")
		return err
	}

	sorted := analytics.SortByValidFrom(series)
	groups := analytics.GroupByCalendarDay(sorted, loc)
	days := analytics.DisplayableDays(groups, now, loc)
	sort.Strings(days)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, day := range days {
		fmt.Fprintf(tw, "%s\t\t\n", day)
		fmt.Fprintln(tw, "FROM\tTO\tINC VAT\tEXC VAT")
		for _, p := range groups[day] {
			marker := ""
			if p.Contains(now) {
				marker = "  <- now"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s%s\n",
				p.ValidFrom.In(loc).Format("15:04"),
				p.ValidTo.In(loc).Format("15:04"),
				FormatPence(p.ValueIncVAT),
				FormatPence(p.ValueExcVAT),
				marker)
		}
		fmt.Fprintln(tw)
	}

	stats := analytics.CalculateStats(sorted)
	fmt.Fprintf(tw, "Periods\t%d\n", stats.Count)
	fmt.Fprintf(tw, "Min\t%s\n", FormatPence(stats.Min))
	fmt.Fprintf(tw, "Max\t%s\n", FormatPence(stats.Max))
	fmt.Fprintf(tw, "Average\t%s\n", FormatPence(stats.Avg))
	fmt.Fprintf(tw, "Trend\t%s per period\n", decimal.NewFromFloat(stats.Trend).StringFixed(3))

	if cheapest := analytics.GetCheapestPrice24h(sorted, now); cheapest != nil {
		fmt.Fprintf(tw, "Cheapest (24h)\t%s at %s\n",
			FormatPence(cheapest.ValueIncVAT),
			cheapest.ValidFrom.In(loc).Format("Mon 15:04"))
	}

	return tw.Flush()
}
