// Package metrics exposes the Prometheus registry used by every package.
// Metrics are defined next to the code that updates them (ratelimit, client,
// cache, prices, scheduler) and registered through promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registerer.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the default Prometheus gatherer.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Rate Limiter Metrics (pkg/ratelimit):
//   - agile_ratelimit_recent_requests{limiter} (Gauge): Calls inside the sliding window
//   - agile_ratelimit_wait_seconds{limiter} (Histogram): Time spent waiting for budget
//   - agile_ratelimit_rejections_total{limiter} (Counter): Calls rejected because the wait exceeded the maximum
//   - agile_ratelimit_retries_total{limiter, error_class} (Counter): Retry attempts
//   - agile_ratelimit_retry_exhausted_total{limiter} (Counter): Calls that exhausted their retries
//   - agile_ratelimit_timeouts_total{limiter} (Counter): Attempts abandoned at the per-call timeout
//
// Request Metrics (pkg/client):
//   - agile_api_requests_total{status} (Counter): Pricing API requests by HTTP status
//   - agile_api_request_duration_seconds (Histogram): Pricing API request duration
//   - agile_api_errors_total{class} (Counter): Errors by class (client, auth, not_found, rate_limit, server, network)
//
// Cache Metrics (pkg/cache):
//   - agile_cache_hits_total{layer} (Counter): Hits by layer ("redis", "memo")
//   - agile_cache_misses_total{layer} (Counter): Misses by layer
//   - agile_cache_size_bytes{layer="redis"} (Gauge): Bytes written to Redis
//   - agile_cache_revalidations_total{result} (Counter): Conditional requests by outcome
//   - agile_cache_errors_total{operation} (Counter): Cache operation errors
//
// Price Metrics (pkg/prices):
//   - agile_prices_fetches_total{result} (Counter): Complete fetches by result
//   - agile_prices_pages_total (Counter): Pages fetched
//   - agile_prices_fetch_duration_seconds (Histogram): Duration across all pages
//   - agile_prices_last_fetch_points (Gauge): Points in the last successful fetch
//
// Scheduler Metrics (internal/scheduler):
//   - agile_current_price_pence (Gauge): Current inc-VAT unit rate
//   - agile_scheduler_runs_total{result} (Counter): Scheduled refreshes by result
//
// Example Prometheus Queries:
//
//   # Memo hit rate per request cycle
//   sum(rate(agile_cache_hits_total{layer="memo"}[5m])) /
//   (sum(rate(agile_cache_hits_total{layer="memo"}[5m])) + sum(rate(agile_cache_misses_total{layer="memo"}[5m])))
//
//   # Failed fetch rate
//   sum(rate(agile_prices_fetches_total{result!="success"}[5m]))
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(agile_api_request_duration_seconds_bucket[5m]))
