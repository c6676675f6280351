package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer ("redis", "memo")
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agile_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"layer"},
	)

	// CacheMisses tracks cache misses by layer
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agile_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"layer"},
	)

	// CacheSize tracks bytes written by layer
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agile_cache_size_bytes",
			Help: "Bytes written to the cache",
		},
		[]string{"layer"},
	)

	// Revalidations tracks conditional requests by result ("not_modified", "modified")
	Revalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agile_cache_revalidations_total",
			Help: "Total number of conditional revalidation requests by result",
		},
		[]string{"result"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agile_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
