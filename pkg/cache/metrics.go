package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks cache hits by backend (fs, memory, redis).
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summary_cache_hits_total",
			Help: "Total number of summary cache hits",
		},
		[]string{"backend"},
	)

	// cacheMisses tracks cache misses, stale entries included.
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "summary_cache_misses_total",
			Help: "Total number of summary cache misses",
		},
	)

	// cacheErrors tracks cache operation errors.
	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summary_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "purge"
	)
)
