package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks lookups served from the registry
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telq_cache_hits_total",
			Help: "Total number of request cache hits",
		},
	)

	// CacheMisses tracks lookups that found no live entry
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telq_cache_misses_total",
			Help: "Total number of request cache misses",
		},
	)

	// CacheEntries tracks the number of stored entries
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "telq_cache_entries",
			Help: "Current number of entries held by the request cache",
		},
	)

	// CacheEvictions tracks entries removed by repair passes
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telq_cache_evictions_total",
			Help: "Total number of request cache entries removed",
		},
		[]string{"reason"}, // "expired", "replaced", "disposed"
	)
)
