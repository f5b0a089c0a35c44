package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks content cache hits.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "etrieve_cache_hits_total",
			Help: "Total number of content cache hits",
		},
	)

	// CacheMisses tracks content cache misses.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "etrieve_cache_misses_total",
			Help: "Total number of content cache misses",
		},
	)

	// CacheStoredBytes tracks bytes written to the cache.
	CacheStoredBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "etrieve_cache_stored_bytes_total",
			Help: "Total bytes written to the content cache",
		},
	)

	// CacheErrors tracks cache operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etrieve_cache_errors_total",
			Help: "Total number of content cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
