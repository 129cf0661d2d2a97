package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by backend
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_hits_total",
			Help: "Total number of list cache hits",
		},
		[]string{"backend"}, // "memory", "redis"
	)

	// CacheMisses tracks cache misses by backend
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_misses_total",
			Help: "Total number of list cache misses",
		},
		[]string{"backend"},
	)

	// CacheWrites tracks entries written by backend
	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_writes_total",
			Help: "Total number of list cache entries written",
		},
		[]string{"backend"},
	)

	// EntryBytes observes the serialized size of written entries
	EntryBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_cache_entry_bytes",
			Help:    "Serialized size of list cache entries in bytes",
			Buckets: prometheus.ExponentialBuckets(512, 4, 8),
		},
		[]string{"backend"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_errors_total",
			Help: "Total number of list cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "decode", "encode", "clear"
	)
)
