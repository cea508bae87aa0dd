// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Query cache lookups by outcome: fresh, stale, miss.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_cache_lookups_total",
			Help: "Query cache lookups by result",
		},
		[]string{"cache", "result"},
	)

	CacheFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_cache_fetches_total",
			Help: "Completed fetch attempts by outcome",
		},
		[]string{"cache", "outcome"},
	)

	CacheDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_cache_superseded_total",
			Help: "Fetch results discarded because a newer generation exists",
		},
		[]string{"cache"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_cache_evictions_total",
			Help: "Entries removed after the retention window",
		},
		[]string{"cache"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "explorer_cache_entries",
			Help: "Entries currently retained",
		},
		[]string{"cache"},
	)

	StorageOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_storage_ops_total",
			Help: "Key-value store operations",
		},
		[]string{"backend", "op"},
	)

	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_storage_errors_total",
			Help: "Swallowed key-value store failures",
		},
		[]string{"backend", "op"},
	)

	FavoritesMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_favorites_mutations_total",
			Help: "Favourites changes by operation",
		},
		[]string{"op"},
	)

	FavoritesSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "explorer_favorites",
			Help: "Number of favourites held in memory",
		},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "explorer_api_request_duration_seconds",
			Help:    "Character API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
)

// RecordCacheLookup counts a lookup in cache with result fresh, stale or miss.
func RecordCacheLookup(cache, result string) {
	CacheLookups.WithLabelValues(cache, result).Inc()
}

// RecordCacheFetch counts one finished fetch attempt.
func RecordCacheFetch(cache, outcome string) {
	CacheFetches.WithLabelValues(cache, outcome).Inc()
}

// RecordCacheSuperseded counts a discarded late result.
func RecordCacheSuperseded(cache string) {
	CacheDropped.WithLabelValues(cache).Inc()
}

// RecordCacheEvictions counts n evicted entries and updates the size gauge.
func RecordCacheEvictions(cache string, n, remaining int) {
	if n > 0 {
		CacheEvictions.WithLabelValues(cache).Add(float64(n))
	}
	CacheEntries.WithLabelValues(cache).Set(float64(remaining))
}

// RecordStorageOp counts a backend call, and a failure when err is non-nil.
func RecordStorageOp(backend, op string, err error) {
	StorageOps.WithLabelValues(backend, op).Inc()
	if err != nil {
		StorageErrors.WithLabelValues(backend, op).Inc()
	}
}

// RecordFavorites counts a favourites mutation and the resulting size.
func RecordFavorites(op string, size int) {
	FavoritesMutations.WithLabelValues(op).Inc()
	FavoritesSize.Set(float64(size))
}

// ObserveAPIRequest records the latency of one API call. Status 0 means the
// request never produced a response.
func ObserveAPIRequest(status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	APIRequestDuration.WithLabelValues(label).Observe(elapsed.Seconds())
}
