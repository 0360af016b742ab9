package meshcache

import "sync/atomic"

/**
 * @brief Counters for cache effectiveness. Safe for concurrent use.
 */
type CacheMetrics struct {
	hits          atomic.Uint64
	misses        atomic.Uint64
	stores        atomic.Uint64
	invalidations atomic.Uint64
}

/** @brief A point-in-time copy of the counters. */
type CacheMetricsSnapshot struct {
	Hits          uint64
	Misses        uint64
	Stores        uint64
	Invalidations uint64
}

// Snapshot copies the current counter values.
func (m *CacheMetrics) Snapshot() CacheMetricsSnapshot {
	return CacheMetricsSnapshot{
		Hits:          m.hits.Load(),
		Misses:        m.misses.Load(),
		Stores:        m.stores.Load(),
		Invalidations: m.invalidations.Load(),
	}
}
