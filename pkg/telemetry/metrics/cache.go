package metrics

import (
	"mercator-hq/aegis/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics tracks result cache performance.
//
// Metrics:
//   - aegis_cache_hits_total: Total cache hits
//   - aegis_cache_misses_total: Total cache misses
//   - aegis_cache_entries: Current number of entries in cache
//   - aegis_cache_evictions_total: Entries evicted for capacity
//   - aegis_cache_pruned_total: Entries removed by TTL pruning
//
// Hit rate is derived in PromQL:
//
//	rate(aegis_cache_hits_total[5m]) /
//	(rate(aegis_cache_hits_total[5m]) + rate(aegis_cache_misses_total[5m]))
type CacheMetrics struct {
	hitsTotal      prometheus.Counter
	missesTotal    prometheus.Counter
	entries        prometheus.Gauge
	evictionsTotal prometheus.Counter
	prunedTotal    prometheus.Counter
}

// NewCacheMetrics creates and registers cache metrics with the provided registry.
func NewCacheMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *CacheMetrics {
	cm := &CacheMetrics{
		hitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		}),
		missesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "cache_entries",
			Help:      "Current number of entries in cache",
		}),
		evictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "cache_evictions_total",
			Help:      "Total number of entries evicted for capacity",
		}),
		prunedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "cache_pruned_total",
			Help:      "Total number of expired entries pruned",
		}),
	}

	registry.MustRegister(
		cm.hitsTotal,
		cm.missesTotal,
		cm.entries,
		cm.evictionsTotal,
		cm.prunedTotal,
	)

	return cm
}

// RecordHit records a cache hit.
func (cm *CacheMetrics) RecordHit() {
	cm.hitsTotal.Inc()
}

// RecordMiss records a cache miss.
func (cm *CacheMetrics) RecordMiss() {
	cm.missesTotal.Inc()
}

// UpdateSize updates the current size of the cache.
func (cm *CacheMetrics) UpdateSize(size int) {
	cm.entries.Set(float64(size))
}

// RecordEvictions records n capacity evictions.
func (cm *CacheMetrics) RecordEvictions(n int) {
	if n > 0 {
		cm.evictionsTotal.Add(float64(n))
	}
}

// RecordPruned records n entries removed by pruning.
func (cm *CacheMetrics) RecordPruned(n int) {
	if n > 0 {
		cm.prunedTotal.Add(float64(n))
	}
}
