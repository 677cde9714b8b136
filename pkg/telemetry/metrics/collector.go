package metrics

import (
	"sync"
	"time"

	"mercator-hq/aegis/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Status labels for analyses_total.
const (
	StatusSuccess  = "success"
	StatusCached   = "cached"
	StatusError    = "error"
	StatusTimeout  = "timeout"
	StatusRejected = "rejected"
)

// OtherLabel replaces label values past the cardinality limit.
const OtherLabel = "other"

// Collector is the main orchestrator for all Prometheus metrics in Aegis.
// It manages metric registration and provides a single interface for
// recording analysis, cache and worker pool activity.
//
// All Record methods are no-ops when metrics are disabled, so callers never
// need to check.
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry

	analysisMetrics *AnalysisMetrics
	cacheMetrics    *CacheMetrics
	poolMetrics     *PoolMetrics

	// Model names are user controlled through the registry.
	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a new metrics collector with the specified
// configuration. If registry is nil, a fresh registry is created so tests
// and multiple analyzers never collide on the global one.
//
// Example:
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	http.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = append([]float64(nil), config.DefaultDurationBuckets...)
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		cardinalityLimiter: NewCardinalityLimiter(100),
	}

	c.analysisMetrics = NewAnalysisMetrics(cfg, registry)
	c.cacheMetrics = NewCacheMetrics(cfg, registry)
	c.poolMetrics = NewPoolMetrics(cfg, registry)

	return c
}

// Enabled reports whether metrics are recorded.
func (c *Collector) Enabled() bool {
	return c.config.Enabled
}

// RecordAnalysis records a finished analysis.
//
// Parameters:
//   - status: one of the Status constants
//   - duration: wall time from submission to result
//   - overall: the overall safety score, ignored unless status is success or cached
func (c *Collector) RecordAnalysis(status string, duration time.Duration, overall float64) {
	if !c.config.Enabled {
		return
	}

	c.analysisMetrics.RecordAnalysis(status, duration, overall)
}

// RecordFlag records a safety flag raised by an analysis.
func (c *Collector) RecordFlag(flagType, severity string) {
	if !c.config.Enabled {
		return
	}

	c.analysisMetrics.RecordFlag(flagType, severity)
}

// RecordModel records one model's contribution to an analysis.
func (c *Collector) RecordModel(model string, duration time.Duration, err error) {
	if !c.config.Enabled {
		return
	}

	if !c.cardinalityLimiter.Allow(model) {
		model = OtherLabel
	}
	c.analysisMetrics.RecordModel(model, duration, err)
}

// RecordBatch records the size of a batch request.
func (c *Collector) RecordBatch(size int, parallel bool) {
	if !c.config.Enabled {
		return
	}

	c.analysisMetrics.RecordBatch(size, parallel)
}

// RecordCacheHit records a cache hit.
func (c *Collector) RecordCacheHit() {
	if !c.config.Enabled {
		return
	}

	c.cacheMetrics.RecordHit()
}

// RecordCacheMiss records a cache miss.
func (c *Collector) RecordCacheMiss() {
	if !c.config.Enabled {
		return
	}

	c.cacheMetrics.RecordMiss()
}

// RecordCacheEvictions records entries evicted for capacity. It matches
// the signature of cache.WithEvictionHook.
func (c *Collector) RecordCacheEvictions(n int) {
	if !c.config.Enabled {
		return
	}

	c.cacheMetrics.RecordEvictions(n)
}

// RecordCachePruned records entries removed by TTL pruning.
func (c *Collector) RecordCachePruned(n int) {
	if !c.config.Enabled {
		return
	}

	c.cacheMetrics.RecordPruned(n)
}

// UpdateCacheSize updates the current number of cached entries.
func (c *Collector) UpdateCacheSize(size int) {
	if !c.config.Enabled {
		return
	}

	c.cacheMetrics.UpdateSize(size)
}

// Pool returns the worker pool observer. It is safe to use when metrics
// are disabled.
func (c *Collector) Pool() *PoolMetrics {
	return c.poolMetrics
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label set is allowed. Returns true if the label set
// already exists or if we haven't reached the cardinality limit yet.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
