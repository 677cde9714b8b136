// Package metrics provides Prometheus metrics collection for Aegis.
//
// # Metrics Categories
//
//   - Analysis Metrics: outcome counts, latency, score distribution, flags
//   - Model Metrics: per-model latency and failures
//   - Cache Metrics: hits, misses, size, evictions and pruning
//   - Pool Metrics: queue depth, busy workers and job lifecycle
//
// # Usage
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//
//	p := pool.New(workers, queue, pool.WithObserver(collector.Pool()))
//	store := cache.NewLRU(size, cache.WithEvictionHook(collector.RecordCacheEvictions))
//
//	collector.RecordAnalysis(metrics.StatusSuccess, elapsed, score.OverallScore)
//
// # Prometheus Endpoint
//
// All metrics are exposed through Collector.Handler:
//
//	# HELP aegis_analyses_total Total number of content analyses by status
//	# TYPE aegis_analyses_total counter
//	aegis_analyses_total{status="success"} 1234
//
// # Cardinality Management
//
// Model names come from registry callers, so the model label is capped at
// 100 distinct values; later models are reported as "other".
package metrics
