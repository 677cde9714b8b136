package metrics

import (
	"mercator-hq/aegis/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Job event labels for pool_jobs_total.
const (
	JobSubmitted = "submitted"
	JobCompleted = "completed"
	JobAbandoned = "abandoned"
	JobPanicked  = "panicked"
)

// PoolMetrics tracks the analysis worker pool. It implements pool.Observer.
//
// Metrics:
//   - aegis_pool_queue_depth: Jobs waiting for a worker
//   - aegis_pool_active_workers: Workers currently running a job
//   - aegis_pool_jobs_total: Job lifecycle events
type PoolMetrics struct {
	enabled       bool
	queueDepth    prometheus.Gauge
	activeWorkers prometheus.Gauge
	jobsTotal     *prometheus.CounterVec
}

// NewPoolMetrics creates and registers pool metrics with the provided registry.
func NewPoolMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *PoolMetrics {
	pm := &PoolMetrics{
		enabled: cfg.Enabled,
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "pool_queue_depth",
			Help:      "Number of analysis jobs waiting for a worker",
		}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "pool_active_workers",
			Help:      "Number of workers currently running an analysis",
		}),
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "pool_jobs_total",
				Help:      "Total number of worker pool job events",
			},
			[]string{"event"},
		),
	}

	registry.MustRegister(pm.queueDepth, pm.activeWorkers, pm.jobsTotal)

	return pm
}

// QueueDepth sets the number of queued jobs.
func (pm *PoolMetrics) QueueDepth(n int) {
	if pm.enabled {
		pm.queueDepth.Set(float64(n))
	}
}

// ActiveWorkers sets the number of busy workers.
func (pm *PoolMetrics) ActiveWorkers(n int) {
	if pm.enabled {
		pm.activeWorkers.Set(float64(n))
	}
}

// JobSubmitted counts an accepted job.
func (pm *PoolMetrics) JobSubmitted() { pm.event(JobSubmitted) }

// JobCompleted counts a job that ran to completion.
func (pm *PoolMetrics) JobCompleted() { pm.event(JobCompleted) }

// JobAbandoned counts a job dropped because its caller gave up.
func (pm *PoolMetrics) JobAbandoned() { pm.event(JobAbandoned) }

// JobPanicked counts a job that panicked.
func (pm *PoolMetrics) JobPanicked() { pm.event(JobPanicked) }

func (pm *PoolMetrics) event(name string) {
	if pm.enabled {
		pm.jobsTotal.WithLabelValues(name).Inc()
	}
}
