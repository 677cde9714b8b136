package metrics

import (
	"time"

	"mercator-hq/aegis/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// AnalysisMetrics tracks content analysis.
//
// Metrics:
//   - aegis_analyses_total: Analyses by outcome status
//   - aegis_analysis_duration_seconds: End-to-end analysis latency
//   - aegis_safety_score: Distribution of overall safety scores
//   - aegis_flags_total: Safety flags raised by type and severity
//   - aegis_model_duration_seconds: Per-model latency
//   - aegis_model_errors_total: Per-model failures
//   - aegis_batch_size: Items per batch request
type AnalysisMetrics struct {
	analysesTotal    *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	safetyScore      prometheus.Histogram
	flagsTotal       *prometheus.CounterVec
	modelDuration    *prometheus.HistogramVec
	modelErrors      *prometheus.CounterVec
	batchSize        *prometheus.HistogramVec
}

// NewAnalysisMetrics creates and registers analysis metrics with the
// provided registry.
func NewAnalysisMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *AnalysisMetrics {
	am := &AnalysisMetrics{
		analysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "analyses_total",
				Help:      "Total number of content analyses by status",
			},
			[]string{"status"},
		),

		analysisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "analysis_duration_seconds",
				Help:      "Duration of content analyses in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"status"},
		),

		safetyScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "safety_score",
				Help:      "Distribution of overall safety scores",
				Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
			},
		),

		flagsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "flags_total",
				Help:      "Total number of safety flags raised",
			},
			[]string{"type", "severity"},
		),

		modelDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "model_duration_seconds",
				Help:      "Duration of individual model analyses in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"model"},
		),

		modelErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "model_errors_total",
				Help:      "Total number of failed model analyses",
			},
			[]string{"model"},
		),

		batchSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "batch_size",
				Help:      "Number of items per batch request",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"mode"},
		),
	}

	registry.MustRegister(
		am.analysesTotal,
		am.analysisDuration,
		am.safetyScore,
		am.flagsTotal,
		am.modelDuration,
		am.modelErrors,
		am.batchSize,
	)

	return am
}

// RecordAnalysis records a finished analysis.
func (am *AnalysisMetrics) RecordAnalysis(status string, duration time.Duration, overall float64) {
	am.analysesTotal.WithLabelValues(status).Inc()
	am.analysisDuration.WithLabelValues(status).Observe(duration.Seconds())
	if status == StatusSuccess || status == StatusCached {
		am.safetyScore.Observe(overall)
	}
}

// RecordFlag records a raised safety flag.
func (am *AnalysisMetrics) RecordFlag(flagType, severity string) {
	am.flagsTotal.WithLabelValues(flagType, severity).Inc()
}

// RecordModel records a model analysis. A non-nil err counts as a failure.
func (am *AnalysisMetrics) RecordModel(model string, duration time.Duration, err error) {
	am.modelDuration.WithLabelValues(model).Observe(duration.Seconds())
	if err != nil {
		am.modelErrors.WithLabelValues(model).Inc()
	}
}

// RecordBatch records a batch request size.
func (am *AnalysisMetrics) RecordBatch(size int, parallel bool) {
	mode := "sequential"
	if parallel {
		mode = "parallel"
	}
	am.batchSize.WithLabelValues(mode).Observe(float64(size))
}
