package config

import (
	"runtime"
	"time"
)

// Default values for configuration fields.
const (
	// Analyzer defaults
	DefaultCacheSize        = 10000
	DefaultTimeout          = 30 * time.Second
	DefaultMemoryLimitMB    = 512
	DefaultEnableParallel   = true
	DefaultQualityThreshold = 0.85
	DefaultQueueSize        = 1024

	// Cache defaults
	DefaultCacheBackend       = "memory"
	DefaultCacheSQLitePath    = "data/aegis-cache.db"
	DefaultCacheTTL           = 24 * time.Hour
	DefaultCachePruneSchedule = "@every 10m"

	// Watch defaults
	DefaultWatchDebounce    = 250 * time.Millisecond
	DefaultWatchMaxFileSize = int64(1 << 20)

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultRedactPII          = true
	DefaultMetricsEnabled     = true
	DefaultPrometheusPath     = "/metrics"
	DefaultMetricsNamespace   = "aegis"
	DefaultHealthEnabled      = true
	DefaultLivenessPath       = "/health"
	DefaultReadinessPath      = "/ready"
	DefaultHealthCheckTimeout = 5 * time.Second
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingServiceName = "aegis"
	DefaultTracingTimeout     = 10 * time.Second
)

// TracingSamplers are the supported sampling strategies.
var TracingSamplers = []string{"always", "never", "ratio"}

// DefaultWatchExtensions are the file extensions screened by default.
var DefaultWatchExtensions = []string{".txt", ".md"}

// DefaultInjectionPatterns are the prompt injection phrases used when none
// are configured.
var DefaultInjectionPatterns = []string{
	"ignore previous instructions",
	"disregard system prompt",
	"you are now",
	"new instructions",
	"forget everything",
}

// ToxicityCategories are the keyword lists known to the content model.
var ToxicityCategories = []string{"profanity", "violence", "hate_speech", "adult_content"}

// DefaultDurationBuckets are the histogram buckets for analysis duration.
var DefaultDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30}

// DefaultThreadCount returns the default worker count, the number of CPUs.
func DefaultThreadCount() int {
	return runtime.NumCPU()
}

// Default returns a configuration with every field set to its default.
// Boolean fields that default to true are only set here, so files are
// decoded on top of Default() rather than onto a zero Config.
func Default() *Config {
	cfg := &Config{
		Analyzer: AnalyzerConfig{
			EnableParallel: DefaultEnableParallel,
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{RedactPII: DefaultRedactPII},
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
			Health:  HealthConfig{Enabled: DefaultHealthEnabled},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Analyzer defaults
	if cfg.Analyzer.CacheSize == 0 {
		cfg.Analyzer.CacheSize = DefaultCacheSize
	}
	if cfg.Analyzer.ThreadCount == 0 {
		cfg.Analyzer.ThreadCount = DefaultThreadCount()
	}
	if cfg.Analyzer.Timeout == 0 {
		cfg.Analyzer.Timeout = DefaultTimeout
	}
	if cfg.Analyzer.MemoryLimitMB == 0 {
		cfg.Analyzer.MemoryLimitMB = DefaultMemoryLimitMB
	}
	if cfg.Analyzer.QualityThreshold == 0 {
		cfg.Analyzer.QualityThreshold = DefaultQualityThreshold
	}
	if cfg.Analyzer.QueueSize == 0 {
		cfg.Analyzer.QueueSize = DefaultQueueSize
	}

	// Content defaults
	if len(cfg.Content.InjectionPatterns) == 0 {
		cfg.Content.InjectionPatterns = append([]string(nil), DefaultInjectionPatterns...)
	}
	if len(cfg.Content.ToxicityCategories) == 0 {
		cfg.Content.ToxicityCategories = append([]string(nil), ToxicityCategories...)
	}

	// Cache defaults
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = DefaultCacheBackend
	}
	if cfg.Cache.SQLitePath == "" {
		cfg.Cache.SQLitePath = DefaultCacheSQLitePath
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}
	if cfg.Cache.PruneSchedule == "" {
		cfg.Cache.PruneSchedule = DefaultCachePruneSchedule
	}

	// Watch defaults
	if len(cfg.Watch.Extensions) == 0 {
		cfg.Watch.Extensions = append([]string(nil), DefaultWatchExtensions...)
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = DefaultWatchDebounce
	}
	if cfg.Watch.MaxFileSize == 0 {
		cfg.Watch.MaxFileSize = DefaultWatchMaxFileSize
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.DurationBuckets) == 0 {
		cfg.Telemetry.Metrics.DurationBuckets = append([]float64(nil), DefaultDurationBuckets...)
	}
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultReadinessPath
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
}
