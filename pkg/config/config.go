package config

import "time"

// Config is the root configuration structure for Aegis.
// It contains the analyzer engine settings, detector rules, result cache,
// directory watcher, and telemetry sections.
type Config struct {
	// Analyzer contains the orchestration settings: worker count, queue
	// size, per-analysis timeout, cache capacity and batch mode.
	Analyzer AnalyzerConfig `yaml:"analyzer"`

	// Detector contains rule pack and context keyword settings for the
	// rule-based violation detector.
	Detector DetectorConfig `yaml:"detector"`

	// Content contains settings for the keyword content model that flags
	// prompt injection and toxic language.
	Content ContentConfig `yaml:"content"`

	// Cache contains result cache backend and pruning settings.
	Cache CacheConfig `yaml:"cache"`

	// Watch contains settings for screening files dropped into a directory.
	Watch WatchConfig `yaml:"watch"`

	// Telemetry contains configuration for observability including logging,
	// metrics, and health checks.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// AnalyzerConfig contains the analysis orchestrator settings.
// It is copied by value into the analyzer at construction.
type AnalyzerConfig struct {
	// CacheSize is the maximum number of cached results.
	// Default: 10000
	CacheSize int `yaml:"cache_size"`

	// ThreadCount is the number of worker goroutines.
	// Default: number of CPUs
	ThreadCount int `yaml:"thread_count"`

	// Timeout bounds a single analysis, including time spent queued.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// MemoryLimitMB is applied as the Go runtime soft memory limit by the
	// CLI. Zero leaves the runtime default in place.
	// Default: 512
	MemoryLimitMB int `yaml:"memory_limit_mb"`

	// EnableParallel selects parallel batch analysis.
	// Default: true
	EnableParallel bool `yaml:"enable_parallel"`

	// QualityThreshold is the overall score below which a result requires
	// human review.
	// Default: 0.85
	QualityThreshold float64 `yaml:"quality_threshold"`

	// QueueSize bounds the number of analyses waiting for a worker.
	// Default: 1024
	QueueSize int `yaml:"queue_size"`
}

// DetectorConfig contains rule-based detector settings.
type DetectorConfig struct {
	// RulePacks lists YAML rule pack files whose patterns extend the
	// built-in rule set, applied in order.
	RulePacks []string `yaml:"rule_packs"`

	// ContextKeywords replaces the keywords that relax severities when
	// found in a request context. Empty keeps the built-in keywords
	// (medical, educational, academic, research).
	ContextKeywords []string `yaml:"context_keywords"`
}

// ContentConfig contains keyword content model settings.
type ContentConfig struct {
	// Enabled registers the content model next to the rule detector.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// InjectionPatterns are phrases that indicate a prompt injection
	// attempt. Matching is case-insensitive and literal.
	// Default: ["ignore previous instructions", "disregard system prompt",
	// "you are now", "new instructions", "forget everything"]
	InjectionPatterns []string `yaml:"injection_patterns"`

	// ToxicityCategories selects the keyword lists checked for toxic
	// language.
	// Options: "profanity", "violence", "hate_speech", "adult_content"
	// Default: all four
	ToxicityCategories []string `yaml:"toxicity_categories"`
}

// CacheConfig contains result cache settings.
type CacheConfig struct {
	// Backend selects the cache implementation.
	// Options: "memory", "sqlite"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLitePath is the database file used by the sqlite backend.
	// Default: "data/aegis-cache.db"
	SQLitePath string `yaml:"sqlite_path"`

	// TTL is how long a cached result stays valid before pruning removes
	// it. Zero disables pruning.
	// Default: 24h
	TTL time.Duration `yaml:"ttl"`

	// PruneSchedule is a cron expression for pruning expired entries.
	// Default: "@every 10m"
	PruneSchedule string `yaml:"prune_schedule"`
}

// WatchConfig contains directory watcher settings.
type WatchConfig struct {
	// Extensions lists the file extensions screened by the watcher.
	// Default: [".txt", ".md"]
	Extensions []string `yaml:"extensions"`

	// Debounce is how long the watcher waits after the last write to a
	// file before screening it.
	// Default: 250ms
	Debounce time.Duration `yaml:"debounce"`

	// MaxFileSize is the largest file, in bytes, that will be screened.
	// Default: 1048576 (1MB)
	MaxFileSize int64 `yaml:"max_file_size"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`

	// Tracing contains OpenTelemetry tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII enables automatic PII redaction in logs.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns contains custom PII redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom PII redaction pattern.
type RedactPattern struct {
	// Name identifies the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the text substituted for matches.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "aegis"
	Namespace string `yaml:"namespace"`

	// DurationBuckets defines histogram buckets for analysis duration (seconds).
	// Default: [0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30]
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// Enabled controls whether health check endpoints are enabled.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout is the timeout for individual component health checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "aegis"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the collector connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each span export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
