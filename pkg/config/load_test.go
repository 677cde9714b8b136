package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aegis.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
analyzer:
  thread_count: 3
  timeout: 5s
  cache_size: 42
  enable_parallel: false

detector:
  rule_packs:
    - packs/spanish.yaml
  context_keywords: [clinical]

cache:
  backend: sqlite
  sqlite_path: /var/lib/aegis/cache.db
  ttl: 1h
  prune_schedule: "0 * * * *"

telemetry:
  logging:
    level: debug
    format: text
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Analyzer.ThreadCount != 3 {
		t.Errorf("expected thread count 3, got %d", cfg.Analyzer.ThreadCount)
	}
	if cfg.Analyzer.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", cfg.Analyzer.Timeout)
	}
	if cfg.Analyzer.CacheSize != 42 {
		t.Errorf("expected cache size 42, got %d", cfg.Analyzer.CacheSize)
	}
	if cfg.Analyzer.EnableParallel {
		t.Error("expected enable_parallel false from file")
	}
	if len(cfg.Detector.RulePacks) != 1 || cfg.Detector.RulePacks[0] != "packs/spanish.yaml" {
		t.Errorf("unexpected rule packs %v", cfg.Detector.RulePacks)
	}
	if cfg.Cache.Backend != "sqlite" || cfg.Cache.TTL != time.Hour {
		t.Errorf("unexpected cache config %+v", cfg.Cache)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected logging level debug, got %q", cfg.Telemetry.Logging.Level)
	}

	// Omitted fields keep their defaults, including true booleans.
	if cfg.Analyzer.QueueSize != DefaultQueueSize {
		t.Errorf("expected default queue size, got %d", cfg.Analyzer.QueueSize)
	}
	if !cfg.Telemetry.Logging.RedactPII {
		t.Error("expected redact_pii to keep its default")
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		errContains string
	}{
		{
			name:        "invalid yaml",
			content:     "analyzer: [unclosed",
			errContains: "failed to parse",
		},
		{
			name:        "invalid values",
			content:     "analyzer:\n  quality_threshold: 2\n",
			errContains: "analyzer.quality_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("expected error containing %q, got %q", tt.errContains, err.Error())
			}
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "analyzer:\n  thread_count: 3\n")

	t.Setenv("AEGIS_ANALYZER_THREAD_COUNT", "7")
	t.Setenv("AEGIS_ANALYZER_TIMEOUT", "2s")
	t.Setenv("AEGIS_ANALYZER_ENABLE_PARALLEL", "false")
	t.Setenv("AEGIS_ANALYZER_QUALITY_THRESHOLD", "0.5")
	t.Setenv("AEGIS_DETECTOR_RULE_PACKS", "a.yaml, b.yaml")
	t.Setenv("AEGIS_CACHE_TTL", "not-a-duration")
	t.Setenv("AEGIS_TELEMETRY_LOGGING_FORMAT", "console")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Analyzer.ThreadCount != 7 {
		t.Errorf("expected env to override thread count to 7, got %d", cfg.Analyzer.ThreadCount)
	}
	if cfg.Analyzer.Timeout != 2*time.Second {
		t.Errorf("expected timeout 2s, got %v", cfg.Analyzer.Timeout)
	}
	if cfg.Analyzer.EnableParallel {
		t.Error("expected enable_parallel false from env")
	}
	if cfg.Analyzer.QualityThreshold != 0.5 {
		t.Errorf("expected quality threshold 0.5, got %v", cfg.Analyzer.QualityThreshold)
	}
	if len(cfg.Detector.RulePacks) != 2 || cfg.Detector.RulePacks[1] != "b.yaml" {
		t.Errorf("expected two rule packs, got %v", cfg.Detector.RulePacks)
	}
	if cfg.Cache.TTL != DefaultCacheTTL {
		t.Errorf("expected unparsable override to be ignored, got %v", cfg.Cache.TTL)
	}
	if cfg.Telemetry.Logging.Format != "console" {
		t.Errorf("expected console format, got %q", cfg.Telemetry.Logging.Format)
	}
}

func TestLoadConfigWithEnvOverrides_NoFile(t *testing.T) {
	t.Setenv("AEGIS_CACHE_BACKEND", "sqlite")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Cache.Backend != "sqlite" {
		t.Errorf("expected sqlite backend, got %q", cfg.Cache.Backend)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidOverride(t *testing.T) {
	t.Setenv("AEGIS_CACHE_BACKEND", "redis")

	_, err := LoadConfigWithEnvOverrides("")
	if err == nil || !strings.Contains(err.Error(), "after environment overrides") {
		t.Errorf("expected validation failure after overrides, got %v", err)
	}
}
