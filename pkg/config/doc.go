// Package config provides configuration management for Aegis.
//
// This package handles loading and validating configuration from YAML
// files with environment variable overrides. Configuration is passed
// explicitly to the components that need it; there is no global instance.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("aegis.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("aegis.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention AEGIS_SECTION_FIELD.
// For example:
//
//   - AEGIS_ANALYZER_TIMEOUT overrides analyzer.timeout
//   - AEGIS_CACHE_BACKEND overrides cache.backend
//   - AEGIS_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// List fields take comma-separated values (AEGIS_DETECTOR_RULE_PACKS).
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Validation
//
// Validation errors include field paths and helpful messages:
//
//	configuration validation failed with 2 errors:
//	  - analyzer.timeout: timeout must be positive
//	  - cache.backend: invalid cache backend "redis": must be 'memory' or 'sqlite'
//
// # Example Configuration
//
//	analyzer:
//	  thread_count: 8
//	  timeout: 5s
//	  cache_size: 50000
//	  enable_parallel: true
//
//	detector:
//	  rule_packs:
//	    - packs/spanish.yaml
//
//	content:
//	  enabled: true
//	  toxicity_categories: [violence, hate_speech]
//
//	cache:
//	  backend: sqlite
//	  sqlite_path: data/aegis-cache.db
//	  ttl: 12h
//	  prune_schedule: "0 * * * *"
//
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
//	  tracing:
//	    enabled: true
//	    endpoint: localhost:4317
//	    insecure: true
package config
