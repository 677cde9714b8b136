package main

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"mercator-hq/aegis/pkg/analyzer"
	"mercator-hq/aegis/pkg/cache"
	"mercator-hq/aegis/pkg/cli"
	"mercator-hq/aegis/pkg/config"
	"mercator-hq/aegis/pkg/content"
	"mercator-hq/aegis/pkg/detector"
	"mercator-hq/aegis/pkg/registry"
	"mercator-hq/aegis/pkg/telemetry/logging"
	"mercator-hq/aegis/pkg/telemetry/metrics"
	"mercator-hq/aegis/pkg/telemetry/tracing"
)

// app holds the components shared by the analysis commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
	rules    *detector.RuleSet
	store    cache.Store
	pruner   *cache.Pruner
	analyzer *analyzer.Analyzer
}

// loadConfig reads the config file and environment overrides, applying
// the --verbose flag last.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("config", err.Error())
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

// newLogger builds the process logger and installs it as the slog default.
func newLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	l, err := logging.New(logging.FromConfig(cfg))
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	logger := l.Slog()
	slog.SetDefault(logger)
	return logger, nil
}

// loadRules builds the detector rule set from the configured rule packs
// and context keywords.
func loadRules(cfg config.DetectorConfig) (*detector.RuleSet, error) {
	rules, err := detector.LoadRuleSet(cfg.RulePacks)
	if err != nil {
		return nil, err
	}
	if len(cfg.ContextKeywords) > 0 {
		rules = rules.WithContextKeywords(cfg.ContextKeywords)
	}
	return rules, nil
}

// newStore opens the configured cache backend.
func newStore(cfg *config.Config, collector *metrics.Collector, logger *slog.Logger) (cache.Store, error) {
	hook := cache.WithEvictionHook(collector.RecordCacheEvictions)

	switch cfg.Cache.Backend {
	case cache.BackendSQLite:
		store, err := cache.NewSQLiteStore(cache.SQLiteConfig{
			Path:     cfg.Cache.SQLitePath,
			Capacity: cfg.Analyzer.CacheSize,
			Logger:   logger,
		}, hook)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite cache: %w", err)
		}
		return store, nil
	case cache.BackendMemory, "":
		return cache.NewLRU(cfg.Analyzer.CacheSize, hook), nil
	default:
		return nil, cli.NewConfigError("cache.backend", fmt.Sprintf("unsupported backend %q", cfg.Cache.Backend))
	}
}

// newApp wires configuration, logging, metrics, rules, cache and the
// analyzer. Overrides are applied to the loaded configuration in order,
// before anything is constructed. The caller must Close the app.
func newApp(ctx context.Context, overrides ...func(*config.Config)) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	for _, override := range overrides {
		override(cfg)
	}

	logger, err := newLogger(cfg.Telemetry.Logging)
	if err != nil {
		return nil, err
	}

	if cfg.Analyzer.MemoryLimitMB > 0 {
		debug.SetMemoryLimit(int64(cfg.Analyzer.MemoryLimitMB) << 20)
	}

	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)

	tracer, err := tracing.New(cfg.Telemetry.Tracing, Version)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.tracing", err.Error())
	}

	// Shut the tracer down if any later step fails.
	ok := false
	defer func() {
		if !ok {
			_ = tracer.Shutdown(context.Background())
		}
	}()

	rules, err := loadRules(cfg.Detector)
	if err != nil {
		return nil, err
	}

	reg := registry.New(logger)
	if err := reg.Register(detector.DefaultModelName, detector.NewModel(detector.New(rules))); err != nil {
		return nil, err
	}
	if cfg.Content.Enabled {
		ca, err := content.NewAnalyzer(cfg.Content)
		if err != nil {
			return nil, cli.NewConfigError("content", err.Error())
		}
		if err := reg.Register(content.ModelName, content.NewModel(ca)); err != nil {
			return nil, err
		}
	}

	store, err := newStore(cfg, collector, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: collector,
		tracer:  tracer,
		rules:   rules,
		store:   store,
		pruner:  cache.NewPruner(store, cfg.Cache.TTL, cfg.Cache.PruneSchedule, logger),
	}
	a.pruner.OnPrune(func(n int) {
		collector.RecordCachePruned(n)
		collector.UpdateCacheSize(store.Len())
	})

	// Persistent caches may hold entries from earlier runs.
	if cfg.Cache.Backend == cache.BackendSQLite {
		if n, err := a.pruner.RunOnce(ctx); err != nil {
			logger.Warn("failed to prune expired cache entries", "error", err)
		} else if n > 0 {
			logger.Info("pruned expired cache entries", "deleted_count", n)
		}
	}
	collector.UpdateCacheSize(store.Len())

	a.analyzer = analyzer.New(cfg.Analyzer, reg, store,
		analyzer.WithLogger(logger),
		analyzer.WithMetrics(collector),
		analyzer.WithTracer(tracer.Tracer()),
	)

	ok = true
	return a, nil
}

// Close shuts down the analyzer, the pruner, the cache store and the
// tracer, flushing pending spans.
func (a *app) Close() error {
	a.pruner.Stop()
	if err := a.analyzer.Close(); err != nil {
		a.logger.Warn("analyzer close failed", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Telemetry.Tracing.Timeout)
	defer cancel()
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Warn("tracer shutdown failed", "error", err)
	}

	return a.store.Close()
}
