package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/aegis/pkg/cli"
	"mercator-hq/aegis/pkg/telemetry/health"
	"mercator-hq/aegis/pkg/watch"
)

var watchFlags struct {
	metricsAddr string
	format      string
}

var watchCmd = &cobra.Command{
	Use:   "watch DIR",
	Short: "Screen files as they are written to a directory",
	Long: `Watch DIR and screen every file with a configured extension once writes
to it settle. Results are printed as they complete.

With --metrics-addr an HTTP server exposes Prometheus metrics and the
liveness, readiness and version endpoints while watching.

Examples:
  # Watch a directory
  aegis watch ./inbox

  # Watch and serve metrics and health checks
  aegis watch ./inbox --metrics-addr :9090 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchFlags.metricsAddr, "metrics-addr", "", "serve metrics and health endpoints on this address")
	watchCmd.Flags().StringVarP(&watchFlags.format, "format", "o", "text", "output format (text, json)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(watchFlags.format)
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.pruner.Start(ctx); err != nil {
		return err
	}

	w, err := watch.New(watch.FromConfig(a.cfg.Watch, args[0]), a.analyzer, a.logger)
	if err != nil {
		return err
	}
	defer w.Stop()

	if watchFlags.metricsAddr != "" {
		srv := &http.Server{
			Addr:              watchFlags.metricsAddr,
			Handler:           a.telemetryMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.logger.Info("telemetry server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("telemetry server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("telemetry server shutdown failed", "error", err)
			}
		}()
	}

	formatter := newFormatter(format, a.cfg.Analyzer.QualityThreshold)
	out := cmd.OutOrStdout()
	var mu sync.Mutex

	return w.Watch(ctx, func(r watch.Result) {
		a.metrics.UpdateCacheSize(a.store.Len())

		mu.Lock()
		defer mu.Unlock()

		if r.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", r.Path, r.Err)
			return
		}
		if format == cli.FormatText {
			fmt.Fprintf(out, "%s\n", r.Path)
		}
		if err := formatter.FormatTo(out, r.Score); err != nil {
			a.logger.Error("failed to write result", "path", r.Path, "error", err)
		}
	})
}

// telemetryMux serves Prometheus metrics and the health endpoints.
func (a *app) telemetryMux() *http.ServeMux {
	mux := http.NewServeMux()

	if a.metrics.Enabled() {
		mux.Handle(a.cfg.Telemetry.Metrics.Path, a.metrics.Handler())
	}

	checker := health.New(a.cfg.Telemetry.Health.CheckTimeout)
	checker.RegisterCheck("models", health.RegistryCheck(a.analyzer.Registry()))
	checker.RegisterCheck("pool", health.PoolCheck(a.analyzer.Pool()))
	checker.RegisterCheck("cache", health.CacheCheck(a.store))
	health.Mount(mux, checker, a.cfg.Telemetry.Health, versionInfo())

	return mux
}
