package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"mercator-hq/aegis/pkg/cache"
	"mercator-hq/aegis/pkg/config"
	"mercator-hq/aegis/pkg/pool"
	"mercator-hq/aegis/pkg/registry"
	"mercator-hq/aegis/pkg/safety"
	"mercator-hq/aegis/pkg/telemetry/logging"
	"mercator-hq/aegis/pkg/telemetry/metrics"
	"mercator-hq/aegis/pkg/telemetry/tracing"
)

// Analyzer identity reported by Info and stamped on every Score.
const (
	Name    = "AdvancedSafetyAnalyzer"
	Version = "1.0.0"
)

// ErrClosed is returned by analyses started after Close.
var ErrClosed = errors.New("analyzer closed")

// Pipeline lists the stages recorded in every Score's metadata.
var Pipeline = []string{"preprocessing", "tokenization", "analysis", "scoring", "postprocessing"}

// Capabilities advertised by Info.
var Capabilities = []string{
	"content_analysis",
	"bias_detection",
	"toxicity_analysis",
	"constitutional_ai",
	"concurrent_processing",
}

// SupportedLanguages advertised by Info.
var SupportedLanguages = []string{"english", "spanish", "french", "german"}

// Analyzer is the analysis orchestrator. It checks the result cache,
// dispatches misses to the worker pool, bounds each analysis by a timeout
// and keeps running performance metrics.
//
// An Analyzer is safe for concurrent use. Construct one per process and
// pass it explicitly; there is no global instance.
type Analyzer struct {
	cfg       config.AnalyzerConfig
	registry  *registry.Registry
	store     cache.Store
	ownsStore bool
	pool      *pool.Pool
	metrics   *metrics.Collector
	tracer    trace.Tracer
	logger    *slog.Logger
	system    safety.SystemInfo

	now   func() time.Time
	newID func() string

	perfMu  sync.Mutex
	perf    safety.PerformanceMetrics
	samples uint64
	started time.Time

	closed    atomic.Bool
	closeOnce sync.Once
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the analyzer logger. The pool and registry created by
// New share it.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMetrics records analysis, cache and pool activity on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(a *Analyzer) {
		if c != nil {
			a.metrics = c
		}
	}
}

// WithTracer opens a span for every analysis and batch on t.
func WithTracer(t trace.Tracer) Option {
	return func(a *Analyzer) {
		if t != nil {
			a.tracer = t
		}
	}
}

// WithClock overrides the time source used for timestamps and the
// throughput window.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// New creates an analyzer.
//
// A nil registry creates an empty one; models are added with Register.
// A nil store creates an in-memory LRU of cfg.CacheSize entries owned by
// the analyzer and closed by Close. A store passed in remains owned by
// the caller. Zero config values fall back to the package defaults.
func New(cfg config.AnalyzerConfig, reg *registry.Registry, store cache.Store, opts ...Option) *Analyzer {
	if cfg.ThreadCount <= 0 {
		cfg.ThreadCount = config.DefaultThreadCount()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = config.DefaultQueueSize
	}

	a := &Analyzer{
		cfg:     cfg,
		logger:  slog.Default(),
		metrics: metrics.NewCollector(config.MetricsConfig{Enabled: false}, nil),
		tracer:  noop.NewTracerProvider().Tracer(tracing.InstrumentationName),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "analyzer")

	if reg == nil {
		reg = registry.New(a.logger)
	}
	reg.Observe(a.metrics.RecordModel)
	a.registry = reg

	if store == nil {
		store = cache.NewLRU(cfg.CacheSize, cache.WithEvictionHook(a.metrics.RecordCacheEvictions))
		a.ownsStore = true
	}
	a.store = store

	a.pool = pool.New(cfg.ThreadCount, cfg.QueueSize,
		pool.WithObserver(a.metrics.Pool()),
		pool.WithLogger(a.logger),
	)

	a.system = safety.SystemInfo{
		CPUCores:  runtime.NumCPU(),
		MemoryMB:  uint64(cfg.MemoryLimitMB),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		GoVersion: runtime.Version(),
	}
	a.started = a.now()

	a.logger.Info("analyzer started",
		"threads", cfg.ThreadCount,
		"queue_size", cfg.QueueSize,
		"timeout", cfg.Timeout,
		"cache_size", cfg.CacheSize,
		"parallel_batch", cfg.EnableParallel,
	)

	return a
}

// Register adds a model to the analyzer's registry.
func (a *Analyzer) Register(name string, c registry.Capability) error {
	return a.registry.Register(name, c)
}

// Registry returns the analyzer's model registry.
func (a *Analyzer) Registry() *registry.Registry {
	return a.registry
}

// Store returns the analyzer's result cache.
func (a *Analyzer) Store() cache.Store {
	return a.store
}

// Pool returns the analyzer's worker pool.
func (a *Analyzer) Pool() *pool.Pool {
	return a.pool
}

// Config returns the effective analyzer configuration.
func (a *Analyzer) Config() config.AnalyzerConfig {
	return a.cfg
}

// Analyze screens text with the configured timeout.
func (a *Analyzer) Analyze(ctx context.Context, text string) (*safety.Score, error) {
	return a.AnalyzeRequest(ctx, safety.Request{Text: text})
}

// AnalyzeRequest screens req with the configured timeout.
func (a *Analyzer) AnalyzeRequest(ctx context.Context, req safety.Request) (*safety.Score, error) {
	return a.AnalyzeWithTimeout(ctx, req, a.cfg.Timeout)
}

// AnalyzeWithTimeout screens req, waiting at most timeout for a result.
// A non-positive timeout uses the configured one.
//
// Cached results are returned immediately. Otherwise the analysis runs on
// the worker pool; if it does not finish in time a *safety.TimeoutError is
// returned and the job's context is cancelled. A late result is dropped
// and never cached.
func (a *Analyzer) AnalyzeWithTimeout(ctx context.Context, req safety.Request, timeout time.Duration) (*safety.Score, error) {
	return a.analyze(ctx, req, timeout, a.pool.Submit)
}

// dispatchFunc hands a job to an executor. It must not block past ctx.
type dispatchFunc func(ctx context.Context, job pool.Job) error

// goDispatch runs each job on its own goroutine.
func goDispatch(ctx context.Context, job pool.Job) error {
	go job(ctx)
	return nil
}

type outcome struct {
	score *safety.Score
	err   error
}

func (a *Analyzer) analyze(ctx context.Context, req safety.Request, timeout time.Duration, dispatch dispatchFunc) (score *safety.Score, err error) {
	start := a.now()

	ctx, span := a.tracer.Start(ctx, "analyzer.analyze", trace.WithAttributes(tracing.RequestAttributes(req)...))
	defer func() {
		tracing.SetScoreAttributes(span, score)
		tracing.SetError(span, err)
		span.End()
	}()
	if id := tracing.TraceID(ctx); id != "" {
		ctx = logging.WithTraceID(ctx, id)
	}

	if a.closed.Load() {
		return nil, ErrClosed
	}

	if err := safety.ValidateText(req.Text); err != nil {
		a.metrics.RecordAnalysis(metrics.StatusRejected, time.Since(start), 0)
		return nil, err
	}

	if timeout <= 0 {
		timeout = a.cfg.Timeout
	}

	fp := cache.NewFingerprint(req)
	ctx = logging.WithFingerprint(ctx, fp.Short())
	span.SetAttributes(attribute.String(tracing.AttrFingerprint, fp.Short()))

	cached, ok := a.lookup(ctx, fp)
	span.SetAttributes(attribute.Bool(tracing.AttrCacheHit, ok))
	if ok {
		a.metrics.RecordAnalysis(metrics.StatusCached, time.Since(start), cached.OverallScore)
		a.logger.DebugContext(ctx, "cache hit", "analysis_id", cached.Metadata.AnalysisID)
		return cached, nil
	}

	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so a job finishing after the deadline never blocks.
	results := make(chan outcome, 1)
	job := func(ctx context.Context) {
		score, err := a.run(ctx, req)
		results <- outcome{score: score, err: err}
	}

	if err := dispatch(jobCtx, job); err != nil {
		status := metrics.StatusError
		if errors.Is(err, safety.ErrResourceExhausted) {
			status = metrics.StatusRejected
		}
		a.metrics.RecordAnalysis(status, time.Since(start), 0)
		if errors.Is(err, pool.ErrPoolClosed) {
			return nil, ErrClosed
		}
		return nil, err
	}

	select {
	case out := <-results:
		if out.err != nil {
			return nil, a.fail(ctx, jobCtx, fp, timeout, start, out.err)
		}
		a.complete(ctx, fp, out.score, time.Since(start))
		return out.score, nil

	case <-jobCtx.Done():
		return nil, a.fail(ctx, jobCtx, fp, timeout, start, jobCtx.Err())
	}
}

// lookup reads the cache. Store failures are logged and treated as misses.
func (a *Analyzer) lookup(ctx context.Context, fp cache.Fingerprint) (*safety.Score, bool) {
	cached, ok, err := a.store.Get(ctx, fp)
	if err != nil {
		a.logger.WarnContext(ctx, "cache lookup failed", "error", err)
		ok = false
	}
	if ok {
		a.metrics.RecordCacheHit()
		return cached, true
	}
	a.metrics.RecordCacheMiss()
	return nil, false
}

// fail maps a job error to the error returned to the caller. A job that
// stopped because its own deadline passed is a timeout; a cancelled
// caller gets its context error back.
func (a *Analyzer) fail(ctx, jobCtx context.Context, fp cache.Fingerprint, timeout time.Duration, start time.Time, err error) error {
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		a.metrics.RecordAnalysis(metrics.StatusError, elapsed, 0)
		return ctx.Err()
	}

	if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
		a.metrics.RecordAnalysis(metrics.StatusTimeout, elapsed, 0)
		a.logger.WarnContext(ctx, "analysis timed out", "timeout", timeout)
		return &safety.TimeoutError{Timeout: timeout, Fingerprint: fp.Short()}
	}

	a.metrics.RecordAnalysis(metrics.StatusError, elapsed, 0)
	a.logger.ErrorContext(ctx, "analysis failed", "error", err)
	return err
}

// complete writes a fresh result through to the cache and updates metrics.
func (a *Analyzer) complete(ctx context.Context, fp cache.Fingerprint, score *safety.Score, elapsed time.Duration) {
	ctx = logging.WithAnalysisID(ctx, score.Metadata.AnalysisID)

	if err := a.store.Put(ctx, fp, score); err != nil {
		a.logger.WarnContext(ctx, "cache write failed", "error", err)
	}
	a.metrics.UpdateCacheSize(a.store.Len())

	a.updatePerformance(elapsed)

	a.metrics.RecordAnalysis(metrics.StatusSuccess, elapsed, score.OverallScore)
	for _, f := range score.Flags {
		a.metrics.RecordFlag(string(f.Type), f.Severity.String())
	}

	a.logger.DebugContext(ctx, "analysis completed",
		"overall_score", score.OverallScore,
		"flags", len(score.Flags),
		"duration_ms", float64(elapsed.Microseconds())/1000,
	)
}

// run queries every ready model and merges their fragments.
func (a *Analyzer) run(ctx context.Context, req safety.Request) (*safety.Score, error) {
	fragments, err := a.registry.Query(ctx, req)
	if err != nil {
		return nil, err
	}
	return a.merge(fragments), nil
}

// merge combines model fragments into one Score. Category names are
// namespaced as <model>_<category> so models cannot collide.
func (a *Analyzer) merge(fragments []registry.Fragment) *safety.Score {
	categories := make(map[string]safety.CategoryScore)
	versions := make(map[string]string, len(fragments))
	var flags []safety.SafetyFlag
	var processing time.Duration

	for _, f := range fragments {
		for name, cs := range f.Score.Categories {
			categories[f.Model+"_"+name] = cs
		}
		flags = append(flags, f.Score.Flags...)
		versions[f.Model] = f.Version

		if f.Score.ProcessingTime > 0 {
			processing += f.Score.ProcessingTime
		} else {
			processing += f.Elapsed
		}
	}

	if flags == nil {
		flags = []safety.SafetyFlag{}
	}

	return &safety.Score{
		OverallScore:   safety.MeanScore(categories),
		Confidence:     safety.MeanConfidence(categories),
		Categories:     categories,
		Flags:          flags,
		ProcessingTime: processing,
		Metadata: safety.Metadata{
			AnalysisID:      a.newID(),
			AnalyzerVersion: Version,
			ModelVersions:   versions,
			Pipeline:        append([]string(nil), Pipeline...),
			System:          a.system,
			Timestamp:       a.now().UTC(),
		},
	}
}

// updatePerformance folds one analysis duration into the running average.
// The first sample seeds the average; later samples halve the distance.
func (a *Analyzer) updatePerformance(d time.Duration) {
	ms := float64(d.Microseconds()) / 1000

	a.perfMu.Lock()
	defer a.perfMu.Unlock()

	if a.samples == 0 {
		a.perf.AvgProcessingTimeMs = ms
	} else {
		a.perf.AvgProcessingTimeMs = (a.perf.AvgProcessingTimeMs + ms) / 2
	}
	a.samples++

	if window := a.now().Sub(a.started).Seconds(); window > 0 {
		a.perf.ThroughputPerSecond = float64(a.samples) / window
	}
}

// Metrics returns the current performance metrics. Cache hits do not
// contribute.
func (a *Analyzer) Metrics() safety.PerformanceMetrics {
	a.perfMu.Lock()
	defer a.perfMu.Unlock()
	return a.perf
}

// Info describes the analyzer, its registered models and current
// performance.
func (a *Analyzer) Info() safety.AnalyzerInfo {
	return safety.AnalyzerInfo{
		Name:               Name,
		Version:            Version,
		Capabilities:       append([]string(nil), Capabilities...),
		SupportedLanguages: append([]string(nil), SupportedLanguages...),
		Models:             a.registry.Infos(),
		Performance:        a.Metrics(),
	}
}

// RequiresReview reports whether score should go to a human reviewer:
// it carries a critical flag or scores below the quality threshold.
func (a *Analyzer) RequiresReview(score *safety.Score) bool {
	return score.RequiresHumanReview(a.cfg.QualityThreshold)
}

// Close stops the worker pool after queued jobs drain and closes the
// cache if the analyzer created it. It is safe to call more than once.
func (a *Analyzer) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		a.pool.Close()
		if a.ownsStore {
			if cerr := a.store.Close(); cerr != nil {
				err = fmt.Errorf("failed to close cache: %w", cerr)
			}
		}
		a.logger.Info("analyzer stopped", "pool", a.pool.Stats())
	})
	return err
}
