package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/aegis/pkg/cache"
	"mercator-hq/aegis/pkg/config"
	"mercator-hq/aegis/pkg/detector"
	"mercator-hq/aegis/pkg/safety"
	"mercator-hq/aegis/pkg/telemetry/metrics"
)

// fakeModel scores every request the same way. With a delay it waits for
// the delay or its context, whichever comes first.
type fakeModel struct {
	score     float64
	version   string
	delay     time.Duration
	notReady  bool
	err       error
	calls     atomic.Int32
	cancelled atomic.Bool
}

func (m *fakeModel) Analyze(ctx context.Context, req safety.Request) (*safety.Score, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			m.cancelled.Store(true)
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &safety.Score{
		OverallScore: m.score,
		Confidence:   0.8,
		Categories: map[string]safety.CategoryScore{
			"quality": {Score: m.score, Confidence: 0.8},
		},
		ProcessingTime: time.Millisecond,
	}, nil
}

func (m *fakeModel) Ready() bool { return !m.notReady }

func (m *fakeModel) Info() safety.ModelInfo {
	return safety.ModelInfo{Name: "fake", Version: m.version, Type: "test"}
}

// lengthModel scores a request by its text length so batch order is
// observable. Requests whose text equals slow are held for delay.
type lengthModel struct {
	slow  string
	delay time.Duration
}

func (m lengthModel) Analyze(ctx context.Context, req safety.Request) (*safety.Score, error) {
	if m.slow != "" && req.Text == m.slow {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s := float64(len(req.Text)) / 100
	return &safety.Score{
		Categories: map[string]safety.CategoryScore{"length": {Score: s, Confidence: 1}},
	}, nil
}

func (lengthModel) Ready() bool { return true }

func (lengthModel) Info() safety.ModelInfo { return safety.ModelInfo{Name: "length", Version: "0.1"} }

// stubbornModel sleeps without watching its context.
type stubbornModel struct {
	delay time.Duration
	calls atomic.Int32
}

func (m *stubbornModel) Analyze(ctx context.Context, req safety.Request) (*safety.Score, error) {
	m.calls.Add(1)
	time.Sleep(m.delay)
	return &safety.Score{
		Categories: map[string]safety.CategoryScore{"quality": {Score: 1, Confidence: 1}},
	}, nil
}

func (m *stubbornModel) Ready() bool { return true }

func (m *stubbornModel) Info() safety.ModelInfo {
	return safety.ModelInfo{Name: "stubborn", Version: "0.1"}
}

func testConfig() config.AnalyzerConfig {
	return config.AnalyzerConfig{
		CacheSize:        100,
		ThreadCount:      4,
		Timeout:          2 * time.Second,
		EnableParallel:   true,
		QualityThreshold: 0.85,
		QueueSize:        64,
	}
}

func newTestAnalyzer(t *testing.T, cfg config.AnalyzerConfig, opts ...Option) *Analyzer {
	t.Helper()
	a := New(cfg, nil, nil, opts...)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAnalyze_DetectorModel(t *testing.T) {
	a := newTestAnalyzer(t, testConfig())
	if err := a.Register(detector.DefaultModelName, detector.NewModel(nil)); err != nil {
		t.Fatalf("failed to register model: %v", err)
	}

	score, err := a.Analyze(context.Background(), "I will kill someone tonight")
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}

	harmful, ok := score.Categories["rules_harmful_content"]
	if !ok {
		t.Fatalf("expected namespaced harmful_content category, got %v", score.Categories)
	}
	if harmful.Score >= 1 {
		t.Errorf("expected harmful category to be penalized, got %v", harmful.Score)
	}
	if _, ok := score.Categories["rules_overall"]; !ok {
		t.Error("expected namespaced overall category")
	}
	if len(score.Flags) == 0 {
		t.Fatal("expected at least one flag")
	}
	if score.Flags[0].Severity != safety.SeverityCritical {
		t.Errorf("expected critical flag, got %v", score.Flags[0].Severity)
	}

	if math.Abs(score.OverallScore-safety.MeanScore(score.Categories)) > 1e-9 {
		t.Errorf("expected overall score to be the category mean, got %v", score.OverallScore)
	}
	if score.Metadata.AnalysisID == "" {
		t.Error("expected analysis id")
	}
	if score.Metadata.ModelVersions[detector.DefaultModelName] != detector.ModelVersion {
		t.Errorf("unexpected model versions %v", score.Metadata.ModelVersions)
	}
	if len(score.Metadata.Pipeline) != len(Pipeline) || score.Metadata.Pipeline[0] != "preprocessing" {
		t.Errorf("unexpected pipeline %v", score.Metadata.Pipeline)
	}
	if score.Metadata.System.CPUCores <= 0 {
		t.Error("expected system info")
	}
	if !a.RequiresReview(score) {
		t.Error("expected critical content to require review")
	}
}

func TestAnalyze_CleanText(t *testing.T) {
	a := newTestAnalyzer(t, testConfig())
	a.Register(detector.DefaultModelName, detector.NewModel(nil))

	score, err := a.Analyze(context.Background(), "The weather is lovely today.")
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	if score.OverallScore != 1 {
		t.Errorf("expected clean text to score 1, got %v", score.OverallScore)
	}
	if len(score.Flags) != 0 {
		t.Errorf("expected no flags, got %d", len(score.Flags))
	}
	if score.Flags == nil {
		t.Error("expected empty, non-nil flags")
	}
	if a.RequiresReview(score) {
		t.Error("expected clean text to pass review threshold")
	}
}

func TestAnalyze_MergesModels(t *testing.T) {
	a := newTestAnalyzer(t, testConfig())
	a.Register("alpha", &fakeModel{score: 1, version: "a1"})
	a.Register("beta", &fakeModel{score: 0.5, version: "b2"})
	a.Register("gamma", &fakeModel{score: 0, notReady: true})

	score, err := a.Analyze(context.Background(), "hello")
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}

	if len(score.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %v", score.Categories)
	}
	if score.Categories["alpha_quality"].Score != 1 || score.Categories["beta_quality"].Score != 0.5 {
		t.Errorf("unexpected categories %v", score.Categories)
	}
	if score.OverallScore != 0.75 {
		t.Errorf("expected overall 0.75, got %v", score.OverallScore)
	}
	if score.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %v", score.Confidence)
	}
	if score.ProcessingTime != 2*time.Millisecond {
		t.Errorf("expected summed processing time 2ms, got %v", score.ProcessingTime)
	}
	if score.Metadata.ModelVersions["alpha"] != "a1" || score.Metadata.ModelVersions["beta"] != "b2" {
		t.Errorf("unexpected model versions %v", score.Metadata.ModelVersions)
	}
	if _, ok := score.Metadata.ModelVersions["gamma"]; ok {
		t.Error("expected model that is not ready to be skipped")
	}
}

func TestAnalyze_CacheHit(t *testing.T) {
	a := newTestAnalyzer(t, testConfig())
	model := &fakeModel{score: 0.9}
	a.Register("m", model)

	first, err := a.Analyze(context.Background(), "same text")
	if err != nil {
		t.Fatalf("first analysis failed: %v", err)
	}
	before := a.Metrics()
	submitted := a.Pool().Stats().Submitted

	second, err := a.Analyze(context.Background(), "same text")
	if err != nil {
		t.Fatalf("second analysis failed: %v", err)
	}

	if model.calls.Load() != 1 {
		t.Errorf("expected model to run once, ran %d times", model.calls.Load())
	}
	if second.Metadata.AnalysisID != first.Metadata.AnalysisID {
		t.Error("expected cached score to carry the original analysis id")
	}
	if second == first {
		t.Error("expected cache to return a copy")
	}
	if a.Metrics() != before {
		t.Error("expected cache hit to leave performance metrics untouched")
	}
	if got := a.Pool().Stats().Submitted; got != submitted {
		t.Errorf("expected cache hit not to submit a pool job, submitted went from %d to %d", submitted, got)
	}

	// Mutating the returned copy must not affect the cache.
	second.Categories["m_quality"] = safety.CategoryScore{Score: 0}
	third, _ := a.Analyze(context.Background(), "same text")
	if third.Categories["m_quality"].Score != 0.9 {
		t.Errorf("cache was mutated through a returned score: %v", third.Categories)
	}
}

func TestAnalyze_ContextChangesFingerprint(t *testing.T) {
	a := newTestAnalyzer(t, testConfig())
	model := &fakeModel{score: 1}
	a.Register("m", model)

	a.AnalyzeRequest(context.Background(), safety.Request{Text: "text"})
	a.AnalyzeRequest(context.Background(), safety.Request{Text: "text", Context: "medical"})

	if model.calls.Load() != 2 {
		t.Errorf("expected requests with different context to miss the cache, got %d calls", model.calls.Load())
	}
	if a.Store().Len() != 2 {
		t.Errorf("expected 2 cache entries, got %d", a.Store().Len())
	}
}

func TestAnalyze_InvalidContent(t *testing.T) {
	a := newTestAnalyzer(t, testConfig())
	a.Register("m", &fakeModel{score: 1})

	for _, text := range []string{"", "bad \xff utf8"} {
		if _, err := a.Analyze(context.Background(), text); !errors.Is(err, safety.ErrInvalidContent) {
			t.Errorf("Analyze(%q): expected ErrInvalidContent, got %v", text, err)
		}
	}
}

func TestAnalyze_NoModels(t *testing.T) {
	a := newTestAnalyzer(t, testConfig())

	_, err := a.Analyze(context.Background(), "text")
	if !errors.Is(err, safety.ErrModelLoad) {
		t.Errorf("expected ErrModelLoad, got %v", err)
	}

	a.Register("m", &fakeModel{notReady: true})
	_, err = a.Analyze(context.Background(), "text")
	var mle *safety.ModelLoadError
	if !errors.As(err, &mle) || len(mle.Registered) != 1 {
		t.Errorf("expected ModelLoadError listing the registered model, got %v", err)
	}
}

func TestAnalyze_ModelError(t *testing.T) {
	a := newTestAnalyzer(t, testConfig())
	cause := errors.New("backend offline")
	a.Register("m", &fakeModel{err: cause})

	if _, err := a.Analyze(context.Background(), "text"); !errors.Is(err, cause) {
		t.Errorf("expected model error, got %v", err)
	}
	if a.Store().Len() != 0 {
		t.Error("expected failed analysis not to be cached")
	}
}

func TestAnalyzeWithTimeout_Timeout(t *testing.T) {
	a := newTestAnalyzer(t, testConfig())
	model := &fakeModel{score: 1, delay: time.Second}
	a.Register("slow", model)

	start := time.Now()
	_, err := a.AnalyzeWithTimeout(context.Background(), safety.Request{Text: "slow text"}, 20*time.Millisecond)
	if !errors.Is(err, safety.ErrProcessingTimeout) {
		t.Fatalf("expected ErrProcessingTimeout, got %v", err)
	}
	var te *safety.TimeoutError
	if !errors.As(err, &te) || te.Timeout != 20*time.Millisecond {
		t.Errorf("expected TimeoutError with 20ms, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("timeout took too long: %v", time.Since(start))
	}

	// The job's context is cancelled so the model stops early.
	deadline := time.Now().Add(time.Second)
	for !model.cancelled.Load() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !model.cancelled.Load() {
		t.Error("expected the model to observe cancellation")
	}
	if a.Store().Len() != 0 {
		t.Error("expected timed out analysis not to be cached")
	}
}

func TestAnalyzeWithTimeout_RecoversAfterTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.ThreadCount = 1
	a := newTestAnalyzer(t, cfg)
	model := &stubbornModel{delay: 100 * time.Millisecond}
	a.Register("stubborn", model)

	_, err := a.AnalyzeWithTimeout(context.Background(), safety.Request{Text: "first"}, 10*time.Millisecond)
	if !errors.Is(err, safety.ErrProcessingTimeout) {
		t.Fatalf("expected ErrProcessingTimeout, got %v", err)
	}

	// The only worker is still busy with the first job; the next request
	// waits for it rather than failing.
	score, err := a.AnalyzeWithTimeout(context.Background(), safety.Request{Text: "second"}, 5*time.Second)
	if err != nil {
		t.Fatalf("expected analysis to succeed after the earlier timeout, got %v", err)
	}
	if score.Categories["stubborn_quality"].Score != 1 {
		t.Errorf("expected stubborn_quality 1, got %v", score.Categories)
	}
	if model.calls.Load() != 2 {
		t.Errorf("expected 2 model calls, got %d", model.calls.Load())
	}
	if a.Store().Len() != 1 {
		t.Errorf("expected only the successful analysis cached, got %d entries", a.Store().Len())
	}
}

func TestAnalyze_CallerCancelled(t *testing.T) {
	a := newTestAnalyzer(t, testConfig())
	a.Register("slow", &fakeModel{score: 1, delay: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if _, err := a.Analyze(ctx, "text"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestAnalyze_Concurrent(t *testing.T) {
	a := newTestAnalyzer(t, testConfig())
	a.Register("length", lengthModel{})

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text := fmt.Sprintf("item-%d", i%10)
			score, err := a.Analyze(context.Background(), text)
			if err != nil {
				errs <- err
				return
			}
			if want := float64(len(text)) / 100; score.Categories["length_length"].Score != want {
				errs <- fmt.Errorf("%s: expected %v, got %v", text, want, score.Categories["length_length"].Score)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	if a.Store().Len() != 10 {
		t.Errorf("expected 10 distinct cache entries, got %d", a.Store().Len())
	}
}

func TestUpdatePerformance_MovingAverage(t *testing.T) {
	now := time.Unix(1000, 0)
	a := newTestAnalyzer(t, testConfig(), WithClock(func() time.Time { return now }))

	now = now.Add(2 * time.Second)
	a.updatePerformance(10 * time.Millisecond)
	if got := a.Metrics().AvgProcessingTimeMs; got != 10 {
		t.Errorf("expected first sample to seed average 10, got %v", got)
	}

	a.updatePerformance(20 * time.Millisecond)
	if got := a.Metrics().AvgProcessingTimeMs; got != 15 {
		t.Errorf("expected average 15, got %v", got)
	}

	a.updatePerformance(5 * time.Millisecond)
	m := a.Metrics()
	if m.AvgProcessingTimeMs != 10 {
		t.Errorf("expected average 10, got %v", m.AvgProcessingTimeMs)
	}
	if m.ThroughputPerSecond != 1.5 {
		t.Errorf("expected throughput 1.5/s, got %v", m.ThroughputPerSecond)
	}
}

func TestInfo(t *testing.T) {
	a := newTestAnalyzer(t, testConfig())
	a.Register(detector.DefaultModelName, detector.NewModel(nil))

	info := a.Info()
	if info.Name != Name || info.Version != Version {
		t.Errorf("unexpected identity %s %s", info.Name, info.Version)
	}
	if len(info.Capabilities) != 5 || len(info.SupportedLanguages) != 4 {
		t.Errorf("unexpected capabilities %v languages %v", info.Capabilities, info.SupportedLanguages)
	}
	if len(info.Models) != 1 || info.Models[0].Name != detector.DefaultModelName {
		t.Errorf("unexpected models %v", info.Models)
	}

	info.Capabilities[0] = "changed"
	if Capabilities[0] == "changed" {
		t.Error("Info shares the capabilities slice")
	}
}

func TestClose(t *testing.T) {
	a := New(testConfig(), nil, nil)
	a.Register("m", &fakeModel{score: 1})

	if err := a.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}
	if _, err := a.Analyze(context.Background(), "text"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if !a.Pool().Closed() {
		t.Error("expected pool to be closed")
	}
}

func TestClose_ExternalStoreStaysOpen(t *testing.T) {
	store := cache.NewLRU(10)
	a := New(testConfig(), nil, store)
	a.Register("m", &fakeModel{score: 1})

	if _, err := a.Analyze(context.Background(), "text"); err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	a.Close()

	if store.Len() != 1 {
		t.Errorf("expected caller-owned store to keep its entry, got %d", store.Len())
	}
}

func TestNew_Defaults(t *testing.T) {
	a := newTestAnalyzer(t, config.AnalyzerConfig{CacheSize: 1})

	cfg := a.Config()
	if cfg.Timeout != config.DefaultTimeout {
		t.Errorf("expected default timeout, got %v", cfg.Timeout)
	}
	if cfg.ThreadCount != config.DefaultThreadCount() {
		t.Errorf("expected default thread count, got %d", cfg.ThreadCount)
	}
	if a.Pool().Stats().Workers != cfg.ThreadCount {
		t.Errorf("expected %d workers, got %d", cfg.ThreadCount, a.Pool().Stats().Workers)
	}
}

func TestAnalyze_RecordsMetrics(t *testing.T) {
	collector := metrics.NewCollector(config.MetricsConfig{Enabled: true, Namespace: "test"}, nil)
	a := newTestAnalyzer(t, testConfig(), WithMetrics(collector))
	a.Register(detector.DefaultModelName, detector.NewModel(nil))

	a.Analyze(context.Background(), "My SSN is 123-45-6789")
	a.Analyze(context.Background(), "My SSN is 123-45-6789")
	a.Analyze(context.Background(), "")

	expected := `
# HELP test_cache_hits_total Total number of cache hits
# TYPE test_cache_hits_total counter
test_cache_hits_total 1
# HELP test_cache_misses_total Total number of cache misses
# TYPE test_cache_misses_total counter
test_cache_misses_total 1
# HELP test_cache_entries Current number of entries in cache
# TYPE test_cache_entries gauge
test_cache_entries 1
`
	if err := testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected),
		"test_cache_hits_total", "test_cache_misses_total", "test_cache_entries"); err != nil {
		t.Errorf("unexpected cache metrics: %v", err)
	}

	counts := []struct {
		metric string
		want   int
	}{
		{"test_analyses_total", 3},
		{"test_flags_total", 1},
		{"test_model_duration_seconds", 1},
	}
	for _, tt := range counts {
		got, err := testutil.GatherAndCount(collector.Registry(), tt.metric)
		if err != nil {
			t.Fatalf("failed to gather %s: %v", tt.metric, err)
		}
		if got != tt.want {
			t.Errorf("%s: expected %d series, got %d", tt.metric, tt.want, got)
		}
	}
}
