package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mercator-hq/aegis/pkg/safety"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testScore(overall float64) *safety.Score {
	return &safety.Score{
		OverallScore: overall,
		Confidence:   0.9,
		Categories: map[string]safety.CategoryScore{
			"rules_overall": {Score: overall, Confidence: 0.9, Evidence: []string{"kill"}},
		},
		Flags: []safety.SafetyFlag{{
			Type:     safety.FlagContentViolation,
			Severity: safety.SeverityCritical,
			Location: &safety.TextLocation{Start: 0, End: 4, Line: 1, Column: 1},
		}},
		ProcessingTime: 3 * time.Millisecond,
		Metadata: safety.Metadata{
			AnalysisID: "id",
			Pipeline:   []string{"analysis"},
		},
	}
}

func fp(i int) Fingerprint {
	return NewFingerprint(safety.Request{Text: fmt.Sprintf("text-%d", i)})
}

func TestNewFingerprint(t *testing.T) {
	a := NewFingerprint(safety.Request{Text: "hello"})
	b := NewFingerprint(safety.Request{Text: "hello"})
	if a != b {
		t.Error("expected identical requests to share a fingerprint")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(a))
	}

	tests := []struct {
		name string
		x, y safety.Request
	}{
		{"different text", safety.Request{Text: "hello"}, safety.Request{Text: "hello!"}},
		{"context matters", safety.Request{Text: "hello"}, safety.Request{Text: "hello", Context: "medical"}},
		{"boundary shift", safety.Request{Text: "c", Context: "ab"}, safety.Request{Text: "bc", Context: "a"}},
		{"no normalization", safety.Request{Text: "Hello"}, safety.Request{Text: "hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if NewFingerprint(tt.x) == NewFingerprint(tt.y) {
				t.Errorf("expected different fingerprints for %+v and %+v", tt.x, tt.y)
			}
		})
	}

	if len(a.Short()) != 12 {
		t.Errorf("expected short fingerprint of 12 characters, got %q", a.Short())
	}
}

func TestLRU_GetPut(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(10)

	if _, ok, _ := c.Get(ctx, fp(1)); ok {
		t.Fatal("expected miss on empty cache")
	}

	if err := c.Put(ctx, fp(1), testScore(0.4)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok, err := c.Get(ctx, fp(1))
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.OverallScore != 0.4 {
		t.Errorf("expected score 0.4, got %v", got.OverallScore)
	}
}

func TestLRU_ReturnsClones(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(10)

	original := testScore(0.4)
	c.Put(ctx, fp(1), original)

	// Mutating the caller's copy must not reach the cache.
	original.Flags[0].Location.Start = 100
	original.Categories["rules_overall"].Evidence[0] = "mutated"

	first, _, _ := c.Get(ctx, fp(1))
	first.Flags[0].Severity = safety.SeverityLow
	first.Metadata.Pipeline[0] = "mutated"

	second, _, _ := c.Get(ctx, fp(1))
	if second.Flags[0].Location.Start != 0 {
		t.Error("cache shares flag locations with the caller that stored the score")
	}
	if second.Categories["rules_overall"].Evidence[0] != "kill" {
		t.Error("cache shares category evidence with the caller that stored the score")
	}
	if second.Flags[0].Severity != safety.SeverityCritical || second.Metadata.Pipeline[0] != "analysis" {
		t.Error("cache shares scores between readers")
	}
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()

	evicted := 0
	c := NewLRU(3, WithEvictionHook(func(n int) { evicted += n }))

	c.Put(ctx, fp(1), testScore(0.1))
	c.Put(ctx, fp(2), testScore(0.2))
	c.Put(ctx, fp(3), testScore(0.3))

	// Touch 1 so 2 becomes least recently used.
	c.Get(ctx, fp(1))
	c.Put(ctx, fp(4), testScore(0.4))

	if c.Len() != 3 {
		t.Errorf("expected 3 entries, got %d", c.Len())
	}
	if _, ok, _ := c.Get(ctx, fp(2)); ok {
		t.Error("expected entry 2 to be evicted")
	}
	for _, i := range []int{1, 3, 4} {
		if _, ok, _ := c.Get(ctx, fp(i)); !ok {
			t.Errorf("expected entry %d to remain", i)
		}
	}
	if evicted != 1 {
		t.Errorf("expected 1 eviction, got %d", evicted)
	}
}

func TestLRU_OverwriteDoesNotEvict(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(2)

	c.Put(ctx, fp(1), testScore(0.1))
	c.Put(ctx, fp(2), testScore(0.2))
	c.Put(ctx, fp(1), testScore(0.9))

	if c.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", c.Len())
	}
	got, _, _ := c.Get(ctx, fp(1))
	if got.OverallScore != 0.9 {
		t.Errorf("expected overwritten score 0.9, got %v", got.OverallScore)
	}
}

func TestLRU_ZeroCapacityDisables(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(0)

	c.Put(ctx, fp(1), testScore(0.1))
	if _, ok, _ := c.Get(ctx, fp(1)); ok {
		t.Error("expected disabled cache to miss")
	}
	if c.Len() != 0 {
		t.Errorf("expected 0 entries, got %d", c.Len())
	}
}

func TestLRU_Prune(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := NewLRU(10, WithClock(clock.Now))

	c.Put(ctx, fp(1), testScore(0.1))
	clock.Advance(time.Hour)
	c.Put(ctx, fp(2), testScore(0.2))

	removed, err := c.Prune(ctx, clock.Now().Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 entry pruned, got %d", removed)
	}
	if _, ok, _ := c.Get(ctx, fp(2)); !ok {
		t.Error("expected recent entry to remain")
	}
}

func TestLRU_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(50)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Put(ctx, fp(i%70), testScore(float64(i)/100))
			c.Get(ctx, fp((i+1)%70))
		}(i)
	}
	wg.Wait()

	if c.Len() > 50 {
		t.Errorf("expected at most 50 entries, got %d", c.Len())
	}
}

func newSQLiteStore(t *testing.T, capacity int, opts ...Option) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := NewSQLiteStore(SQLiteConfig{Path: path, Capacity: capacity}, opts...)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestSQLiteStore_GetPut(t *testing.T) {
	ctx := context.Background()
	s, _ := newSQLiteStore(t, 10)

	if _, ok, err := s.Get(ctx, fp(1)); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	want := testScore(0.25)
	if err := s.Put(ctx, fp(1), want); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok, err := s.Get(ctx, fp(1))
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.OverallScore != want.OverallScore {
		t.Errorf("expected overall %v, got %v", want.OverallScore, got.OverallScore)
	}
	if got.ProcessingTime != want.ProcessingTime {
		t.Errorf("expected processing time %v, got %v", want.ProcessingTime, got.ProcessingTime)
	}
	if len(got.Flags) != 1 || got.Flags[0].Severity != safety.SeverityCritical {
		t.Errorf("expected critical flag to survive, got %+v", got.Flags)
	}
	if got.Flags[0].Location == nil || got.Flags[0].Location.End != 4 {
		t.Errorf("expected flag location to survive, got %+v", got.Flags[0].Location)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", s.Len())
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestSQLiteStore_EvictsLeastRecentlyAccessed(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()

	evicted := 0
	s, _ := newSQLiteStore(t, 2, WithClock(clock.Now), WithEvictionHook(func(n int) { evicted += n }))

	s.Put(ctx, fp(1), testScore(0.1))
	clock.Advance(time.Second)
	s.Put(ctx, fp(2), testScore(0.2))
	clock.Advance(time.Second)
	s.Get(ctx, fp(1))
	clock.Advance(time.Second)
	s.Put(ctx, fp(3), testScore(0.3))

	if s.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", s.Len())
	}
	if _, ok, _ := s.Get(ctx, fp(2)); ok {
		t.Error("expected entry 2 to be evicted")
	}
	if evicted != 1 {
		t.Errorf("expected 1 eviction, got %d", evicted)
	}
}

func TestSQLiteStore_Prune(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s, _ := newSQLiteStore(t, 0, WithClock(clock.Now))

	s.Put(ctx, fp(1), testScore(0.1))
	clock.Advance(2 * time.Hour)
	s.Put(ctx, fp(2), testScore(0.2))

	removed, err := s.Prune(ctx, clock.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 entry pruned, got %d", removed)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 entry left, got %d", s.Len())
	}
}

func TestSQLiteStore_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := NewSQLiteStore(SQLiteConfig{Path: path, Capacity: 10})
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	s.Put(ctx, fp(1), testScore(0.6))
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewSQLiteStore(SQLiteConfig{Path: path, Capacity: 10})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	got, ok, err := reopened.Get(ctx, fp(1))
	if err != nil || !ok {
		t.Fatalf("expected persisted entry, got ok=%v err=%v", ok, err)
	}
	if got.OverallScore != 0.6 {
		t.Errorf("expected 0.6, got %v", got.OverallScore)
	}
}

func TestNewSQLiteStore_EmptyPath(t *testing.T) {
	if _, err := NewSQLiteStore(SQLiteConfig{}); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestPruner_RunOnce(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewLRU(10, WithClock(clock.Now))

	store.Put(ctx, fp(1), testScore(0.1))
	clock.Advance(2 * time.Hour)
	store.Put(ctx, fp(2), testScore(0.2))

	p := NewPruner(store, time.Hour, "@every 1h", nil)
	p.now = clock.Now

	var hooked int
	p.OnPrune(func(n int) { hooked += n })

	removed, err := p.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 entry pruned, got %d", removed)
	}
	if hooked != 1 {
		t.Errorf("expected prune hook to see 1 entry, got %d", hooked)
	}

	removed, _ = p.RunOnce(ctx)
	if removed != 0 || hooked != 1 {
		t.Errorf("expected no further pruning, got removed=%d hooked=%d", removed, hooked)
	}
}

func TestPruner_Start(t *testing.T) {
	tests := []struct {
		name          string
		ttl           time.Duration
		schedule      string
		expectErr     bool
		expectRunning bool
	}{
		{name: "valid schedule", ttl: time.Hour, schedule: "0 * * * *", expectRunning: true},
		{name: "descriptor", ttl: time.Hour, schedule: "@every 10m", expectRunning: true},
		{name: "empty schedule", ttl: time.Hour, schedule: ""},
		{name: "zero ttl", ttl: 0, schedule: "0 * * * *"},
		{name: "invalid schedule", ttl: time.Hour, schedule: "not a cron", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			p := NewPruner(NewLRU(10), tt.ttl, tt.schedule, nil)
			err := p.Start(ctx)
			if tt.expectErr != (err != nil) {
				t.Fatalf("expected error=%v, got %v", tt.expectErr, err)
			}
			if p.IsRunning() != tt.expectRunning {
				t.Errorf("expected running=%v, got %v", tt.expectRunning, p.IsRunning())
			}
			if tt.expectRunning && p.NextRun() == nil {
				t.Error("expected a next run time")
			}

			p.Stop()
			if p.IsRunning() {
				t.Error("expected pruner stopped")
			}
		})
	}
}
