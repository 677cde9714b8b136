package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner removes expired cache entries on a cron schedule.
type Pruner struct {
	store    Store
	ttl      time.Duration
	schedule string
	cron     *cron.Cron
	now      func() time.Time
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
	onPrune  func(n int)
}

// NewPruner creates a pruner that removes entries older than ttl whenever
// schedule fires. A nil logger uses slog.Default().
func NewPruner(store Store, ttl time.Duration, schedule string, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		store:    store,
		ttl:      ttl,
		schedule: schedule,
		cron:     cron.New(),
		now:      time.Now,
		logger:   logger.With("component", "cache.pruner"),
	}
}

// Start schedules pruning using a standard five-field cron expression.
//
// Common cron expressions:
//   - "@every 10m"   - Every ten minutes
//   - "0 * * * *"    - Hourly
//   - "0 3 * * *"    - Daily at 3 AM
//
// If the schedule is empty or the TTL is zero, Start does nothing.
// The pruner stops when ctx is cancelled.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.schedule == "" || p.ttl <= 0 {
		p.logger.Info("cache pruning not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(p.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", p.schedule, err)
	}

	if _, err := p.cron.AddFunc(p.schedule, func() {
		p.run(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule cache pruning: %w", err)
	}

	p.cron.Start()
	p.running = true

	p.logger.Info("cache pruner started", "schedule", p.schedule, "ttl", p.ttl)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	return nil
}

// OnPrune registers fn to be called with the number of entries removed by
// each prune that deleted something. Call it before Start.
func (p *Pruner) OnPrune(fn func(n int)) {
	p.onPrune = fn
}

// RunOnce prunes entries older than the TTL immediately.
func (p *Pruner) RunOnce(ctx context.Context) (int, error) {
	if p.ttl <= 0 {
		return 0, nil
	}
	deleted, err := p.store.Prune(ctx, p.now().Add(-p.ttl))
	if err != nil {
		return 0, err
	}

	if p.onPrune != nil && deleted > 0 {
		p.onPrune(deleted)
	}
	return deleted, nil
}

func (p *Pruner) run(ctx context.Context) {
	deleted, err := p.RunOnce(ctx)
	if err != nil {
		p.logger.Error("scheduled cache pruning failed", "error", err)
		return
	}

	if deleted > 0 {
		p.logger.Info("scheduled cache pruning completed", "deleted_count", deleted)
	} else {
		p.logger.Debug("scheduled cache pruning completed, no entries deleted")
	}
}

// Stop stops the scheduler and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		<-p.cron.Stop().Done()
		p.running = false
		p.logger.Info("cache pruner stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (p *Pruner) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// NextRun returns the next scheduled pruning time, or nil when not scheduled.
func (p *Pruner) NextRun() *time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := p.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
