package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"mercator-hq/aegis/pkg/safety"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// DefaultQueueSize is the job queue capacity used when none is configured.
const DefaultQueueSize = 1024

// Job is a unit of work. It receives the submitter's context and should
// return early once that context is done.
type Job func(ctx context.Context)

// Observer receives pool events. Implementations must be safe for
// concurrent use.
type Observer interface {
	QueueDepth(n int)
	ActiveWorkers(n int)
	JobSubmitted()
	JobCompleted()
	JobAbandoned()
	JobPanicked()
}

// Stats is a point-in-time snapshot of pool activity.
type Stats struct {
	Workers   int    `json:"workers"`
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Abandoned uint64 `json:"abandoned"`
	Panics    uint64 `json:"panics"`
	Active    int64  `json:"active"`
	Queued    int    `json:"queued"`
}

type task struct {
	ctx context.Context
	job Job
}

// Pool runs jobs on a fixed number of worker goroutines fed by a bounded
// queue. Each job is executed exactly once by exactly one worker, unless
// its context is already done when a worker picks it up, in which case it
// is abandoned without running.
//
// Pool is thread-safe and can be used concurrently.
type Pool struct {
	workers int
	jobs    chan task
	quit    chan struct{}
	wg      sync.WaitGroup

	// mu is held for reading while sending to jobs and for writing while
	// closing it.
	mu     sync.RWMutex
	closed bool

	closeOnce sync.Once

	submitted atomic.Uint64
	completed atomic.Uint64
	abandoned atomic.Uint64
	panics    atomic.Uint64
	active    atomic.Int64

	observer Observer
	logger   *slog.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithObserver attaches an Observer, typically a metrics recorder.
func WithObserver(o Observer) Option {
	return func(p *Pool) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithLogger sets the pool logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// New starts a pool of workers goroutines with a queue of queueSize jobs.
// Non-positive values fall back to runtime.NumCPU() workers and
// DefaultQueueSize.
func New(workers, queueSize int, opts ...Option) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	p := &Pool{
		workers:  workers,
		jobs:     make(chan task, queueSize),
		quit:     make(chan struct{}),
		observer: nopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "pool")

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}

	p.logger.Debug("worker pool started", "workers", workers, "queue_size", queueSize)

	return p
}

// Submit enqueues job. It returns as soon as the job is queued, blocking
// only while the queue is full. If ctx is done first it returns an error
// matching safety.ErrResourceExhausted; after Close it returns
// ErrPoolClosed.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	if job == nil {
		return fmt.Errorf("nil job")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.jobs <- task{ctx: ctx, job: job}:
		p.submitted.Add(1)
		p.observer.JobSubmitted()
		p.observer.QueueDepth(len(p.jobs))
		return nil
	case <-p.quit:
		return ErrPoolClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: job queue full: %w", safety.ErrResourceExhausted, ctx.Err())
	}
}

// Close stops accepting jobs, lets the workers drain the queue and waits
// for them to exit. It is safe to call more than once.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.quit)

		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()

		p.wg.Wait()
		p.logger.Debug("worker pool stopped",
			"completed", p.completed.Load(),
			"abandoned", p.abandoned.Load(),
		)
	})
}

// Closed reports whether Close has been called.
func (p *Pool) Closed() bool {
	select {
	case <-p.quit:
		return true
	default:
		return false
	}
}

// Stats returns a snapshot of pool activity.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Abandoned: p.abandoned.Load(),
		Panics:    p.panics.Load(),
		Active:    p.active.Load(),
		Queued:    len(p.jobs),
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for t := range p.jobs {
		p.observer.QueueDepth(len(p.jobs))

		if t.ctx.Err() != nil {
			p.abandoned.Add(1)
			p.observer.JobAbandoned()
			continue
		}

		p.run(id, t)
	}
}

func (p *Pool) run(id int, t task) {
	p.observer.ActiveWorkers(int(p.active.Add(1)))
	defer func() {
		p.observer.ActiveWorkers(int(p.active.Add(-1)))
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.observer.JobPanicked()
			p.logger.Error("job panicked", "worker", id, "panic", r)
			return
		}
		p.completed.Add(1)
		p.observer.JobCompleted()
	}()

	t.job(t.ctx)
}

type nopObserver struct{}

func (nopObserver) QueueDepth(int)    {}
func (nopObserver) ActiveWorkers(int) {}
func (nopObserver) JobSubmitted()     {}
func (nopObserver) JobCompleted()     {}
func (nopObserver) JobAbandoned()     {}
func (nopObserver) JobPanicked()      {}
