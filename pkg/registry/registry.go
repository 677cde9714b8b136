package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/aegis/pkg/safety"
)

// Capability is an analysis model that can be registered by name.
// Implementations must be safe for concurrent use.
type Capability interface {
	// Analyze screens the request and returns a score fragment. Long-running
	// implementations should stop when ctx is done.
	Analyze(ctx context.Context, req safety.Request) (*safety.Score, error)

	// Ready reports whether the model can currently serve requests.
	Ready() bool

	// Info describes the model.
	Info() safety.ModelInfo
}

// Fragment is one model's contribution to an analysis.
type Fragment struct {
	Model   string
	Version string
	Score   *safety.Score
	Elapsed time.Duration
}

// Registry maps model names to capabilities.
//
// Registration is rare and takes the write lock; queries are frequent and
// only take the read lock long enough to snapshot the ready models.
type Registry struct {
	models   map[string]Capability
	mu       sync.RWMutex
	logger   *slog.Logger
	observer atomic.Pointer[ModelObserver]
}

// ModelObserver is called after each model analysis with the model name,
// how long it ran and the error it returned, if any.
type ModelObserver func(model string, elapsed time.Duration, err error)

// New creates an empty registry. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		models: make(map[string]Capability),
		logger: logger.With("component", "registry"),
	}
}

// Register adds a capability under name. Registering an existing name
// replaces the previous capability.
func (r *Registry) Register(name string, c Capability) error {
	if name == "" {
		return &safety.InvalidContentError{Reason: "model name is empty"}
	}
	if c == nil {
		return &safety.InvalidContentError{Reason: fmt.Sprintf("model %q has no capability", name)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.models[name]; ok {
		r.logger.Warn("replacing registered model", "model", name)
	}
	r.models[name] = c

	info := c.Info()
	r.logger.Info("model registered",
		"model", name,
		"version", info.Version,
		"total_models", len(r.models),
	)

	return nil
}

// Query runs every ready model against req in name order and returns their
// fragments. Models that are not ready are skipped.
//
// It returns a *safety.ModelLoadError when nothing is registered or no
// model is ready, and a *safety.ConcurrencyError when a model panics.
func (r *Registry) Query(ctx context.Context, req safety.Request) ([]Fragment, error) {
	names, caps, err := r.snapshot()
	if err != nil {
		return nil, err
	}

	fragments := make([]Fragment, 0, len(caps))
	for i, c := range caps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		score, err := analyzeSafely(ctx, names[i], c, req)
		elapsed := time.Since(start)
		r.observe(names[i], elapsed, err)
		if err != nil {
			return nil, err
		}

		fragments = append(fragments, Fragment{
			Model:   names[i],
			Version: c.Info().Version,
			Score:   score,
			Elapsed: elapsed,
		})
	}

	return fragments, nil
}

// Observe installs fn as the model observer, replacing any previous one.
// A nil fn removes it.
func (r *Registry) Observe(fn ModelObserver) {
	if fn == nil {
		r.observer.Store(nil)
		return
	}
	r.observer.Store(&fn)
}

func (r *Registry) observe(model string, elapsed time.Duration, err error) {
	if fn := r.observer.Load(); fn != nil {
		(*fn)(model, elapsed, err)
	}
}

// snapshot returns the ready models in name order.
func (r *Registry) snapshot() ([]string, []Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.models) == 0 {
		return nil, nil, &safety.ModelLoadError{Reason: "No models available"}
	}

	all := r.sortedNamesLocked()
	names := make([]string, 0, len(all))
	caps := make([]Capability, 0, len(all))
	for _, name := range all {
		c := r.models[name]
		if !c.Ready() {
			r.logger.Debug("skipping model that is not ready", "model", name)
			continue
		}
		names = append(names, name)
		caps = append(caps, c)
	}

	if len(caps) == 0 {
		return nil, nil, &safety.ModelLoadError{Reason: "No ready models", Registered: all}
	}

	return names, caps, nil
}

func analyzeSafely(ctx context.Context, name string, c Capability, req safety.Request) (score *safety.Score, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			score = nil
			err = &safety.ConcurrencyError{
				Op:    fmt.Sprintf("model %q", name),
				Cause: fmt.Errorf("panic: %v", rec),
			}
		}
	}()

	score, err = c.Analyze(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("model %q: %w", name, err)
	}
	if score == nil {
		return nil, &safety.ConcurrencyError{Op: fmt.Sprintf("model %q", name), Cause: fmt.Errorf("returned no score")}
	}
	return score, nil
}

// Names returns the registered model names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNamesLocked()
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}

// ReadyCount returns the number of models currently ready.
func (r *Registry) ReadyCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, c := range r.models {
		if c.Ready() {
			n++
		}
	}
	return n
}

// Infos returns the info of every registered model in name order.
func (r *Registry) Infos() []safety.ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.sortedNamesLocked()
	infos := make([]safety.ModelInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, r.models[name].Info())
	}
	return infos
}

func (r *Registry) sortedNamesLocked() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
