package cache

import (
	"context"
	"time"

	"mercator-hq/aegis/pkg/safety"
)

// Backend names accepted by configuration.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Store caches completed analysis scores by fingerprint.
//
// Implementations must be safe for concurrent use and must never share a
// stored Score with callers: Put stores a copy and Get returns a copy.
type Store interface {
	// Get returns the cached score for fp and whether it was found.
	Get(ctx context.Context, fp Fingerprint) (*safety.Score, bool, error)

	// Put stores score under fp, evicting the least recently used entry
	// when the store is full.
	Put(ctx context.Context, fp Fingerprint, score *safety.Score) error

	// Len returns the number of cached entries.
	Len() int

	// Prune removes entries created before cutoff and returns how many
	// were removed.
	Prune(ctx context.Context, cutoff time.Time) (int, error)

	// Close releases the store's resources.
	Close() error
}

// Option configures a Store.
type Option func(*options)

type options struct {
	onEvict func(n int)
	now     func() time.Time
}

func defaultOptions() options {
	return options{
		onEvict: func(int) {},
		now:     time.Now,
	}
}

// WithEvictionHook registers fn to be called with the number of entries
// evicted for capacity.
func WithEvictionHook(fn func(n int)) Option {
	return func(o *options) {
		if fn != nil {
			o.onEvict = fn
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
