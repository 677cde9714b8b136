package health

import (
	"context"
	"errors"
	"fmt"
)

// ModelSource reports model readiness. *registry.Registry satisfies it.
type ModelSource interface {
	Len() int
	ReadyCount() int
}

// RegistryCheck fails when no registered model is ready to analyze.
func RegistryCheck(models ModelSource) CheckFunc {
	return func(ctx context.Context) error {
		total := models.Len()
		if total == 0 {
			return errors.New("no models registered")
		}
		if models.ReadyCount() == 0 {
			return fmt.Errorf("0 of %d models ready", total)
		}
		return nil
	}
}

// Closer reports whether a component has shut down. *pool.Pool satisfies it.
type Closer interface {
	Closed() bool
}

// PoolCheck fails once the worker pool has been closed.
func PoolCheck(p Closer) CheckFunc {
	return func(ctx context.Context) error {
		if p.Closed() {
			return errors.New("worker pool closed")
		}
		return nil
	}
}

// Pinger verifies connectivity. *cache.SQLiteStore satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheCheck pings stores that support it. Stores without a Ping method,
// such as the in-memory LRU, are always healthy.
func CacheCheck(store any) CheckFunc {
	return func(ctx context.Context) error {
		p, ok := store.(Pinger)
		if !ok {
			return nil
		}
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("cache unreachable: %w", err)
		}
		return nil
	}
}
