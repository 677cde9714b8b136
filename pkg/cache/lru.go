package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"mercator-hq/aegis/pkg/safety"
)

// LRU is an in-memory Store bounded by entry count.
//
// Every operation, including Get, reorders the recency list, so a single
// exclusive mutex guards both reads and writes.
type LRU struct {
	capacity int
	ll       *list.List
	items    map[Fingerprint]*list.Element
	mu       sync.Mutex
	opts     options
}

type lruEntry struct {
	key       Fingerprint
	score     *safety.Score
	createdAt time.Time
}

// NewLRU creates an LRU holding at most capacity entries. A capacity of
// zero or less disables caching: Put is a no-op and Get always misses.
func NewLRU(capacity int, opts ...Option) *LRU {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &LRU{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[Fingerprint]*list.Element),
		opts:     o,
	}
}

// Get implements Store.
func (c *LRU) Get(_ context.Context, fp Fingerprint) (*safety.Score, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[fp]
	if !ok {
		return nil, false, nil
	}
	c.ll.MoveToFront(el)
	return el.Value.(*lruEntry).score.Clone(), true, nil
}

// Put implements Store.
func (c *LRU) Put(_ context.Context, fp Fingerprint, score *safety.Score) error {
	if c.capacity <= 0 || score == nil {
		return nil
	}

	stored := score.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[fp]; ok {
		entry := el.Value.(*lruEntry)
		entry.score = stored
		entry.createdAt = c.opts.now()
		c.ll.MoveToFront(el)
		return nil
	}

	c.items[fp] = c.ll.PushFront(&lruEntry{key: fp, score: stored, createdAt: c.opts.now()})

	evicted := 0
	for c.ll.Len() > c.capacity {
		c.removeElement(c.ll.Back())
		evicted++
	}
	if evicted > 0 {
		c.opts.onEvict(evicted)
	}

	return nil
}

// Len implements Store.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Prune implements Store.
func (c *LRU) Prune(_ context.Context, cutoff time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*lruEntry).createdAt.Before(cutoff) {
			c.removeElement(el)
			removed++
		}
		el = prev
	}
	return removed, nil
}

// Close implements Store. It drops every entry.
func (c *LRU) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ll.Init()
	c.items = make(map[Fingerprint]*list.Element)
	return nil
}

func (c *LRU) removeElement(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*lruEntry).key)
}
