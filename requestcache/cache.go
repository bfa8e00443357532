// Package requestcache collapses concurrent identical requests into a
// single computation and optionally retains resolved values for a TTL.
//
// A Cache tracks one in-flight computation per key: the first caller
// computes, every concurrent caller for the same key waits for that
// result, and later callers are served from the configured Store until
// the value expires. Failures are never cached — the error reaches every
// waiter of that flight and the next caller recomputes.
package requestcache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Option configures a Cache.
type Option func(*options)

type options struct {
	ns string
}

// WithNamespace prefixes every key with "ns:" so several caches can
// partition one shared Store.
func WithNamespace(ns string) Option {
	return func(o *options) { o.ns = ns }
}

// Stats is a point-in-time snapshot of cache effectiveness. A hit is a
// value served without running compute, whether from the store or by
// joining an in-flight computation.
type Stats struct {
	Hits    int64
	Misses  int64
	Total   int64
	HitRate float64 // 0 when Total is 0
	Size    int     // in-flight computations plus store entries
}

// flight deduplicates concurrent computations for the same key.
type flight[V any] struct {
	wg  sync.WaitGroup
	val V
	err error
}

// Cache is a single-flight request deduplicator in front of a Store.
// All methods are safe for concurrent use.
type Cache[V any] struct {
	store Store[V]
	ns    string

	mu       sync.Mutex
	inflight map[string]*flight[V]

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a Cache backed by a fresh MemoryStore.
func New[V any](opts ...Option) *Cache[V] {
	return NewWithStore[V](NewMemoryStore[V](), opts...)
}

// NewWithStore creates a Cache on top of an existing store. A nil store
// falls back to a fresh MemoryStore.
func NewWithStore[V any](store Store[V], opts ...Option) *Cache[V] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if store == nil {
		store = NewMemoryStore[V]()
	}
	return &Cache[V]{
		store:    store,
		ns:       o.ns,
		inflight: make(map[string]*flight[V]),
	}
}

// GetOrCompute returns the value for key, computing it at most once per
// flight. A fresh store entry is served directly; otherwise concurrent
// callers for the same key share one invocation of compute and its
// outcome.
//
// With ttl > 0 a successful result is retained in the store until the
// deadline passes; with ttl == 0 the result is handed to the waiters of
// this flight only and the next caller recomputes. Errors are returned
// to every waiter and never cached.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (V, error)) (V, error) {
	k := c.storeKey(key)

	if v, ok := c.store.Get(k); ok {
		c.hits.Add(1)
		return v, nil
	}

	c.mu.Lock()
	if f, ok := c.inflight[k]; ok {
		c.mu.Unlock()
		c.hits.Add(1) // joining an in-flight computation counts as a hit
		f.wg.Wait()
		if f.err != nil {
			var zero V
			return zero, f.err
		}
		return f.val, nil
	}

	f := &flight[V]{}
	f.wg.Add(1)
	c.inflight[k] = f
	c.mu.Unlock()
	c.misses.Add(1)

	f.val, f.err = compute(ctx)

	// Delete or Clear may have detached this flight; a detached flight
	// still resolves for its waiters but must not repopulate the store.
	c.mu.Lock()
	owner := c.inflight[k] == f
	if owner {
		delete(c.inflight, k)
	}
	c.mu.Unlock()

	if owner && f.err == nil && ttl > 0 {
		c.store.Set(k, f.val, ttl)
	}
	f.wg.Done()

	if f.err != nil {
		var zero V
		return zero, f.err
	}
	return f.val, nil
}

// Get reads a value straight from the store. It does not join in-flight
// computations and leaves the hit/miss counters alone.
func (c *Cache[V]) Get(key string) (V, bool) {
	return c.store.Get(c.storeKey(key))
}

// Set writes a value straight to the store. A ttl <= 0 stores it without
// automatic expiry, per the Store contract.
func (c *Cache[V]) Set(key string, v V, ttl time.Duration) {
	c.store.Set(c.storeKey(key), v, ttl)
}

// Delete removes a key from the store and detaches any in-flight
// computation for it: the running compute still resolves for its current
// waiters, but its result is not retained and new callers start fresh.
func (c *Cache[V]) Delete(key string) {
	k := c.storeKey(key)
	c.mu.Lock()
	delete(c.inflight, k)
	c.mu.Unlock()
	c.store.Delete(k)
}

// Clear detaches every in-flight computation and clears the store —
// including, on a shared store, entries written by other namespaces.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.inflight = make(map[string]*flight[V])
	c.mu.Unlock()
	c.store.Clear()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses

	c.mu.Lock()
	size := len(c.inflight)
	c.mu.Unlock()

	s := Stats{
		Hits:   hits,
		Misses: misses,
		Total:  total,
		Size:   size + c.store.Len(),
	}
	if total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

func (c *Cache[V]) storeKey(key string) string {
	if c.ns == "" {
		return key
	}
	return c.ns + ":" + key
}
