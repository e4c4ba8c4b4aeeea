// Package ttlcache is a process-local, size-bounded memo in front of a
// remote lookup. Only successful lookups are stored.
package ttlcache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type FetchFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

type entry[V any] struct {
	value   V
	expires time.Time
}

type Cache[K comparable, V any] struct {
	ttl   time.Duration
	max   int
	fetch FetchFunc[K, V]
	now   func() time.Time

	mu    sync.Mutex
	items map[K]entry[V]
	group singleflight.Group
	keyFn func(K) string
}

type Option[K comparable, V any] func(*Cache[K, V])

// WithClock replaces time.Now, for tests.
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *Cache[K, V]) { c.now = now }
}

// New builds a cache holding at most max entries (max <= 0 means unbounded).
// keyFn turns a key into the string used to coalesce concurrent fetches.
func New[K comparable, V any](ttl time.Duration, max int, keyFn func(K) string, fetch FetchFunc[K, V], opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		ttl:   ttl,
		max:   max,
		fetch: fetch,
		now:   time.Now,
		items: make(map[K]entry[V]),
		keyFn: keyFn,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get serves an unexpired entry or fetches, coalescing concurrent misses
// for the same key. Fetch errors are returned and not cached. The shared
// fetch is detached from the caller's cancellation; a caller whose ctx ends
// stops waiting without failing the others.
func (c *Cache[K, V]) Get(ctx context.Context, key K) (V, error) {
	var zero V
	if v, ok := c.lookup(key); ok {
		return v, nil
	}
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(c.keyFn(key), func() (any, error) {
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		v, err := c.fetch(fetchCtx, key)
		if err != nil {
			return v, err
		}
		c.store(key, v)
		return v, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache[K, V]) lookup(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(e.expires) {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *Cache[K, V]) store(key K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if _, exists := c.items[key]; !exists && c.max > 0 && len(c.items) >= c.max {
		c.evict(now)
	}
	c.items[key] = entry[V]{value: v, expires: now.Add(c.ttl)}
}

// evict drops expired entries, then the one closest to expiry if still full.
func (c *Cache[K, V]) evict(now time.Time) {
	var (
		victim  K
		soonest time.Time
		found   bool
	)
	for k, e := range c.items {
		if !now.Before(e.expires) {
			delete(c.items, k)
			continue
		}
		if !found || e.expires.Before(soonest) {
			victim, soonest, found = k, e.expires, true
		}
	}
	if found && len(c.items) >= c.max {
		delete(c.items, victim)
	}
}
