package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const defaultMaxEntries = 1000

type entry[V any] struct {
	key         string
	value       V
	refreshedAt time.Time
}

// Stats reports cache usage counters since creation.
type Stats struct {
	Size       int
	MaxEntries int
	Hits       uint64
	Misses     uint64
	Evictions  uint64
}

// Option configures a MemoryCache.
type Option func(*options)

type options struct {
	now     func() time.Time
	onEvict func(key string)
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithEvictionHook is called, under the cache lock, for each LRU eviction.
func WithEvictionHook(fn func(key string)) Option {
	return func(o *options) { o.onEvict = fn }
}

// MemoryCache is a bounded LRU with a staleness TTL. A zero TTL never marks
// entries stale. All methods are safe for concurrent use.
type MemoryCache[V any] struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	items      map[string]*list.Element
	lru        *list.List
	opts       options

	hits, misses, evictions uint64
}

var _ Cache[int] = (*MemoryCache[int])(nil)

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache[V any](maxEntries int, ttl time.Duration, opts ...Option) *MemoryCache[V] {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryCache[V]{
		maxEntries: maxEntries,
		ttl:        ttl,
		items:      make(map[string]*list.Element),
		lru:        list.New(),
		opts:       o,
	}
}

// Get retrieves a value from cache. Stale entries count as misses but are
// still returned so callers can fall back to them.
func (c *MemoryCache[V]) Get(key string) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, ErrNotFound
	}

	c.lru.MoveToFront(el)
	e := el.Value.(*entry[V])
	if c.isStale(e) {
		c.misses++
		return e.value, ErrStale
	}
	c.hits++
	return e.value, nil
}

// Put stores value under key, evicting the least recently used entry when
// the cache is full.
func (c *MemoryCache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.now()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.refreshedAt = now
		c.lru.MoveToFront(el)
		return
	}

	for c.lru.Len() >= c.maxEntries {
		c.evictOldest()
	}
	c.items[key] = c.lru.PushFront(&entry[V]{key: key, value: value, refreshedAt: now})
}

// Delete removes a key from cache
func (c *MemoryCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.lru.Remove(el)
		delete(c.items, key)
	}
}

func (c *MemoryCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *MemoryCache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:       c.lru.Len(),
		MaxEntries: c.maxEntries,
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
	}
}

// Prune drops every stale entry and reports how many were removed.
func (c *MemoryCache[V]) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ttl <= 0 {
		return 0
	}
	removed := 0
	for el := c.lru.Back(); el != nil; {
		prev := el.Prev()
		e := el.Value.(*entry[V])
		if c.isStale(e) {
			c.lru.Remove(el)
			delete(c.items, e.key)
			removed++
		}
		el = prev
	}
	return removed
}

// Run prunes stale entries every interval until ctx is done.
func (c *MemoryCache[V]) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Prune()
		case <-ctx.Done():
			return
		}
	}
}

func (c *MemoryCache[V]) isStale(e *entry[V]) bool {
	return c.ttl > 0 && c.opts.now().Sub(e.refreshedAt) >= c.ttl
}

// evictOldest must be called with the lock held.
func (c *MemoryCache[V]) evictOldest() {
	el := c.lru.Back()
	if el == nil {
		return
	}
	e := el.Value.(*entry[V])
	c.lru.Remove(el)
	delete(c.items, e.key)
	c.evictions++
	if c.opts.onEvict != nil {
		c.opts.onEvict(e.key)
	}
}
