package facets

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTTL is how long a snapshot is served before it is recomputed.
const DefaultTTL = 5 * time.Minute

// Observer is told whether each Get was served from the cache.
type Observer interface {
	FacetLookup(hit bool)
}

type entry struct {
	snapshot Snapshot
	expires  time.Time
}

// Cache serves the latest snapshot until it expires. It is safe for
// concurrent use.
type Cache struct {
	source   Source
	ttl      time.Duration
	now      func() time.Time
	observer Observer

	current atomic.Pointer[entry]
	refresh sync.Mutex
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock replaces the wall clock used for expiry.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithObserver reports hits and misses to o.
func WithObserver(o Observer) CacheOption {
	return func(c *Cache) { c.observer = o }
}

// NewCache wraps source with a TTL cache. A non-positive ttl uses DefaultTTL.
func NewCache(source Source, ttl time.Duration, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{source: source, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached snapshot, recomputing it on a miss or after expiry.
func (c *Cache) Get(ctx context.Context) (Snapshot, error) {
	if e := c.fresh(); e != nil {
		c.observe(true)
		return e.snapshot, nil
	}
	c.refresh.Lock()
	defer c.refresh.Unlock()
	// Another caller may have refreshed while we waited.
	if e := c.fresh(); e != nil {
		c.observe(true)
		return e.snapshot, nil
	}
	c.observe(false)
	return c.recompute(ctx)
}

// Refresh recomputes the snapshot unconditionally and swaps it in.
func (c *Cache) Refresh(ctx context.Context) (Snapshot, error) {
	c.refresh.Lock()
	defer c.refresh.Unlock()
	return c.recompute(ctx)
}

// Invalidate drops the cached snapshot so the next Get recomputes it.
func (c *Cache) Invalidate() {
	c.current.Store(nil)
}

// Expires reports when the current snapshot goes stale, or the zero time
// when nothing is cached.
func (c *Cache) Expires() time.Time {
	if e := c.current.Load(); e != nil {
		return e.expires
	}
	return time.Time{}
}

func (c *Cache) fresh() *entry {
	e := c.current.Load()
	if e == nil || !c.now().Before(e.expires) {
		return nil
	}
	return e
}

func (c *Cache) recompute(ctx context.Context) (Snapshot, error) {
	snap, err := c.source.Compute(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	c.current.Store(&entry{snapshot: snap, expires: c.now().Add(c.ttl)})
	return snap, nil
}

func (c *Cache) observe(hit bool) {
	if c.observer != nil {
		c.observer.FacetLookup(hit)
	}
}
