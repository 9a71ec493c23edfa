package cache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/marmos91/ldapauth/internal/logger"
)

const (
	// DefaultTimeToLive is how long an entry stays valid after insertion.
	DefaultTimeToLive = 60 * time.Second

	// DefaultSweepInterval is how often expired entries are removed.
	DefaultSweepInterval = 60 * time.Second
)

var (
	ErrNegativeCapacity     = errors.New("cache: capacity must not be negative")
	ErrInvalidSweepInterval = errors.New("cache: sweep interval must be positive")
)

// Options configures a Cache. Capacity, TimeToLive and SweepInterval are
// fixed for the lifetime of the cache.
type Options struct {
	// Name identifies the cache in logs and metrics.
	Name string

	// Capacity is the maximum number of entries. Zero disables caching:
	// Put is a no-op and Get always misses.
	Capacity int

	// TimeToLive is measured from insertion, not from last access.
	// Zero or negative makes every entry eligible at the next sweep.
	TimeToLive time.Duration

	// SweepInterval is the period of the background expiry pass.
	// Required when Capacity > 0.
	SweepInterval time.Duration

	// Metrics is optional.
	Metrics CacheMetrics

	// clock overrides time.Now in tests.
	clock func() time.Time
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	Expirations int64
	Size        int
}

type entry[V any] struct {
	value     V
	createdAt time.Time
}

// Cache is a bounded LRU cache with background TTL expiry.
//
// The recency list and the map live together in a simplelru.LRU, which is
// not safe for concurrent use on its own; mu guards every access to it,
// including the recency update performed by Get.
type Cache[K comparable, V any] struct {
	mu    sync.Mutex
	items *simplelru.LRU[K, entry[V]] // nil when caching is disabled

	name     string
	ttl      time.Duration
	interval time.Duration
	metrics  CacheMetrics
	now      func() time.Time

	hits        atomic.Int64
	misses      atomic.Int64
	evictions   atomic.Int64
	expirations atomic.Int64

	stopCh    chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// New creates a cache and starts its sweeper.
//
// The sweeper goroutine is started last, once every option has been
// validated, so a returned error never leaves a goroutine behind. Callers
// must call Close to stop it.
func New[K comparable, V any](opts Options) (*Cache[K, V], error) {
	if opts.Capacity < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeCapacity, opts.Capacity)
	}

	c := &Cache[K, V]{
		name:     opts.Name,
		ttl:      opts.TimeToLive,
		interval: opts.SweepInterval,
		metrics:  opts.Metrics,
		now:      opts.clock,
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	if c.now == nil {
		c.now = time.Now
	}

	if opts.Capacity == 0 {
		close(c.stopped)
		logger.Debug("Cache disabled", logger.KeyCache, c.name)
		return c, nil
	}

	if opts.SweepInterval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSweepInterval, opts.SweepInterval)
	}

	items, err := simplelru.NewLRU[K, entry[V]](opts.Capacity, nil)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	c.items = items

	go c.sweepLoop()

	logger.Debug("Cache started",
		logger.KeyCache, c.name,
		"capacity", opts.Capacity,
		"ttl", c.ttl.String(),
		"sweep_interval", c.interval.String(),
	)

	return c, nil
}

// Enabled reports whether the cache can hold entries.
func (c *Cache[K, V]) Enabled() bool {
	return c.items != nil
}

// Get returns the value stored under key and marks it most recently used.
// The entry's creation time is left untouched.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V
	if c.items == nil {
		c.misses.Add(1)
		recordMiss(c.metrics)
		return zero, false
	}

	c.mu.Lock()
	e, ok := c.items.Get(key)
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		recordMiss(c.metrics)
		return zero, false
	}

	c.hits.Add(1)
	recordHit(c.metrics)
	return e.value, true
}

// Peek returns the value stored under key without touching recency or the
// hit and miss counters.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	var zero V
	if c.items == nil {
		return zero, false
	}

	c.mu.Lock()
	e, ok := c.items.Peek(key)
	c.mu.Unlock()

	if !ok {
		return zero, false
	}
	return e.value, true
}

// Put inserts or replaces the value under key with a fresh creation time and
// marks it most recently used. If the cache is full, the least recently used
// entry is evicted before Put returns.
func (c *Cache[K, V]) Put(key K, value V) {
	if c.items == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Size is recorded under mu so the gauge never goes back to an older value.
	if c.items.Add(key, entry[V]{value: value, createdAt: c.now()}) {
		c.evictions.Add(1)
		recordEviction(c.metrics, EvictionCapacity, 1)
	}
	recordSize(c.metrics, c.items.Len())
}

// Remove deletes the entry under key, if present.
func (c *Cache[K, V]) Remove(key K) {
	if c.items == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items.Remove(key)
	recordSize(c.metrics, c.items.Len())
}

// Clear removes every entry.
func (c *Cache[K, V]) Clear() {
	if c.items == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.items.Len()
	c.items.Purge()
	recordEviction(c.metrics, EvictionCleared, n)
	recordSize(c.metrics, 0)
}

// Len returns the current number of entries, including expired entries the
// sweeper has not removed yet.
func (c *Cache[K, V]) Len() int {
	if c.items == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}

// Stats returns current counters.
func (c *Cache[K, V]) Stats() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
		Size:        c.Len(),
	}
}

// Close stops the sweeper and waits for it to exit. Entries are kept; call
// Clear first to drop them. Calling Close more than once is harmless.
func (c *Cache[K, V]) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCh)
		<-c.stopped
		logger.Debug("Cache closed", logger.KeyCache, c.name)
	})
}

func (c *Cache[K, V]) sweepLoop() {
	defer close(c.stopped)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if removed, remaining := c.sweep(); removed > 0 {
				logger.Debug("Expired cache entries removed",
					logger.KeyCache, c.name,
					"removed", removed,
					"remaining", remaining,
				)
			}
		}
	}
}

// sweep removes every entry older than the TTL. It holds mu for the whole
// scan, which is bounded by the capacity.
func (c *Cache[K, V]) sweep() (removed, remaining int) {
	c.mu.Lock()
	now := c.now()
	for _, key := range c.items.Keys() {
		e, ok := c.items.Peek(key)
		if ok && c.expired(e, now) {
			c.items.Remove(key)
			removed++
		}
	}
	remaining = c.items.Len()
	if removed > 0 {
		c.expirations.Add(int64(removed))
		recordEviction(c.metrics, EvictionExpired, removed)
		recordSize(c.metrics, remaining)
	}
	c.mu.Unlock()

	return removed, remaining
}

func (c *Cache[K, V]) expired(e entry[V], now time.Time) bool {
	return c.ttl <= 0 || now.Sub(e.createdAt) > c.ttl
}
