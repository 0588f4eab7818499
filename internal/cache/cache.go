// Package cache provides a short-lived, size-bounded result cache for scored
// responses.
package cache

import (
	"strings"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	createdAt time.Time
}

// TTL is a TTL-bounded, size-limited in-memory cache. It is safe for
// concurrent use; concurrent writers to the same key race and the last one
// wins.
type TTL[V any] struct {
	mu         sync.Mutex
	entries    map[string]entry[V]
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// Option configures a TTL cache.
type Option func(*config)

type config struct {
	now     func() time.Time
	cleanup bool
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithoutCleanup disables the background pruning goroutine. Expired entries
// are still dropped on read.
func WithoutCleanup() Option {
	return func(c *config) { c.cleanup = false }
}

// New creates a cache that expires entries after ttl and evicts the oldest
// entry when maxEntries is exceeded. Unless disabled, a background goroutine
// prunes expired entries every ttl/2.
func New[V any](ttl time.Duration, maxEntries int, opts ...Option) *TTL[V] {
	cfg := config{now: time.Now, cleanup: true}
	for _, o := range opts {
		o(&cfg)
	}
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	c := &TTL[V]{
		entries:    make(map[string]entry[V]),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        cfg.now,
		stop:       make(chan struct{}),
	}
	if cfg.cleanup {
		go c.cleanupLoop()
	}
	return c
}

// Get returns a cached value if it exists and has not expired.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().Sub(e.createdAt) >= c.ttl {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key. If the cache is at capacity, the oldest entry
// is evicted to make room.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	c.entries[key] = entry[V]{value: value, createdAt: c.now()}
}

// Delete removes key.
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// DeletePrefix removes every key starting with prefix and returns how many
// were removed.
func (c *TTL[V]) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Purge removes every entry and returns how many were removed.
func (c *TTL[V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]entry[V])
	return n
}

// Len returns the number of stored entries, including any that have expired
// but not yet been pruned.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stop terminates the background cleanup goroutine. It is safe to call more
// than once.
func (c *TTL[V]) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *TTL[V]) cleanupLoop() {
	interval := c.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.prune()
		case <-c.stop:
			return
		}
	}
}

func (c *TTL[V]) prune() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if now.Sub(e.createdAt) >= c.ttl {
			delete(c.entries, k)
		}
	}
}

// evictOldest removes the entry with the earliest createdAt. Caller must hold c.mu.
func (c *TTL[V]) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for k, e := range c.entries {
		if first || e.createdAt.Before(oldestTime) {
			oldestKey = k
			oldestTime = e.createdAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}
