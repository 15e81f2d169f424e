package cache

import (
	"sync"
	"time"
)

// Entry is a stored value with its write timestamp and expiry.
type Entry struct {
	Value     any
	StoredAt  time.Time
	ExpiresAt time.Time
}

// Cache is a concurrency-safe in-memory key/value store with per-entry TTL.
// One instance is shared process-wide; instances never coordinate across
// processes. Expiry is lazy on Get, with a periodic Sweep for entries nobody
// reads again.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	defaultTTL time.Duration

	now func() time.Time // overridable in tests
}

// New creates a Cache. defaultTTL applies when SetDefault is used; if it is
// <= 0 a 300s default is assumed.
func New(defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = 300 * time.Second
	}
	return &Cache{
		entries:    make(map[string]Entry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get returns the live entry for key, or ok=false when absent or expired.
// Expired entries are dropped on the spot.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return Entry{}, false
	}
	if c.now().After(e.ExpiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if cur, still := c.entries[key]; still && c.now().After(cur.ExpiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return Entry{}, false
	}
	return e, true
}

// Set stores value under key with the given TTL.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry{
		Value:     value,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

// SetDefault stores value under key with the cache's default TTL.
func (c *Cache) SetDefault(key string, value any) {
	c.Set(key, value, c.defaultTTL)
}

// Delete removes key if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Sweep removes all expired entries and reports how many were dropped.
// Wired to a periodic job so abandoned keys do not accumulate.
func (c *Cache) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if now.After(e.ExpiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
