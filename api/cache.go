/*
cache.go - TTL cache for loaded worksheet snapshots

Reading the full schedule worksheet on every dashboard request is the
dominant cost of the read path. Loaded snapshots are cached for a short
TTL and invalidated explicitly whenever a write path (ingestion, rebuild,
rewrite) touches the store.
*/
package api

import (
	"sync"
	"time"
)

type cacheEntry struct {
	value   any
	expires time.Time
}

type ttlCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// get returns the cached value for key, or calls load and caches its
// result. Load errors are never cached.
func (c *ttlCache) get(key string, load func() (any, error)) (any, error) {
	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && c.now().Before(entry.expires) {
		c.mu.Unlock()
		return entry.value, nil
	}
	c.mu.Unlock()

	// The load runs unlocked; a concurrent miss on the same key does
	// duplicate work but stays correct.
	value, err := load()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return value, nil
}

// invalidate drops every cached snapshot.
func (c *ttlCache) invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}
