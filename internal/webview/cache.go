package webview

import (
	"sync"
	"time"
)

type cacheEntry struct {
	payload string
	at      time.Time
}

// ResponseCache maps a navigation URL to the payload its script produced.
// Entries expire after the TTL; once the cache grows past the sweep
// threshold every Put also drops expired entries.
type ResponseCache struct {
	mu        *sync.Mutex
	entries   map[string]cacheEntry
	ttl       time.Duration
	threshold int
	now       func() time.Time
}

func NewResponseCache(ttl time.Duration, threshold int) *ResponseCache {
	return newResponseCache(&sync.Mutex{}, ttl, threshold, time.Now)
}

func newResponseCache(mu *sync.Mutex, ttl time.Duration, threshold int, now func() time.Time) *ResponseCache {
	return &ResponseCache{
		mu:        mu,
		entries:   make(map[string]cacheEntry),
		ttl:       ttl,
		threshold: threshold,
		now:       now,
	}
}

func (c *ResponseCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}

	if c.now().Sub(e.at) >= c.ttl {
		delete(c.entries, key)
		return "", false
	}

	return e.payload, true
}

func (c *ResponseCache) Put(key, payload string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{payload: payload, at: c.now()}

	if len(c.entries) > c.threshold {
		c.sweepLocked()
	}
}

// Sweep drops expired entries and returns how many it removed.
func (c *ResponseCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sweepLocked()
}

func (c *ResponseCache) sweepLocked() int {
	cutoff := c.now().Add(-c.ttl)

	removed := 0
	for k, e := range c.entries {
		if !e.at.After(cutoff) {
			delete(c.entries, k)
			removed++
		}
	}

	return removed
}

func (c *ResponseCache) Clear() {
	c.mu.Lock()
	c.clearLocked()
	c.mu.Unlock()
}

func (c *ResponseCache) clearLocked() {
	clear(c.entries)
}

func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
