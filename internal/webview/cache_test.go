package webview

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResponseCacheExpiry(t *testing.T) {
	c := newClock()
	cache := newResponseCache(&sync.Mutex{}, 5*time.Minute, 50, c.Now)

	cache.Put("a", `[{"title":"X"}]`)

	c.Advance(4*time.Minute + 59*time.Second)
	got, ok := cache.Get("a")
	assert.True(t, ok)
	assert.Equal(t, `[{"title":"X"}]`, got)

	c.Advance(time.Second)
	_, ok = cache.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestResponseCacheSweepsPastThreshold(t *testing.T) {
	c := newClock()
	cache := newResponseCache(&sync.Mutex{}, time.Minute, 3, c.Now)

	cache.Put("old-1", "1")
	cache.Put("old-2", "2")
	c.Advance(2 * time.Minute)

	cache.Put("new-1", "3")
	assert.Equal(t, 3, cache.Len())

	cache.Put("new-2", "4")
	assert.Equal(t, 2, cache.Len())
}

func TestResponseCacheSweepAndClear(t *testing.T) {
	c := newClock()
	cache := newResponseCache(&sync.Mutex{}, time.Minute, 50, c.Now)

	for i := range 5 {
		cache.Put(fmt.Sprintf("k%d", i), "v")
	}
	c.Advance(time.Minute)
	cache.Put("fresh", "v")

	assert.Equal(t, 5, cache.Sweep())
	assert.Equal(t, 1, cache.Len())

	cache.Clear()
	assert.Equal(t, 0, cache.Len())
}

func TestNewResponseCache(t *testing.T) {
	cache := NewResponseCache(time.Hour, 10)
	cache.Put("k", "v")

	got, ok := cache.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)
}
