package webview

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBridgeFirstDeliveryWins(t *testing.T) {
	b := newBridge()

	var wg sync.WaitGroup
	b.deliver("first")
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.deliver("late")
			b.release()
		}()
	}
	wg.Wait()

	got, ok := b.wait(time.Second)
	assert.True(t, ok)
	assert.Equal(t, "first", got)
}

func TestBridgeReleaseWithoutPayload(t *testing.T) {
	b := newBridge()
	b.release()
	b.deliver("too late")

	got, ok := b.wait(time.Second)
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestBridgeTimeout(t *testing.T) {
	b := newBridge()

	start := time.Now()
	_, ok := b.wait(30 * time.Millisecond)

	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}
