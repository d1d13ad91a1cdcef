package webview

import (
	"sync"
	"time"
)

// bridge is a single-use latch carrying one payload from a page script to
// the waiting caller. The first deliver or release wins.
type bridge struct {
	once sync.Once
	done chan struct{}

	payload   string
	delivered bool
}

func newBridge() *bridge {
	return &bridge{done: make(chan struct{})}
}

func (b *bridge) deliver(payload string) {
	b.once.Do(func() {
		b.payload = payload
		b.delivered = true
		close(b.done)
	})
}

// release opens the latch without a payload.
func (b *bridge) release() {
	b.once.Do(func() {
		close(b.done)
	})
}

// wait blocks until the latch opens or timeout elapses. ok is false on
// timeout or when the latch was released without a payload.
func (b *bridge) wait(timeout time.Duration) (payload string, ok bool) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-b.done:
		return b.payload, b.delivered
	case <-t.C:
		return "", false
	}
}
