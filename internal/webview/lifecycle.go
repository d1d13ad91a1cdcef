package webview

import "sync"

// TrimLevel is a memory-pressure hint from the host process.
type TrimLevel int

const (
	TrimRunningModerate TrimLevel = iota
	TrimRunningLow
	TrimRunningCritical
	TrimUIHidden
	TrimBackground
)

func (l TrimLevel) String() string {
	switch l {
	case TrimRunningModerate:
		return "running-moderate"
	case TrimRunningLow:
		return "running-low"
	case TrimRunningCritical:
		return "running-critical"
	case TrimUIHidden:
		return "ui-hidden"
	case TrimBackground:
		return "background"
	default:
		return "unknown"
	}
}

type MemoryListener interface {
	OnTrimMemory(level TrimLevel)
	OnLowMemory()
}

// LifecycleHub fans host memory signals out to registered listeners.
type LifecycleHub struct {
	mu        sync.Mutex
	next      int
	listeners map[int]MemoryListener
}

func NewLifecycleHub() *LifecycleHub {
	return &LifecycleHub{listeners: make(map[int]MemoryListener)}
}

// Register adds l and returns the function that removes it again.
func (h *LifecycleHub) Register(l MemoryListener) (unregister func()) {
	h.mu.Lock()
	id := h.next
	h.next++
	h.listeners[id] = l
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

func (h *LifecycleHub) TrimMemory(level TrimLevel) {
	for _, l := range h.snapshot() {
		l.OnTrimMemory(level)
	}
}

func (h *LifecycleHub) LowMemory() {
	for _, l := range h.snapshot() {
		l.OnLowMemory()
	}
}

func (h *LifecycleHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.listeners)
}

// listeners are called outside the hub lock so they may unregister
func (h *LifecycleHub) snapshot() []MemoryListener {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]MemoryListener, 0, len(h.listeners))
	for _, l := range h.listeners {
		out = append(out, l)
	}

	return out
}
