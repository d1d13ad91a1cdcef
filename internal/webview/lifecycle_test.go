package webview

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingListener struct {
	levels []TrimLevel
	low    int
}

func (r *recordingListener) OnTrimMemory(l TrimLevel) { r.levels = append(r.levels, l) }
func (r *recordingListener) OnLowMemory()             { r.low++ }

func TestLifecycleHub(t *testing.T) {
	hub := NewLifecycleHub()
	l := &recordingListener{}

	unregister := hub.Register(l)
	hub.TrimMemory(TrimUIHidden)
	hub.LowMemory()

	unregister()
	hub.TrimMemory(TrimBackground)

	assert.Equal(t, []TrimLevel{TrimUIHidden}, l.levels)
	assert.Equal(t, 1, l.low)
	assert.Equal(t, 0, hub.Len())
	assert.Equal(t, "ui-hidden", TrimUIHidden.String())
}
