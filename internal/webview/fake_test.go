package webview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// fakeFactory hands out fakeInstances whose page behaviour is scripted per
// test through onRun and navErr.
type fakeFactory struct {
	mu       sync.Mutex
	created  []*fakeInstance
	newErr   error
	navErr   error
	navDelay time.Duration
	onRun    func(inst *fakeInstance, script string)
	resetErr error

	// newDelay and resetDelay stand in for a browser launch and a slow
	// page reset.
	newDelay   time.Duration
	resetDelay time.Duration
	sequence   atomic.Int64
}

func (f *fakeFactory) New(context.Context) (Instance, error) {
	time.Sleep(f.newDelay)
	if f.newErr != nil {
		return nil, f.newErr
	}

	inst := &fakeInstance{
		id:      fmt.Sprintf("fake-%d", f.sequence.Add(1)),
		factory: f,
		binds:   map[string]binding{},
	}

	f.mu.Lock()
	f.created = append(f.created, inst)
	f.mu.Unlock()

	return inst, nil
}

func (f *fakeFactory) instances() []*fakeInstance {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]*fakeInstance(nil), f.created...)
}

func (f *fakeFactory) destroyed() int {
	n := 0
	for _, i := range f.instances() {
		if i.isDestroyed() {
			n++
		}
	}

	return n
}

type fakeInstance struct {
	id      string
	factory *fakeFactory

	mu        sync.Mutex
	binds     map[string]binding
	ua        string
	visited   []string
	headers   map[string]string
	resets    int
	destroyed bool
}

func (i *fakeInstance) ID() string { return i.id }

func (i *fakeInstance) SetUserAgent(ua string) error {
	i.mu.Lock()
	i.ua = ua
	i.mu.Unlock()
	return nil
}

// binding mirrors rod: the callback is only reachable while the context it
// was bound with is alive.
type binding struct {
	ctx context.Context
	fn  func(string)
}

func (i *fakeInstance) Bind(ctx context.Context, name string, fn func(string)) error {
	i.mu.Lock()
	i.binds[name] = binding{ctx: ctx, fn: fn}
	i.mu.Unlock()
	return nil
}

func (i *fakeInstance) Unbind(name string) error {
	i.mu.Lock()
	delete(i.binds, name)
	i.mu.Unlock()
	return nil
}

// call invokes the bound bridge, as a page script would.
func (i *fakeInstance) call(payload string) {
	i.mu.Lock()
	b, ok := i.binds[BridgeName]
	i.mu.Unlock()

	if ok && b.ctx.Err() == nil {
		b.fn(payload)
	}
}

func (i *fakeInstance) Navigate(ctx context.Context, url string, headers map[string]string) error {
	i.mu.Lock()
	i.visited = append(i.visited, url)
	i.headers = headers
	i.mu.Unlock()

	if d := i.factory.navDelay; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return i.factory.navErr
}

func (i *fakeInstance) Run(_ context.Context, script string) error {
	if i.factory.onRun != nil {
		i.factory.onRun(i, script)
	}
	return nil
}

func (i *fakeInstance) Reset(context.Context) error {
	time.Sleep(i.factory.resetDelay)

	i.mu.Lock()
	i.resets++
	i.mu.Unlock()
	return i.factory.resetErr
}

func (i *fakeInstance) Destroy() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.destroyed {
		return errors.New("already destroyed")
	}
	i.destroyed = true
	return nil
}

func (i *fakeInstance) isDestroyed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.destroyed
}

func (i *fakeInstance) lastVisit() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.visited) == 0 {
		return ""
	}
	return i.visited[len(i.visited)-1]
}

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
