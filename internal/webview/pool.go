package webview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrPoolClosed = errors.New("engine pool is shut down")

type PoolOptions struct {
	// MaxIdle caps how many instances are kept between uses.
	MaxIdle int

	ActiveTTL     time.Duration
	BackgroundTTL time.Duration
	// IdleAfter without an Acquire the pool counts as inactive and uses
	// BackgroundTTL. A memory signal also selects BackgroundTTL for
	// IdleAfter.
	IdleAfter     time.Duration
	SweepInterval time.Duration
	// HiddenGrace is how long a hidden host may stay hidden before the pool
	// is torn down.
	HiddenGrace   time.Duration

	CacheTTL       time.Duration
	SweepThreshold int

	ResetTimeout time.Duration

	Now func() time.Time
	Log Logger
}

func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxIdle:        2,
		ActiveTTL:      3 * time.Minute,
		BackgroundTTL:  30 * time.Second,
		IdleAfter:      60 * time.Second,
		SweepInterval:  30 * time.Second,
		HiddenGrace:    60 * time.Second,
		CacheTTL:       5 * time.Minute,
		SweepThreshold: 50,
		ResetTimeout:   5 * time.Second,
	}
}

func (o *PoolOptions) normalize() {
	d := DefaultPoolOptions()

	if o.MaxIdle <= 0 {
		o.MaxIdle = d.MaxIdle
	}
	if o.ActiveTTL <= 0 {
		o.ActiveTTL = d.ActiveTTL
	}
	if o.BackgroundTTL <= 0 {
		o.BackgroundTTL = d.BackgroundTTL
	}
	if o.IdleAfter <= 0 {
		o.IdleAfter = d.IdleAfter
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = d.SweepInterval
	}
	if o.HiddenGrace <= 0 {
		o.HiddenGrace = d.HiddenGrace
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = d.CacheTTL
	}
	if o.SweepThreshold <= 0 {
		o.SweepThreshold = d.SweepThreshold
	}
	if o.ResetTimeout <= 0 {
		o.ResetTimeout = d.ResetTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Log == nil {
		o.Log = nopLogger{}
	}
}

type pooled struct {
	inst       Instance
	returnedAt time.Time
}

// Pool keeps a small set of idle engine instances and the response cache.
// One mutex guards both, including the background sweeps.
type Pool struct {
	mu sync.Mutex

	factory Factory
	opts    PoolOptions
	log     Logger
	now     func() time.Time

	idle  []pooled
	cache *ResponseCache

	lastAcquire time.Time
	pressureAt  time.Time
	background  bool
	closed      bool

	hidden     *time.Timer
	unregister func()

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewPool(factory Factory, opts PoolOptions) *Pool {
	opts.normalize()

	p := &Pool{
		factory:     factory,
		opts:        opts,
		log:         opts.Log,
		now:         opts.Now,
		lastAcquire: opts.Now(),
		stop:        make(chan struct{}),
	}
	p.cache = newResponseCache(&p.mu, opts.CacheTTL, opts.SweepThreshold, opts.Now)

	return p
}

func (p *Pool) Cache() *ResponseCache {
	return p.cache
}

// Start launches the periodic sweep. It stops on Shutdown.
func (p *Pool) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		t := time.NewTicker(p.opts.SweepInterval)
		defer t.Stop()

		for {
			select {
			case <-p.stop:
				return
			case <-t.C:
				p.Sweep()
			}
		}
	}()
}

// Attach registers the pool for memory signals. Shutdown detaches it.
func (p *Pool) Attach(hub *LifecycleHub) {
	unregister := hub.Register(p)

	p.mu.Lock()
	p.unregister = unregister
	p.mu.Unlock()
}

// Acquire hands out the most recently returned idle instance, or creates a
// new one. It never waits for another caller to release.
func (p *Pool) Acquire(ctx context.Context) (Instance, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	p.markActiveLocked()
	p.sweepLocked()

	if n := len(p.idle); n > 0 {
		e := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()

		p.log.Debugf("engine pool: reusing instance %s\n", e.inst.ID())
		return e.inst, nil
	}
	p.mu.Unlock()

	type created struct {
		inst Instance
		err  error
	}

	// a first launch may download a browser; ctx bounds the wait, not the
	// launch, and a late instance is parked for the next caller
	ch := make(chan created, 1)
	go func() {
		inst, err := p.factory.New(context.WithoutCancel(ctx))
		ch <- created{inst, err}
	}()

	select {
	case c := <-ch:
		if c.err != nil {
			return nil, fmt.Errorf("create engine instance: %w", c.err)
		}
		p.log.Debugf("engine pool: created instance %s\n", c.inst.ID())
		return c.inst, nil
	case <-ctx.Done():
		go func() {
			if c := <-ch; c.err == nil {
				p.Release(c.inst)
			}
		}()
		return nil, fmt.Errorf("create engine instance: %w", ctx.Err())
	}
}

// Release resets inst and keeps it when there is room, otherwise destroys
// it. An instance that fails to reset is destroyed.
// The reset runs unlocked; room is checked again before the instance is
// parked.
func (p *Pool) Release(inst Instance) {
	if !p.hasRoom() {
		p.destroy(inst)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.opts.ResetTimeout)
	defer cancel()

	_ = inst.Unbind(BridgeName)
	if err := inst.Reset(ctx); err != nil {
		p.log.Debugf("engine pool: reset %s failed: %v\n", inst.ID(), err)
		p.destroy(inst)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || len(p.idle) >= p.opts.MaxIdle {
		p.destroy(inst)
		return
	}
	p.idle = append(p.idle, pooled{inst: inst, returnedAt: p.now()})
}

func (p *Pool) hasRoom() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return !p.closed && len(p.idle) < p.opts.MaxIdle
}

// Sweep evicts idle instances older than the current TTL and drops
// expired cache entries.
func (p *Pool) Sweep() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sweepLocked()
}

func (p *Pool) sweepLocked() {
	ttl := p.ttlLocked()
	cutoff := p.now().Add(-ttl)

	kept := p.idle[:0]
	removed := 0
	for _, e := range p.idle {
		if e.returnedAt.Before(cutoff) {
			p.destroy(e.inst)
			removed++
			continue
		}
		kept = append(kept, e)
	}
	clear(p.idle[len(kept):])
	p.idle = kept

	p.cache.sweepLocked()

	if removed > 0 {
		p.log.Debugf("engine pool: evicted %d idle instance(s) [state: %s]\n", removed, p.stateLocked())
	}
}

func (p *Pool) ttlLocked() time.Duration {
	if p.background || p.inactiveLocked() || p.pressuredLocked() {
		return p.opts.BackgroundTTL
	}

	return p.opts.ActiveTTL
}

func (p *Pool) inactiveLocked() bool {
	return p.now().Sub(p.lastAcquire) > p.opts.IdleAfter
}

// pressuredLocked reports a memory signal within the last IdleAfter.
func (p *Pool) pressuredLocked() bool {
	return !p.pressureAt.IsZero() && p.now().Sub(p.pressureAt) <= p.opts.IdleAfter
}

func (p *Pool) stateLocked() string {
	switch {
	case p.background:
		return "background"
	case p.pressuredLocked():
		return "pressure"
	case p.inactiveLocked():
		return "inactive"
	default:
		return "active"
	}
}

func (p *Pool) markActiveLocked() {
	p.background = false
	p.lastAcquire = p.now()
}

// Cleanup destroys every idle instance and empties the cache.
func (p *Pool) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cleanupLocked()
}

func (p *Pool) cleanupLocked() {
	for _, e := range p.idle {
		p.destroy(e.inst)
	}
	clear(p.idle)
	p.idle = p.idle[:0]
	p.cache.clearLocked()

	p.log.Debugf("engine pool: full cleanup\n")
}

// Shutdown stops the sweeper, detaches from lifecycle signals and tears the
// pool down. Instances released afterwards are destroyed.
func (p *Pool) Shutdown() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.unregister != nil {
		p.unregister()
		p.unregister = nil
	}
	if p.hidden != nil {
		p.hidden.Stop()
		p.hidden = nil
	}

	p.closed = true
	p.cleanupLocked()
}

func (p *Pool) SetBackground(bg bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if bg {
		p.background = true
		return
	}
	p.markActiveLocked()
}

func (p *Pool) OnTrimMemory(level TrimLevel) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.log.Debugf("engine pool: trim memory %s\n", level)

	switch level {
	case TrimRunningCritical:
		p.cleanupLocked()
	case TrimRunningLow, TrimRunningModerate:
		p.pressureAt = p.now()
		p.sweepLocked()
	case TrimUIHidden:
		p.background = true
		if p.hidden != nil {
			p.hidden.Stop()
		}
		p.hidden = time.AfterFunc(p.opts.HiddenGrace, p.cleanupIfHidden)
	case TrimBackground:
		p.background = true
		p.sweepLocked()
	}
}

func (p *Pool) cleanupIfHidden() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.background && !p.closed {
		p.cleanupLocked()
	}
}

func (p *Pool) OnLowMemory() {
	p.Cleanup()
}

type Stats struct {
	Idle      int
	MaxIdle   int
	CacheSize int
	State     string
}

func (s Stats) String() string {
	return fmt.Sprintf("Engine pool: %d/%d | Cache: %d entries | State: %s", s.Idle, s.MaxIdle, s.CacheSize, s.State)
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Idle:      len(p.idle),
		MaxIdle:   p.opts.MaxIdle,
		CacheSize: len(p.cache.entries),
		State:     p.stateLocked(),
	}
}

func (p *Pool) destroy(inst Instance) {
	if err := inst.Destroy(); err != nil {
		p.log.Debugf("engine pool: destroy %s: %v\n", inst.ID(), err)
	}
}
