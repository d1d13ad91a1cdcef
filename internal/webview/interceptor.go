package webview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// InterceptError means no engine instance could be obtained. It belongs to
// the I/O failure class, like a transport error.
type InterceptError struct {
	URL string
	Err error
}

func (e *InterceptError) Error() string {
	return fmt.Sprintf("intercept %s: %v", e.URL, e.Err)
}

func (e *InterceptError) Unwrap() error { return e.Err }

type InterceptorOptions struct {
	Script      string
	// URLModifier maps the request URL to the page the engine loads. It is
	// also the cache key. Nil keeps the URL unchanged.
	URLModifier func(string) string
	// Transparent interceptors only visit the page; the response passes
	// through untouched and nothing is cached.
	Transparent bool

	WaitTimeout  time.Duration
	ReleaseDelay time.Duration

	Log Logger
}

const (
	DefaultWaitTimeout  = 8 * time.Second
	DefaultReleaseDelay = 2500 * time.Millisecond

	emptyPayload = "[]"
)

// Interceptor is an http.RoundTripper that loads the requested page in a
// pooled engine instance, runs Script there and, unless transparent, swaps
// the response body for what the script passed to the bridge.
type Interceptor struct {
	base http.RoundTripper
	pool *Pool
	opts InterceptorOptions
}

func NewInterceptor(base http.RoundTripper, pool *Pool, opts InterceptorOptions) *Interceptor {
	if base == nil {
		base = http.DefaultTransport
	}
	if opts.URLModifier == nil {
		opts.URLModifier = func(u string) string { return u }
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultWaitTimeout
	}
	if opts.ReleaseDelay < 0 {
		opts.ReleaseDelay = 0
	}
	if opts.Log == nil {
		opts.Log = nopLogger{}
	}

	return &Interceptor{base: base, pool: pool, opts: opts}
}

func (ic *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := ic.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	key := ic.opts.URLModifier(req.URL.String())

	if !ic.opts.Transparent {
		if payload, ok := ic.pool.Cache().Get(key); ok {
			ic.opts.Log.Debugf("intercept %s: cache hit\n", key)
			return withBody(resp, payload), nil
		}
	}

	actx, cancel := context.WithTimeout(req.Context(), ic.opts.WaitTimeout)
	inst, err := ic.pool.Acquire(actx)
	cancel()
	if err != nil {
		_ = resp.Body.Close()
		return nil, &InterceptError{URL: key, Err: err}
	}

	b := newBridge()
	navDone := make(chan struct{})

	go func() {
		defer close(navDone)
		ic.drive(req, inst, key, b)
	}()

	payload, ok := b.wait(ic.opts.WaitTimeout)
	if !ok {
		ic.opts.Log.Debugf("intercept %s: no payload captured\n", key)
	}

	go func() {
		<-navDone
		time.Sleep(ic.opts.ReleaseDelay)
		ic.pool.Release(inst)
	}()

	if ic.opts.Transparent {
		return resp, nil
	}

	if ok && payload != "" {
		ic.pool.Cache().Put(key, payload)
	} else {
		payload = emptyPayload
	}

	return withBody(resp, payload), nil
}

// drive loads the page and runs the script. Every failure opens the bridge
// so the caller stops waiting.
func (ic *Interceptor) drive(req *http.Request, inst Instance, key string, b *bridge) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), ic.opts.WaitTimeout)
	defer cancel()

	if ua := req.Header.Get("User-Agent"); ua != "" {
		if err := inst.SetUserAgent(ua); err != nil {
			ic.opts.Log.Debugf("intercept %s: user agent: %v\n", key, err)
		}
	}

	if err := inst.Bind(ctx, BridgeName, b.deliver); err != nil {
		ic.opts.Log.Debugf("intercept %s: bind: %v\n", key, err)
		b.release()
		return
	}

	if err := inst.Navigate(ctx, key, flattenHeaders(req.Header)); err != nil {
		ic.opts.Log.Debugf("intercept %s: navigate: %v\n", key, err)
		b.release()
		return
	}

	if ic.opts.Transparent {
		b.release()
	}

	if err := inst.Run(ctx, ic.opts.Script); err != nil {
		ic.opts.Log.Debugf("intercept %s: script: %v\n", key, err)
		b.release()
		return
	}

	// Run returns before the script's promises settle; the binding lives on
	// ctx, so hold it open until the payload arrives or the wait times out.
	select {
	case <-b.done:
	case <-ctx.Done():
	}
}

func withBody(resp *http.Response, payload string) *http.Response {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	out := *resp
	out.Header = resp.Header.Clone()
	if out.Header == nil {
		out.Header = http.Header{}
	}
	out.Header.Del("Content-Encoding")
	out.Header.Set("Content-Length", strconv.Itoa(len(payload)))
	out.Body = io.NopCloser(strings.NewReader(payload))
	out.ContentLength = int64(len(payload))
	out.Uncompressed = false

	return &out
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		} else {
			out[k] = ""
		}
	}

	return out
}
