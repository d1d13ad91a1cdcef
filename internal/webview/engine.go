// Package webview runs page scripts in pooled browser-engine instances and
// splices their results into HTTP responses.
package webview

import "context"

// BridgeName is the page-global function scripts call to hand a payload
// back to the host.
const BridgeName = "hostBridge"

// Factory creates engine instances. Creation is expensive; the Pool keeps
// a few around between interceptions.
type Factory interface {
	New(ctx context.Context) (Instance, error)
}

// Instance is one browser page. Callers must not use an instance after
// handing it back to the pool.
type Instance interface {
	ID() string
	SetUserAgent(ua string) error

	// Bind exposes fn to page scripts as window[name].
	Bind(ctx context.Context, name string, fn func(payload string)) error
	Unbind(name string) error

	// Navigate loads url and returns once the page finished loading.
	Navigate(ctx context.Context, url string, headers map[string]string) error
	Run(ctx context.Context, script string) error

	// Reset clears history and cache and parks the page on about:blank.
	Reset(ctx context.Context) error
	Destroy() error
}

type Logger interface {
	Debugf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
