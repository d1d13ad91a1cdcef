package webview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"github.com/ysmood/gson"
)

// blockedImages keeps pooled pages from downloading pictures.
var blockedImages = []string{
	"*.jpg", "*.jpeg", "*.png", "*.gif", "*.webp", "*.avif", "*.svg", "*.ico",
}

type RodOptions struct {
	// Bin is the browser executable. Empty lets the launcher find or
	// download one.
	Bin        string
	Headless   bool
	// ControlURL connects to an already running browser instead of
	// launching one.
	ControlURL string
	Log        Logger
}

// RodFactory creates one page per instance in a single shared browser,
// launched on first use.
type RodFactory struct {
	opts RodOptions

	mu      sync.Mutex
	browser *rod.Browser
	launch  *launcher.Launcher
}

func NewRodFactory(opts RodOptions) *RodFactory {
	if opts.Log == nil {
		opts.Log = nopLogger{}
	}

	return &RodFactory{opts: opts}
}

func (f *RodFactory) connect() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		return f.browser, nil
	}

	u := f.opts.ControlURL
	if u == "" {
		l := launcher.New().Headless(f.opts.Headless)
		if f.opts.Bin != "" {
			l = l.Bin(f.opts.Bin)
		}

		var err error
		u, err = l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		f.launch = l
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	f.opts.Log.Debugf("browser connected (%s)\n", u)
	f.browser = b

	return b, nil
}

func (f *RodFactory) New(ctx context.Context) (Instance, error) {
	b, err := f.connect()
	if err != nil {
		return nil, err
	}

	page, err := b.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page = page.Context(context.Background())

	if err := configurePage(page); err != nil {
		_ = page.Close()
		return nil, err
	}

	return &rodInstance{
		id:    uuid.NewString(),
		page:  page,
		binds: make(map[string]func() error),
	}, nil
}

func configurePage(page *rod.Page) error {
	if err := (proto.EmulationSetScriptExecutionDisabled{Value: false}).Call(page); err != nil {
		return fmt.Errorf("enable scripts: %w", err)
	}
	if err := (proto.DOMStorageEnable{}).Call(page); err != nil {
		return fmt.Errorf("enable dom storage: %w", err)
	}
	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return fmt.Errorf("enable network: %w", err)
	}
	if err := (proto.NetworkSetCacheDisabled{CacheDisabled: false}).Call(page); err != nil {
		return fmt.Errorf("enable cache: %w", err)
	}
	if err := (proto.NetworkSetBlockedURLs{Urls: blockedImages}).Call(page); err != nil {
		return fmt.Errorf("block images: %w", err)
	}

	return nil
}

// Close shuts the shared browser down. Instances become unusable.
func (f *RodFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser == nil {
		return nil
	}

	err := f.browser.Close()
	f.browser = nil
	if f.launch != nil {
		f.launch.Cleanup()
		f.launch = nil
	}

	return err
}

type rodInstance struct {
	id   string
	page *rod.Page

	mu    sync.Mutex
	binds map[string]func() error
}

func (r *rodInstance) ID() string { return r.id }

func (r *rodInstance) SetUserAgent(ua string) error {
	return proto.NetworkSetUserAgentOverride{UserAgent: ua}.Call(r.page)
}

// Bind exposes fn until Unbind or Destroy. ctx only bounds the setup: rod
// runs the binding listener on the page context, so that context must
// outlive the calls that come from scripts still running after Run returns.
func (r *rodInstance) Bind(ctx context.Context, name string, fn func(string)) error {
	_ = r.Unbind(name)

	live, cancel := context.WithCancel(context.Background())
	detach := context.AfterFunc(ctx, cancel)

	stop, err := r.page.Context(live).Expose(name, func(j gson.JSON) (interface{}, error) {
		fn(j.Str())
		return nil, nil
	})
	detach()
	if err != nil {
		cancel()
		return fmt.Errorf("expose %s: %w", name, err)
	}
	if live.Err() != nil {
		_ = stop()
		return fmt.Errorf("expose %s: %w", name, context.Cause(ctx))
	}

	r.mu.Lock()
	r.binds[name] = func() error {
		defer cancel()
		return stop()
	}
	r.mu.Unlock()

	return nil
}

func (r *rodInstance) Unbind(name string) error {
	r.mu.Lock()
	stop, ok := r.binds[name]
	delete(r.binds, name)
	r.mu.Unlock()

	if !ok {
		return nil
	}

	return stop()
}

func (r *rodInstance) Navigate(ctx context.Context, url string, headers map[string]string) error {
	page := r.page.Context(ctx)

	extra := make(proto.NetworkHeaders)
	for k, v := range headers {
		if skipHeader(k) {
			continue
		}
		extra[k] = gson.New(v)
	}
	if err := (proto.NetworkSetExtraHTTPHeaders{Headers: extra}).Call(page); err != nil {
		return fmt.Errorf("set headers: %w", err)
	}

	if err := page.Navigate(url); err != nil {
		return err
	}

	return page.WaitLoad()
}

// headers the browser manages itself
func skipHeader(k string) bool {
	switch http.CanonicalHeaderKey(k) {
	case "User-Agent", "Host", "Content-Length", "Accept-Encoding", "Connection", "Cookie":
		return true
	}

	return false
}

func (r *rodInstance) Run(ctx context.Context, script string) error {
	_, err := r.page.Context(ctx).Evaluate(rod.Eval("() => {" + strings.TrimSpace(script) + "\n}"))
	return err
}

func (r *rodInstance) Reset(ctx context.Context) error {
	page := r.page.Context(ctx)

	err := errors.Join(
		proto.PageResetNavigationHistory{}.Call(page),
		proto.NetworkClearBrowserCache{}.Call(page),
		proto.NetworkSetExtraHTTPHeaders{Headers: proto.NetworkHeaders{}}.Call(page),
	)
	if err != nil {
		return err
	}

	return page.Navigate("about:blank")
}

func (r *rodInstance) Destroy() error {
	r.mu.Lock()
	binds := r.binds
	r.binds = map[string]func() error{}
	r.mu.Unlock()

	for _, stop := range binds {
		_ = stop()
	}

	return r.page.Close()
}
