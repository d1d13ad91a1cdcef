package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/mattn/go-isatty"

	"github.com/brogergvhs/mangaext/internal/config"
	"github.com/brogergvhs/mangaext/internal/providers"
	"github.com/brogergvhs/mangaext/internal/providers/cubari"
	"github.com/brogergvhs/mangaext/internal/providers/ikigai"
	"github.com/brogergvhs/mangaext/internal/providers/mycomiclist"
	"github.com/brogergvhs/mangaext/internal/providers/xoxocomics"
	"github.com/brogergvhs/mangaext/internal/store"
	"github.com/brogergvhs/mangaext/internal/ui"
	"github.com/brogergvhs/mangaext/internal/util"
	"github.com/brogergvhs/mangaext/internal/webview"
)

// settingBaseURL overrides any source's site address from the config.
const settingBaseURL = "base_url"

// app is everything a command needs to drive the sources.
type app struct {
	cfg      *config.Config
	log      *ui.Logger
	registry *providers.Registry
	runner   *providers.Runner

	transport http.RoundTripper
	pool      *webview.Pool
	hub       *webview.LifecycleHub
	closers   []func() error
}

func newApp(cfg *config.Config, log *ui.Logger) (*app, error) {
	a := &app{
		cfg: cfg,
		log: log,
		transport: util.NewTransport(util.HTTPClientOptions{
			UserAgent:        cfg.HTTP.UserAgent,
			Cookie:           cfg.HTTP.Cookie,
			CookieFile:       cfg.HTTP.CookieFile,
			BypassCloudflare: cfg.HTTP.BypassCloudflare,
			DebugLogger:      log,
		}),
		runner: providers.NewRunner(log, providers.WithRetry(cfg.HTTP.Retries, cfg.HTTP.RetryBackoff)),
	}

	if cfg.Engine.Enabled {
		a.startEngine()
	}

	times, err := a.openTimestamps()
	if err != nil {
		a.Close()
		return nil, err
	}

	srcs, err := a.buildSources(times)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.registry = providers.NewRegistry(srcs...)

	return a, nil
}

func (a *app) startEngine() {
	e := a.cfg.Engine

	factory := webview.NewRodFactory(webview.RodOptions{
		Bin:        e.BrowserBin,
		Headless:   e.Headless,
		ControlURL: e.ControlURL,
		Log:        a.log,
	})

	a.pool = webview.NewPool(factory, webview.PoolOptions{
		MaxIdle:        e.MaxIdle,
		ActiveTTL:      e.ActiveTTL,
		BackgroundTTL:  e.BackgroundTTL,
		IdleAfter:      e.IdleAfter,
		SweepInterval:  e.SweepInterval,
		HiddenGrace:    e.HiddenGrace,
		CacheTTL:       e.CacheTTL,
		SweepThreshold: e.SweepThreshold,
		Log:            a.log,
	})
	a.pool.Start()

	a.hub = webview.NewLifecycleHub()
	a.pool.Attach(a.hub)

	// pool first: it destroys its instances through the browser
	a.closers = append(a.closers,
		func() error { a.pool.Shutdown(); return nil },
		factory.Close,
	)
}

func (a *app) openTimestamps() (store.TimestampStore, error) {
	path := a.cfg.Store.Timestamps
	if strings.EqualFold(path, "memory") {
		return store.NewMemory(), nil
	}

	db, err := store.OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("timestamp store %s: %w", path, err)
	}
	a.closers = append(a.closers, db.Close)

	return db.Scope(cubari.ID), nil
}

func (a *app) buildSources(times store.TimestampStore) ([]providers.Source, error) {
	timeout := a.cfg.HTTP.Timeout
	baseURL := func(id string) string {
		return strings.TrimSpace(a.cfg.SourceSettings(id)[settingBaseURL])
	}

	cub := cubari.New(cubari.Options{
		BaseURL:   baseURL(cubari.ID),
		Timeout:   timeout,
		Transport: a.transport,
		Pool:      a.pool,
		Interceptor: webview.InterceptorOptions{
			WaitTimeout:  a.cfg.Engine.WaitTimeout,
			ReleaseDelay: a.cfg.Engine.ReleaseDelay,
		},
		Timestamps: times,
		UserAgent:  util.PickUserAgent(a.cfg.HTTP.UserAgent),
		Log:        a.log,
	})

	ikOpts := ikigai.Options{
		Timeout:   timeout,
		Transport: a.transport,
		Log:       a.log,
	}
	if err := ikOpts.ApplySettings(a.cfg.SourceSettings(ikigai.ID)); err != nil {
		return nil, err
	}

	mcl := mycomiclist.New(mycomiclist.Options{
		BaseURL:   baseURL(mycomiclist.ID),
		Timeout:   timeout,
		Transport: a.transport,
		Log:       a.log,
	})

	xoxo := xoxocomics.New(xoxocomics.Options{
		BaseURL:   baseURL(xoxocomics.ID),
		Timeout:   timeout,
		Transport: a.transport,
		Log:       a.log,
	})

	return []providers.Source{cub, ikigai.New(ikOpts), mcl, xoxo}, nil
}

// Close releases the engine and the timestamp store. Safe to call twice.
// Close releases the engine and the store. With --debug it first logs what
// the engine pool held at the end of the command.
func (a *app) Close() {
	if a.pool != nil && len(a.closers) > 0 {
		a.log.Debugf("%s\n", a.pool.Stats())
	}

	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Debugf("close: %v\n", err)
		}
	}
	a.closers = nil
}

// interrupt is the SIGINT hook: drop every engine instance before exit.
func (a *app) interrupt() {
	if a.hub != nil {
		a.hub.TrimMemory(webview.TrimRunningCritical)
	}
	a.Close()
}

var errNoSource = errors.New("no source selected: pass --source or set default_source in the config")

// source picks the source for a command: --source, then default_source,
// then an interactive prompt when stdin is a terminal.
func (a *app) source() (providers.Source, error) {
	if id := a.cfg.DefaultSource; id != "" {
		return a.registry.Get(id)
	}

	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return nil, errNoSource
	}

	return pickSource(a.registry.List())
}

func pickSource(srcs []providers.Source) (providers.Source, error) {
	items := make([]string, len(srcs))
	for i, s := range srcs {
		items[i] = fmt.Sprintf("%s  (%s, %s)", s.Name(), s.ID(), s.Lang())
	}

	prompt := promptui.Select{
		Label: "Select source",
		Items: items,
	}

	idx, _, err := prompt.Run()
	if err != nil {
		return nil, fmt.Errorf("selection cancelled")
	}

	return srcs[idx], nil
}

// setup loads the config, builds the app and installs the interrupt
// handler. With cleanOutput the handler also removes unfinished chapter
// folders under the configured output.
func setup(opts config.Options, cleanOutput bool) (*app, error) {
	cfg, used, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	log := newLogger(cfg)
	log.Debugf("config: %s\n", used)

	a, err := newApp(cfg, log)
	if err != nil {
		return nil, err
	}

	dir := ""
	if cleanOutput {
		dir = cfg.Output
	}
	util.SetupInterruptHandler(dir, a.interrupt)

	return a, nil
}

func setupWithSource(opts config.Options, cleanOutput bool) (*app, providers.Source, error) {
	a, err := setup(opts, cleanOutput)
	if err != nil {
		return nil, nil, err
	}

	src, err := a.source()
	if err != nil {
		a.Close()
		return nil, nil, err
	}

	return a, src, nil
}
