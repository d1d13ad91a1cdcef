// Package cubari reads series from cubari.moe: the reader's local history
// (through a browser engine) and proxied galleries from imgur, mangadex and
// similar hosts.
package cubari

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/brogergvhs/mangaext/internal/model"
	"github.com/brogergvhs/mangaext/internal/providers"
	"github.com/brogergvhs/mangaext/internal/providers/generic"
	"github.com/brogergvhs/mangaext/internal/store"
	"github.com/brogergvhs/mangaext/internal/webview"
)

const (
	ID             = "cubari"
	DefaultBaseURL = "https://cubari.moe"
)

type Options struct {
	BaseURL string
	Timeout time.Duration
	// Transport is the base transport every client is layered on.
	Transport http.RoundTripper
	// Pool runs the history scripts. Popular, latest and keyword search
	// need it; proxy lookups still work without one.
	Pool        *webview.Pool
	Interceptor webview.InterceptorOptions
	// Timestamps records when an undated chapter was first seen.
	Timestamps store.TimestampStore
	// MaxLookups bounds concurrent lookups of a multi-slug query.
	MaxLookups int
	// UserAgent is set on every request here rather than left to the
	// transport, so the engine pages load with it too.
	UserAgent string

	Log providers.Logger
	Now func() time.Time
}

type Cubari struct {
	base string

	plain *http.Client
	home  *http.Client
	tag   *http.Client

	times      store.TimestampStore
	maxLookups int
	ua         string
	exec       *providers.Runner
	log        providers.Logger
	now        func() time.Time
}

func New(opts Options) *Cubari {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.Log == nil {
		opts.Log = nop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxLookups <= 0 {
		opts.MaxLookups = 4
	}
	opts.Interceptor.Log = opts.Log

	c := &Cubari{
		base:       strings.TrimRight(opts.BaseURL, "/"),
		times:      opts.Timestamps,
		maxLookups: opts.MaxLookups,
		ua:         opts.UserAgent,
		exec:       providers.NewRunner(opts.Log),
		log:        opts.Log,
		now:        opts.Now,
	}

	newClient := func(rt http.RoundTripper) *http.Client {
		return &http.Client{Timeout: opts.Timeout, Transport: stripEncoding{next: rt}}
	}

	c.plain = newClient(opts.Transport)
	c.home, c.tag = c.plain, c.plain
	if opts.Pool != nil {
		c.home = newClient(webview.NewHomeInterceptor(opts.Transport, opts.Pool, opts.Interceptor))
		c.tag = newClient(webview.NewTagInterceptor(opts.Transport, opts.Pool, opts.Interceptor))
	}

	return c
}

type nop struct{}

func (nop) Debugf(string, ...any) {}

// stripEncoding drops Accept-Encoding; the API answers some encodings with
// bodies the readers cannot decode.
type stripEncoding struct {
	next http.RoundTripper
}

func (s stripEncoding) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Del("Accept-Encoding")

	return s.next.RoundTrip(r)
}

func (c *Cubari) ID() string           { return ID }
func (c *Cubari) Name() string         { return "Cubari" }
func (c *Cubari) Lang() string         { return "all" }
func (c *Cubari) BaseURL() string      { return c.base }
func (c *Cubari) SupportsLatest() bool { return true }

func (c *Cubari) Client(op providers.Operation) *http.Client {
	switch op {
	case providers.OpPopular, providers.OpLatest, providers.OpSearch:
		return c.home
	default:
		return c.plain
	}
}

func (c *Cubari) Filters() providers.FilterList {
	return providers.FilterList{
		{Key: "note", Name: "Search " + ProxyPrefix + "<source>/<slug> or paste a link", Kind: providers.FilterHeader},
	}
}

func (c *Cubari) get(ctx context.Context, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if c.ua != "" {
		req.Header.Set("User-Agent", c.ua)
	}

	return req, nil
}

func (c *Cubari) PopularRequest(ctx context.Context, _ int) (*http.Request, error) {
	return c.get(ctx, c.base+"/")
}

func (c *Cubari) ParsePopular(resp *http.Response) (model.Listing, error) {
	body, err := generic.ReadBody(resp)
	if err != nil {
		return model.Listing{}, err
	}

	return c.parseMangaList(body, listPinned, nil)
}

func (c *Cubari) LatestRequest(ctx context.Context, _ int) (*http.Request, error) {
	return c.get(ctx, c.base+"/")
}

func (c *Cubari) ParseLatest(resp *http.Response) (model.Listing, error) {
	body, err := generic.ReadBody(resp)
	if err != nil {
		return model.Listing{}, err
	}

	return c.parseMangaList(body, listUnpinned, nil)
}

// SearchRequest loads the history for a keyword search. Structured queries
// go through FetchSearch.
func (c *Cubari) SearchRequest(ctx context.Context, _ int, _ string, _ providers.FilterList) (*http.Request, error) {
	return c.get(ctx, c.base+"/")
}

// ParseSearch matches the history by title. No match means the user most
// likely meant a structured query, so it reports an InvalidQueryError.
func (c *Cubari) ParseSearch(resp *http.Response, query string) (model.Listing, error) {
	body, err := generic.ReadBody(resp)
	if err != nil {
		return model.Listing{}, err
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	l, err := c.parseMangaList(body, listAll, func(e historyEntry) bool {
		return strings.Contains(strings.ToLower(*e.Title), needle)
	})
	if err != nil {
		return model.Listing{}, err
	}

	if len(l.Mangas) == 0 {
		return model.Listing{}, &providers.InvalidQueryError{Query: query, Hint: SearchFallbackMsg}
	}

	return l, nil
}

func (c *Cubari) seriesURL(source, slug string) string {
	return c.base + "/read/api/" + source + "/series/" + slug + "/"
}

func (c *Cubari) DetailsRequest(ctx context.Context, manga model.Manga) (*http.Request, error) {
	return c.ChapterListRequest(ctx, manga)
}

func (c *Cubari) ParseDetails(resp *http.Response, manga model.Manga) (model.Manga, error) {
	var s series
	if err := generic.DecodeJSON(resp, &s); err != nil {
		return model.Manga{}, err
	}

	return parseManga(s, manga.URL)
}

func (c *Cubari) ChapterListRequest(ctx context.Context, manga model.Manga) (*http.Request, error) {
	source, slug, err := seriesRef(manga.URL)
	if err != nil {
		return nil, err
	}

	return c.get(ctx, c.seriesURL(source, slug))
}

func (c *Cubari) ParseChapterList(resp *http.Response, manga model.Manga) (providers.ChapterPage, error) {
	var s series
	if err := generic.DecodeJSON(resp, &s); err != nil {
		return providers.ChapterPage{}, err
	}

	chs, err := c.parseChapters(s, manga)
	if err != nil {
		return providers.ChapterPage{}, err
	}

	return providers.ChapterPage{Chapters: chs}, nil
}

func isDirect(chapter model.Chapter) bool {
	return strings.Contains(chapter.URL, "/chapter/")
}

func (c *Cubari) PageListRequest(ctx context.Context, chapter model.Chapter) (*http.Request, error) {
	if isDirect(chapter) {
		return c.get(ctx, generic.Resolve(c.base+"/", chapter.URL))
	}

	source, slug, err := seriesRef(chapter.URL)
	if err != nil {
		return nil, err
	}

	return c.get(ctx, c.seriesURL(source, slug))
}

func (c *Cubari) ParsePageList(resp *http.Response, chapter model.Chapter) ([]model.Page, error) {
	body, err := generic.ReadBody(resp)
	if err != nil {
		return nil, err
	}

	if isDirect(chapter) {
		return pageList(body)
	}

	var s series
	if err := jsonUnmarshal(body, &s); err != nil {
		return nil, err
	}

	return seriesPages(s, chapter)
}

// seriesRef reads source and slug from "/read/<source>/<slug>/...".
func seriesRef(u string) (source, slug string, err error) {
	parts := strings.Split(generic.RelativePath(u), "/")
	if len(parts) < 4 || parts[2] == "" || parts[3] == "" {
		return "", "", fmt.Errorf("not a cubari series path: %q", u)
	}

	return parts[2], parts[3], nil
}

// chapterRef reads the chapter key and group id from
// "/read/<source>/<slug>/<key>/<group>".
func chapterRef(u string) (key, group string, ok bool) {
	parts := strings.Split(strings.TrimSuffix(generic.RelativePath(u), "/"), "/")
	if len(parts) < 6 || parts[4] == "" || parts[5] == "" {
		return "", "", false
	}

	return parts[4], parts[5], true
}
