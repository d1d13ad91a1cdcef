// Package ikigai reads Ikigai Mangas: series, listings and chapters come
// from the panel JSON API, page images from the reader site's HTML.
package ikigai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/brogergvhs/mangaext/internal/model"
	"github.com/brogergvhs/mangaext/internal/providers"
	"github.com/brogergvhs/mangaext/internal/providers/generic"
)

const (
	ID             = "ikigai"
	DefaultBaseURL = "https://ikigaitoon.bookir.net"
	DefaultAPIURL  = "https://panel.ikigaimangas.com"

	// source settings keys
	SettingNSFW    = "show_nsfw"
	SettingBaseURL = "base_url"

	maxFilterAttempts = 3
)

type Options struct {
	// BaseURL overrides the reader site; blank means DefaultBaseURL.
	BaseURL string
	APIURL  string
	NSFW    bool

	Timeout   time.Duration
	Transport http.RoundTripper
	Log       providers.Logger
	Now       func() time.Time
}

// ApplySettings reads the per-source settings from the config file.
func (o *Options) ApplySettings(settings map[string]string) error {
	if v, ok := settings[SettingNSFW]; ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %s: %w", ID, SettingNSFW, err)
		}
		o.NSFW = b
	}

	if v := strings.TrimSpace(settings[SettingBaseURL]); v != "" {
		if _, err := url.ParseRequestURI(v); err != nil {
			return fmt.Errorf("%s: %s: %w", ID, SettingBaseURL, err)
		}
		o.BaseURL = v
	}

	return nil
}

type Ikigai struct {
	base   string
	api    string
	nsfw   bool
	client *http.Client
	log    providers.Logger
	now    func() time.Time

	filterMu       sync.Mutex
	filterAttempts int
	fetched        providers.FilterList
}

func New(opts Options) *Ikigai {
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
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

	base := strings.TrimRight(opts.BaseURL, "/")

	return &Ikigai{
		base: base,
		api:  strings.TrimRight(opts.APIURL, "/"),
		nsfw: opts.NSFW,
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: siteHeaders{next: opts.Transport, referer: base},
		},
		log: opts.Log,
		now: opts.Now,
	}
}

type nop struct{}

func (nop) Debugf(string, ...any) {}

// siteHeaders sends the Referer the API expects and the cookie that
// unlocks adult series.
type siteHeaders struct {
	next    http.RoundTripper
	referer string
}

func (s siteHeaders) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Referer", s.referer)

	cookie := "nsfw-mode=true"
	if c := r.Header.Get("Cookie"); c != "" && !strings.Contains(c, "nsfw-mode=") {
		cookie = c + "; " + cookie
	} else if c != "" {
		cookie = c
	}
	r.Header.Set("Cookie", cookie)

	return s.next.RoundTrip(r)
}

func (s *Ikigai) ID() string                              { return ID }
func (s *Ikigai) Name() string                            { return "Ikigai Mangas" }
func (s *Ikigai) Lang() string                            { return "es" }
func (s *Ikigai) BaseURL() string                         { return s.base }
func (s *Ikigai) SupportsLatest() bool                    { return true }
func (s *Ikigai) Client(providers.Operation) *http.Client { return s.client }

func (s *Ikigai) get(ctx context.Context, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	return req, nil
}

func (s *Ikigai) apiURL(path string, q url.Values) string {
	u := s.api + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	return u
}

func (s *Ikigai) PopularRequest(ctx context.Context, _ int) (*http.Request, error) {
	q := url.Values{}
	q.Set("type", "total_ranking")
	q.Set("series_type", "comic")
	q.Set("nsfw", strconv.FormatBool(s.nsfw))

	return s.get(ctx, s.apiURL("/api/swf/series/ranking-list", q))
}

func (s *Ikigai) ParsePopular(resp *http.Response) (model.Listing, error) {
	var p seriesPayload
	if err := generic.DecodeJSON(resp, &p); err != nil {
		return model.Listing{}, err
	}

	return toListing(p.Data, false, false), nil
}

func (s *Ikigai) LatestRequest(ctx context.Context, page int) (*http.Request, error) {
	q := url.Values{}
	q.Set("nsfw", strconv.FormatBool(s.nsfw))
	q.Set("page", strconv.Itoa(page))

	return s.get(ctx, s.apiURL("/api/swf/new-chapters", q))
}

func (s *Ikigai) ParseLatest(resp *http.Response) (model.Listing, error) {
	var p seriesPayload
	if err := generic.DecodeJSON(resp, &p); err != nil {
		return model.Listing{}, err
	}

	return toListing(p.Data, true, p.hasNextPage()), nil
}

func (s *Ikigai) SearchRequest(ctx context.Context, page int, query string, filters providers.FilterList) (*http.Request, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("type", "comic")
	q.Set("nsfw", strconv.FormatBool(s.nsfw))

	if query = strings.TrimSpace(query); query != "" {
		q.Set("search", query)
	}
	if ids := filters.Values("genres"); len(ids) > 0 {
		q.Set("genres", strings.Join(ids, ","))
	}
	if ids := filters.Values("status"); len(ids) > 0 {
		q.Set("status", strings.Join(ids, ","))
	}

	column, ok := filters.Value("sort")
	if !ok || column == "" {
		column = "name"
	}
	q.Set("column", column)

	direction := "desc"
	if filters.Ascending("sort") {
		direction = "asc"
	}
	q.Set("direction", direction)

	return s.get(ctx, s.apiURL("/api/swf/series", q))
}

func (s *Ikigai) ParseSearch(resp *http.Response, _ string) (model.Listing, error) {
	var p seriesPayload
	if err := generic.DecodeJSON(resp, &p); err != nil {
		return model.Listing{}, err
	}

	return toListing(p.Data, true, p.hasNextPage()), nil
}

func toListing(items []seriesDto, comicsOnly, hasNext bool) model.Listing {
	l := model.Listing{Mangas: make([]model.Manga, 0, len(items)), HasNextPage: hasNext}
	for _, it := range items {
		if comicsOnly && it.Type != "comic" {
			continue
		}
		if it.Slug == "" || strings.TrimSpace(it.Name) == "" {
			continue
		}
		l.Mangas = append(l.Mangas, it.toManga())
	}

	return l
}

// SiteURL is the reader page for a manga or chapter URL.
func (s *Ikigai) SiteURL(u string) string {
	u, _, _ = strings.Cut(u, "#")
	return s.base + strings.Replace(u, "/series/comic-", "/series/", 1)
}

func (s *Ikigai) DetailsRequest(ctx context.Context, manga model.Manga) (*http.Request, error) {
	slug := slugOf(manga.URL)
	if slug == "" {
		return nil, fmt.Errorf("%s: no slug in %q", ID, manga.URL)
	}

	return s.get(ctx, s.apiURL("/api/swf/series/"+slug, nil))
}

func (s *Ikigai) ParseDetails(resp *http.Response, _ model.Manga) (model.Manga, error) {
	var p detailsPayload
	if err := generic.DecodeJSON(resp, &p); err != nil {
		return model.Manga{}, err
	}
	if p.Series.Slug == "" {
		return model.Manga{}, fmt.Errorf("series payload without slug")
	}

	return p.Series.toDetails(), nil
}

func (s *Ikigai) chaptersRequest(ctx context.Context, slug string, page int) (*http.Request, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))

	return s.get(ctx, s.apiURL("/api/swf/series/"+slug+"/chapters", q))
}

func (s *Ikigai) ChapterListRequest(ctx context.Context, manga model.Manga) (*http.Request, error) {
	slug := slugOf(manga.URL)
	if slug == "" {
		return nil, fmt.Errorf("%s: no slug in %q", ID, manga.URL)
	}

	return s.chaptersRequest(ctx, slug, 1)
}

// ParseChapterList returns one API page and asks for the next while
// meta.current_page < meta.last_page.
func (s *Ikigai) ParseChapterList(resp *http.Response, manga model.Manga) (providers.ChapterPage, error) {
	var p chaptersPayload
	if err := generic.DecodeJSON(resp, &p); err != nil {
		return providers.ChapterPage{}, err
	}

	now := s.now()
	out := providers.ChapterPage{Chapters: make([]model.Chapter, 0, len(p.Data))}
	for _, d := range p.Data {
		out.Chapters = append(out.Chapters, d.toChapter(now))
	}

	if p.hasNextPage() {
		next, err := s.chaptersRequest(resp.Request.Context(), slugOf(manga.URL), p.Meta.CurrentPage+1)
		if err != nil {
			return providers.ChapterPage{}, err
		}
		out.Next = next
	}

	return out, nil
}

func (s *Ikigai) PageListRequest(ctx context.Context, chapter model.Chapter) (*http.Request, error) {
	u, _, _ := strings.Cut(chapter.URL, "#")
	return http.NewRequestWithContext(ctx, http.MethodGet, generic.Resolve(s.base+"/", u), nil)
}

func (s *Ikigai) ParsePageList(resp *http.Response, _ model.Chapter) ([]model.Page, error) {
	doc, err := generic.NewDocument(resp)
	if err != nil {
		return nil, err
	}

	base := doc.Url.String()

	var pages []model.Page
	doc.Find("section div.img > img").Each(func(i int, img *goquery.Selection) {
		if src := generic.AbsAttr(img, base, "src", "data-src"); src != "" {
			pages = append(pages, model.Page{Index: i, ImageURL: src})
		}
	})

	if len(pages) == 0 {
		return nil, fmt.Errorf("no page images found")
	}

	return pages, nil
}
