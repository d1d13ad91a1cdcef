// Package xoxocomics scrapes xoxocomic.com, a WPComics-style reader.
package xoxocomics

import (
	"context"
	"errors"
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
	ID             = "xoxocomics"
	DefaultBaseURL = "https://xoxocomic.com"

	dateLayout = "01/02/2006"
)

type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
	Log       providers.Logger
	Now       func() time.Time
}

type XoxoComics struct {
	base   string
	client *http.Client
	log    providers.Logger
	now    func() time.Time

	mu     sync.Mutex
	genres []providers.Option
}

func New(opts Options) *XoxoComics {
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

	return &XoxoComics{
		base:   strings.TrimRight(opts.BaseURL, "/"),
		client: &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		log:    opts.Log,
		now:    opts.Now,
	}
}

type nop struct{}

func (nop) Debugf(string, ...any) {}

func (s *XoxoComics) ID() string                              { return ID }
func (s *XoxoComics) Name() string                            { return "XOXO Comics" }
func (s *XoxoComics) Lang() string                            { return "en" }
func (s *XoxoComics) BaseURL() string                         { return s.base }
func (s *XoxoComics) SupportsLatest() bool                    { return true }
func (s *XoxoComics) Client(providers.Operation) *http.Client { return s.client }

func (s *XoxoComics) get(ctx context.Context, path string) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, generic.Resolve(s.base+"/", path), nil)
}

func (s *XoxoComics) relative(href string) string {
	return generic.RelativePath(generic.Resolve(s.base+"/", href))
}

func (s *XoxoComics) PopularRequest(ctx context.Context, page int) (*http.Request, error) {
	return s.get(ctx, "/hot-comic?page="+strconv.Itoa(page))
}

func (s *XoxoComics) ParsePopular(resp *http.Response) (model.Listing, error) {
	return s.parseListing(resp, "div.items div.item")
}

func (s *XoxoComics) LatestRequest(ctx context.Context, page int) (*http.Request, error) {
	return s.get(ctx, "/comic-update?page="+strconv.Itoa(page))
}

func (s *XoxoComics) ParseLatest(resp *http.Response) (model.Listing, error) {
	return s.parseListing(resp, "li.row")
}

// SearchRequest uses the keyword search when there is a query. Otherwise
// the genre and status filters become a path: /{genre}-comic/{status},
// /{genre}-comic or /comic/{status}. No query and no filter lists the
// popular page.
func (s *XoxoComics) SearchRequest(ctx context.Context, page int, query string, filters providers.FilterList) (*http.Request, error) {
	p := strconv.Itoa(page)

	if q := strings.TrimSpace(query); q != "" {
		return s.get(ctx, "/search-comic?keyword="+url.QueryEscape(q)+"&page="+p)
	}

	genre, _ := filters.Value("genre")
	status, _ := filters.Value("status")

	var path string
	switch {
	case genre != "" && status != "":
		path = "/" + url.PathEscape(genre) + "-comic/" + url.PathEscape(status)
	case genre != "":
		path = "/" + url.PathEscape(genre) + "-comic"
	case status != "":
		path = "/comic/" + url.PathEscape(status)
	default:
		return s.PopularRequest(ctx, page)
	}

	return s.get(ctx, path+"?page="+p+"&sort=0")
}

func (s *XoxoComics) ParseSearch(resp *http.Response, _ string) (model.Listing, error) {
	return s.parseListing(resp, "div.items div.item")
}

func (s *XoxoComics) parseListing(resp *http.Response, selector string) (model.Listing, error) {
	doc, err := generic.NewDocument(resp)
	if err != nil {
		return model.Listing{}, err
	}

	base := doc.Url.String()
	l := model.Listing{HasNextPage: doc.Find("a.next-page, a[rel=next]").Length() > 0}

	doc.Find(selector).Each(func(i int, item *goquery.Selection) {
		a := item.Find("h3 a").First()
		href, ok := a.Attr("href")
		title := generic.CleanText(a.Text())
		if !ok || strings.TrimSpace(href) == "" || title == "" {
			s.log.Debugf("%s: listing item %d lacks link or title, skipping\n", ID, i)
			return
		}

		l.Mangas = append(l.Mangas, model.Manga{
			Title:        title,
			URL:          s.relative(href),
			ThumbnailURL: generic.AbsAttr(item.Find("img").First(), base, "data-original", "data-src", "src"),
		})
	})

	return l, nil
}

func (s *XoxoComics) DetailsRequest(ctx context.Context, manga model.Manga) (*http.Request, error) {
	return s.get(ctx, manga.URL)
}

func (s *XoxoComics) ParseDetails(resp *http.Response, manga model.Manga) (model.Manga, error) {
	doc, err := generic.NewDocument(resp)
	if err != nil {
		return model.Manga{}, err
	}

	base := doc.Url.String()
	info := doc.Find("article#item-detail").First()

	title := generic.CleanText(info.Find("h1").First().Text())
	if title == "" {
		return model.Manga{}, errors.New("details page has no title")
	}

	var genres []string
	info.Find("li.kind p.col-xs-8 a").Each(func(_ int, a *goquery.Selection) {
		genres = append(genres, generic.CleanText(a.Text()))
	})

	author := generic.CleanText(info.Find("li.author p.col-xs-8").First().Text())

	return model.Manga{
		Title:        title,
		URL:          manga.URL,
		ThumbnailURL: generic.AbsAttr(info.Find("div.col-image img").First(), base, "data-original", "src"),
		Author:       author,
		Artist:       author,
		Description:  generic.CleanText(info.Find("div.detail-content p").Text()),
		Genres:       genres,
		Status:       model.ParseStatus(info.Find("li.status p.col-xs-8").First().Text()),
	}, nil
}

func (s *XoxoComics) ChapterListRequest(ctx context.Context, manga model.Manga) (*http.Request, error) {
	return s.get(ctx, manga.URL)
}

// ParseChapterList parses one page of the chapter table and follows the
// pagination's rel=next link.
func (s *XoxoComics) ParseChapterList(resp *http.Response, _ model.Manga) (providers.ChapterPage, error) {
	doc, err := generic.NewDocument(resp)
	if err != nil {
		return providers.ChapterPage{}, err
	}

	now := s.now()

	var out providers.ChapterPage
	doc.Find("div.list-chapter li.row:not(.heading)").Each(func(i int, row *goquery.Selection) {
		a := row.Find("a").First()
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			s.log.Debugf("%s: chapter row %d has no link, skipping\n", ID, i)
			return
		}

		name := generic.CleanText(a.Text())
		out.Chapters = append(out.Chapters, model.Chapter{
			Name:       name,
			Number:     generic.ChapterNumber(name),
			URL:        s.relative(href),
			UploadedAt: generic.ParseDate(dateLayout, row.Find("div.col-xs-3").First().Text(), now),
		})
	})

	if next := generic.AbsAttr(doc.Find("ul.pagination a[rel=next]").First(), doc.Url.String(), "href"); next != "" {
		req, err := http.NewRequestWithContext(resp.Request.Context(), http.MethodGet, next, nil)
		if err != nil {
			return providers.ChapterPage{}, err
		}
		out.Next = req
	}

	return out, nil
}

// PageListRequest asks for the single-page reader view.
func (s *XoxoComics) PageListRequest(ctx context.Context, chapter model.Chapter) (*http.Request, error) {
	return s.get(ctx, strings.TrimRight(chapter.URL, "/")+"/all")
}

func (s *XoxoComics) ParsePageList(resp *http.Response, _ model.Chapter) ([]model.Page, error) {
	doc, err := generic.NewDocument(resp)
	if err != nil {
		return nil, err
	}

	base := doc.Url.String()

	urls := generic.CollectImages(doc.Find("div.page-chapter > img"), base)
	if len(urls) == 0 {
		// some chapters build the reader in script
		urls = generic.ScriptImages(doc, base)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no page images found")
	}

	pages := make([]model.Page, len(urls))
	for i, u := range urls {
		pages[i] = model.Page{Index: i, ImageURL: u}
	}

	return pages, nil
}

func statusFilter() providers.Filter {
	return providers.Filter{
		Key:  "status",
		Name: "Status",
		Kind: providers.FilterSelect,
		Options: []providers.Option{
			{Name: "Any", Value: ""},
			{Name: "Ongoing", Value: "ongoing"},
			{Name: "Completed", Value: "completed"},
		},
	}
}

func (s *XoxoComics) Filters() providers.FilterList {
	s.mu.Lock()
	genres := s.genres
	s.mu.Unlock()

	fl := providers.FilterList{
		{Key: "note", Name: "Search query ignores Genre/Status filter", Kind: providers.FilterHeader},
		statusFilter(),
	}
	if len(genres) > 0 {
		fl = append(fl, providers.Filter{Key: "genre", Name: "Genre", Kind: providers.FilterSelect, Options: genres})
	}

	return fl
}

// FetchFilters reads the genre list from /comic-list.
func (s *XoxoComics) FetchFilters(ctx context.Context) (providers.FilterList, error) {
	req, err := s.get(ctx, "/comic-list")
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: genres: %w", ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: genres: HTTP %d", ID, resp.StatusCode)
	}

	doc, err := generic.NewDocument(resp)
	if err != nil {
		return nil, err
	}

	var genres []providers.Option
	doc.Find(".genres h2").Each(func(_ int, h *goquery.Selection) {
		if !strings.Contains(h.Text(), "Genres") {
			return
		}

		h.NextFiltered("ul.nav").Find("li a").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			href = strings.TrimRight(href, "/")
			key := strings.TrimSuffix(href[strings.LastIndex(href, "/")+1:], "-comic")

			name := generic.CleanText(a.Text())
			if key != "" && name != "" {
				genres = append(genres, providers.Option{Name: name, Value: key})
			}
		})
	})

	if len(genres) == 0 {
		return nil, fmt.Errorf("%s: no genres on the comic list", ID)
	}

	s.mu.Lock()
	s.genres = genres
	s.mu.Unlock()

	return s.Filters(), nil
}
