// Package mycomiclist scrapes mycomiclist.org, a plain HTML comic reader.
package mycomiclist

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
	ID             = "mycomiclist"
	DefaultBaseURL = "https://mycomiclist.org"

	listingSelector  = "div.manga-box"
	nextPageSelector = "a[rel=next]"
)

type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
	Log       providers.Logger
}

type MyComicList struct {
	base   string
	client *http.Client
	log    providers.Logger

	mu     sync.Mutex
	genres []providers.Option
}

func New(opts Options) *MyComicList {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.Log == nil {
		opts.Log = nop{}
	}

	return &MyComicList{
		base:   strings.TrimRight(opts.BaseURL, "/"),
		client: &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		log:    opts.Log,
	}
}

type nop struct{}

func (nop) Debugf(string, ...any) {}

func (s *MyComicList) ID() string                              { return ID }
func (s *MyComicList) Name() string                            { return "MyComicList" }
func (s *MyComicList) Lang() string                            { return "en" }
func (s *MyComicList) BaseURL() string                         { return s.base }
func (s *MyComicList) SupportsLatest() bool                    { return true }
func (s *MyComicList) Client(providers.Operation) *http.Client { return s.client }

func (s *MyComicList) get(ctx context.Context, path string) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, generic.Resolve(s.base+"/", path), nil)
}

// relative turns an href (possibly "https//host/..." or absolute) into the
// site-relative key stored on Manga and Chapter.
func (s *MyComicList) relative(href string) string {
	return generic.RelativePath(generic.Resolve(s.base+"/", href))
}

func (s *MyComicList) PopularRequest(ctx context.Context, page int) (*http.Request, error) {
	return s.get(ctx, "/popular-comic?page="+strconv.Itoa(page))
}

func (s *MyComicList) ParsePopular(resp *http.Response) (model.Listing, error) {
	return s.parseListing(resp)
}

func (s *MyComicList) LatestRequest(ctx context.Context, page int) (*http.Request, error) {
	return s.get(ctx, "/hot-comic?page="+strconv.Itoa(page))
}

func (s *MyComicList) ParseLatest(resp *http.Response) (model.Listing, error) {
	return s.parseListing(resp)
}

// SearchRequest searches by keyword; without one a selected genre lists
// that genre, and with neither it falls back to the popular list.
func (s *MyComicList) SearchRequest(ctx context.Context, page int, query string, filters providers.FilterList) (*http.Request, error) {
	p := strconv.Itoa(page)

	if q := strings.TrimSpace(query); q != "" {
		return s.get(ctx, "/comic-search?key="+url.QueryEscape(q)+"&page="+p)
	}
	if tag, ok := filters.Value("genre"); ok && tag != "" {
		return s.get(ctx, "/"+url.PathEscape(tag)+"-comic?page="+p)
	}

	return s.PopularRequest(ctx, page)
}

func (s *MyComicList) ParseSearch(resp *http.Response, _ string) (model.Listing, error) {
	return s.parseListing(resp)
}

func (s *MyComicList) parseListing(resp *http.Response) (model.Listing, error) {
	doc, err := generic.NewDocument(resp)
	if err != nil {
		return model.Listing{}, err
	}

	base := doc.Url.String()
	l := model.Listing{HasNextPage: doc.Find(nextPageSelector).Length() > 0}

	doc.Find(listingSelector).Each(func(i int, box *goquery.Selection) {
		href, ok := box.Find("a").First().Attr("href")
		title := generic.CleanText(box.Find("h3 a").First().Text())
		if !ok || strings.TrimSpace(href) == "" || title == "" {
			s.log.Debugf("%s: listing item %d lacks link or title, skipping\n", ID, i)
			return
		}

		l.Mangas = append(l.Mangas, model.Manga{
			Title:        title,
			URL:          s.relative(href),
			ThumbnailURL: generic.AbsAttr(box.Find("img.lazyload").First(), base, "data-src", "src"),
		})
	})

	return l, nil
}

func (s *MyComicList) DetailsRequest(ctx context.Context, manga model.Manga) (*http.Request, error) {
	return s.get(ctx, manga.URL)
}

// infoCell returns the table cell following the label cell, e.g. "Author:".
func infoCell(doc *goquery.Document, label string) *goquery.Selection {
	var out *goquery.Selection
	doc.Find("td").EachWithBreak(func(_ int, td *goquery.Selection) bool {
		if strings.Contains(td.Text(), label) && td.Next().Length() > 0 {
			out = td.Next()
			return false
		}
		return true
	})

	if out == nil {
		return doc.Selection.Slice(0, 0)
	}

	return out
}

func (s *MyComicList) ParseDetails(resp *http.Response, manga model.Manga) (model.Manga, error) {
	doc, err := generic.NewDocument(resp)
	if err != nil {
		return model.Manga{}, err
	}

	base := doc.Url.String()

	title := generic.CleanText(infoCell(doc, "Name:").Find("strong").First().Text())
	if title == "" {
		title = generic.CleanText(doc.Find("h1").First().Contents().Not("*").Text())
	}
	if title == "" {
		return model.Manga{}, errors.New("details page has no title")
	}

	author := generic.CleanText(infoCell(doc, "Author:").Text())

	var genres []string
	infoCell(doc, "Genres:").Find("a").Each(func(_ int, a *goquery.Selection) {
		genres = append(genres, generic.CleanText(a.Text()))
	})

	status := model.StatusUnknown
	switch strings.ToLower(generic.CleanText(infoCell(doc, "Status:").Find("a").First().Text())) {
	case "ongoing":
		status = model.StatusOngoing
	case "completed":
		status = model.StatusCompleted
	}

	return model.Manga{
		Title:        title,
		URL:          manga.URL,
		ThumbnailURL: generic.AbsAttr(doc.Find("div.manga-cover img").First(), base, "src", "data-src"),
		Author:       author,
		Artist:       author,
		Description:  generic.CleanText(doc.Find("div.manga-desc p.pdesc").First().Text()),
		Genres:       genres,
		Status:       status,
	}, nil
}

func (s *MyComicList) ChapterListRequest(ctx context.Context, manga model.Manga) (*http.Request, error) {
	return s.get(ctx, manga.URL)
}

func (s *MyComicList) ParseChapterList(resp *http.Response, _ model.Manga) (providers.ChapterPage, error) {
	doc, err := generic.NewDocument(resp)
	if err != nil {
		return providers.ChapterPage{}, err
	}

	var out providers.ChapterPage
	doc.Find("ul.basic-list li").Each(func(i int, li *goquery.Selection) {
		a := li.Find("a.ch-name").First()
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			s.log.Debugf("%s: chapter row %d has no link, skipping\n", ID, i)
			return
		}

		name := generic.CleanText(a.Text())
		out.Chapters = append(out.Chapters, model.Chapter{
			Name:   name,
			Number: generic.ChapterNumber(name),
			URL:    s.relative(href),
		})
	})

	return out, nil
}

func (s *MyComicList) PageListRequest(ctx context.Context, chapter model.Chapter) (*http.Request, error) {
	return s.get(ctx, chapter.URL)
}

func (s *MyComicList) ParsePageList(resp *http.Response, _ model.Chapter) ([]model.Page, error) {
	doc, err := generic.NewDocument(resp)
	if err != nil {
		return nil, err
	}

	base := doc.Url.String()

	var pages []model.Page
	doc.Find("img.chapter_img.lazyload").Each(func(_ int, img *goquery.Selection) {
		if src := generic.AbsAttr(img, base, "data-src"); src != "" {
			pages = append(pages, model.Page{Index: len(pages), ImageURL: src})
		}
	})

	if len(pages) == 0 {
		return nil, fmt.Errorf("no page images found")
	}

	return pages, nil
}

func (s *MyComicList) Filters() providers.FilterList {
	s.mu.Lock()
	genres := s.genres
	s.mu.Unlock()

	if len(genres) == 0 {
		return providers.FilterList{
			{Key: "note", Name: "Genres load from the site; a keyword search ignores them", Kind: providers.FilterHeader},
		}
	}

	return providers.FilterList{genreFilter(genres)}
}

func genreFilter(genres []providers.Option) providers.Filter {
	return providers.Filter{Key: "genre", Name: "Genre", Kind: providers.FilterSelect, Options: genres}
}

// FetchFilters reads the genre list from the home page.
func (s *MyComicList) FetchFilters(ctx context.Context) (providers.FilterList, error) {
	req, err := s.get(ctx, "/")
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
	doc.Find("div.cr-anime-box.genre-box a.genre-name").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		key := strings.TrimSuffix(href[strings.LastIndex(href, "/")+1:], "-comic")

		name := generic.CleanText(a.Text())
		if key != "" && name != "" {
			genres = append(genres, providers.Option{Name: name, Value: key})
		}
	})

	if len(genres) == 0 {
		return nil, fmt.Errorf("%s: no genres on the home page", ID)
	}

	s.mu.Lock()
	s.genres = genres
	s.mu.Unlock()

	return providers.FilterList{genreFilter(genres)}, nil
}
