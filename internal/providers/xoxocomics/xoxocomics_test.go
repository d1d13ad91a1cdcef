package xoxocomics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/mangaext/internal/model"
	"github.com/brogergvhs/mangaext/internal/providers"
)

const hotPage = `<html><body><div class="items">
  <div class="item"><div class="image"><img data-original="/covers/a.jpg" src="/placeholder.gif"></div><h3><a href="/comic/alpha">Alpha</a></h3></div>
  <div class="item"><h3><a href="https://xoxocomic.com/comic/beta">Beta</a></h3></div>
  <div class="item"><h3>No link</h3></div>
</div><a class="next-page" href="?page=2">2</a></body></html>`

const updatePage = `<html><body><ul>
  <li class="row"><img data-original="https://cdn.example/g.jpg"><h3><a href="/comic/gamma">Gamma</a></h3></li>
</ul></body></html>`

const detailsPage1 = `<html><body>
<article id="item-detail">
  <h1>Alpha</h1>
  <div class="col-image"><img src="/covers/alpha.jpg"></div>
  <ul>
    <li class="author"><p class="col-xs-4">Author</p><p class="col-xs-8">Jane Doe</p></li>
    <li class="status"><p class="col-xs-4">Status</p><p class="col-xs-8">Completed</p></li>
    <li class="kind"><p class="col-xs-4">Genres</p><p class="col-xs-8"><a>Marvel</a> - <a>Action</a></p></li>
  </ul>
  <div class="detail-content"><p>First   issue run.</p></div>
  <div class="list-chapter"><ul>
    <li class="row heading"><div class="col-xs-9">Chapter</div><div class="col-xs-3">Updated</div></li>
    <li class="row"><div class="col-xs-9 chapter"><a href="/comic/alpha/issue-3/123">Alpha Issue #3</a></div><div class="col-xs-3">03/15/2024</div></li>
    <li class="row"><div class="col-xs-9 chapter"><a href="/comic/alpha/issue-2/122">Alpha Issue #2</a></div><div class="col-xs-3">garbage</div></li>
  </ul></div>
  <ul class="pagination"><li><a rel="next" href="/comic/alpha?page=2">Next</a></li></ul>
</article></body></html>`

const detailsPage2 = `<html><body><article id="item-detail"><h1>Alpha</h1>
  <div class="list-chapter"><ul>
    <li class="row"><div class="col-xs-9 chapter"><a href="/comic/alpha/issue-1/121">Alpha Issue #1</a></div><div class="col-xs-3">01/02/2024</div></li>
  </ul></div>
  <ul class="pagination"><li><a href="/comic/alpha?page=1">1</a></li></ul>
</article></body></html>`

const readerPage = `<html><body><div class="page-chapter"><img data-original="https://img.example/alpha/1.jpg" src="/load.gif"></div>
<div class="page-chapter"><img data-original="https://img.example/alpha/2.jpg"></div>
<div class="page-chapter"><img data-original="https://img.example/alpha/1.jpg"></div></body></html>`

const scriptReaderPage = `<html><body><script>var pages = ["https://img.example/beta/01.png","https://img.example/beta/02.png"];</script></body></html>`

const comicListPage = `<html><body><div class="genres">
  <h2>Publishers</h2><ul class="nav"><li><a href="/marvel-comic">Marvel</a></li></ul>
  <h2>Genres</h2><ul class="nav"><li><a href="https://xoxocomic.com/action-comic">Action</a></li><li><a href="/sci-fi-comic/">Sci-Fi</a></li></ul>
</div></body></html>`

type requestLog struct {
	mu   sync.Mutex
	uris []string
}

func (l *requestLog) add(uri string) {
	l.mu.Lock()
	l.uris = append(l.uris, uri)
	l.mu.Unlock()
}

func (l *requestLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.uris...)
}

func newSource(t *testing.T) (*XoxoComics, *requestLog) {
	t.Helper()

	seen := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.add(r.URL.RequestURI())

		var body string
		switch r.URL.Path {
		case "/comic-update":
			body = updatePage
		case "/comic/alpha":
			body = detailsPage1
			if r.URL.Query().Get("page") == "2" {
				body = detailsPage2
			}
		case "/comic/alpha/issue-3/123/all":
			body = readerPage
		case "/comic/beta/issue-1/1/all":
			body = scriptReaderPage
		case "/comic-list":
			body = comicListPage
		default:
			body = hotPage
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	return New(Options{
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
		Now:     func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) },
	}), seen
}

func TestPopular(t *testing.T) {
	src, seen := newSource(t)

	l, err := providers.NewRunner(nil).Popular(context.Background(), src, 1)
	require.NoError(t, err)

	assert.True(t, l.HasNextPage)
	require.Len(t, l.Mangas, 2)
	assert.Equal(t, "/comic/alpha", l.Mangas[0].URL)
	assert.Equal(t, src.BaseURL()+"/covers/a.jpg", l.Mangas[0].ThumbnailURL)
	assert.Equal(t, "/comic/beta", l.Mangas[1].URL)
	assert.Equal(t, []string{"/hot-comic?page=1"}, seen.all())
}

func TestLatest(t *testing.T) {
	src, seen := newSource(t)

	l, err := providers.NewRunner(nil).Latest(context.Background(), src, 2)
	require.NoError(t, err)

	assert.False(t, l.HasNextPage)
	require.Len(t, l.Mangas, 1)
	assert.Equal(t, "Gamma", l.Mangas[0].Title)
	assert.Equal(t, "https://cdn.example/g.jpg", l.Mangas[0].ThumbnailURL)
	assert.Equal(t, []string{"/comic-update?page=2"}, seen.all())
}

func TestSearchPaths(t *testing.T) {
	src, seen := newSource(t)
	ctx := context.Background()
	r := providers.NewRunner(nil)

	fl := r.Filters(ctx, src)
	both, err := fl.Apply([]string{"genre=Sci-Fi", "status=Ongoing"})
	require.NoError(t, err)
	genreOnly, err := fl.Apply([]string{"genre=action"})
	require.NoError(t, err)
	statusOnly, err := fl.Apply([]string{"status=completed"})
	require.NoError(t, err)

	for _, c := range []struct {
		query   string
		filters providers.FilterList
	}{
		{"spider man", both},
		{"", both},
		{"", genreOnly},
		{"", statusOnly},
		{"", fl},
	} {
		_, err := r.Search(ctx, src, 2, c.query, c.filters)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{
		"/comic-list",
		"/search-comic?keyword=spider+man&page=2",
		"/sci-fi-comic/ongoing?page=2&sort=0",
		"/action-comic?page=2&sort=0",
		"/comic/completed?page=2&sort=0",
		"/hot-comic?page=2",
	}, seen.all())
}

func TestDetails(t *testing.T) {
	src, _ := newSource(t)

	m, err := providers.NewRunner(nil).Details(context.Background(), src, model.Manga{URL: "/comic/alpha"})
	require.NoError(t, err)

	assert.Equal(t, model.Manga{
		Title:        "Alpha",
		URL:          "/comic/alpha",
		ThumbnailURL: src.BaseURL() + "/covers/alpha.jpg",
		Author:       "Jane Doe",
		Artist:       "Jane Doe",
		Description:  "First issue run.",
		Genres:       []string{"Marvel", "Action"},
		Status:       model.StatusCompleted,
	}, m)
}

func TestChaptersFollowPagination(t *testing.T) {
	src, seen := newSource(t)

	chs, err := providers.NewRunner(nil).Chapters(context.Background(), src, model.Manga{URL: "/comic/alpha"})
	require.NoError(t, err)

	require.Len(t, chs, 3)
	assert.Equal(t, model.Chapter{
		Name:       "Alpha Issue #3",
		Number:     3,
		URL:        "/comic/alpha/issue-3/123",
		UploadedAt: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC).UnixMilli(),
	}, chs[0])
	assert.Zero(t, chs[1].UploadedAt)
	assert.Equal(t, 1.0, chs[2].Number)

	assert.Equal(t, []string{"/comic/alpha", "/comic/alpha?page=2"}, seen.all())
}

func TestPages(t *testing.T) {
	src, _ := newSource(t)
	r := providers.NewRunner(nil)

	pages, err := r.Pages(context.Background(), src, model.Chapter{URL: "/comic/alpha/issue-3/123"})
	require.NoError(t, err)
	assert.Equal(t, []model.Page{
		{Index: 0, ImageURL: "https://img.example/alpha/1.jpg"},
		{Index: 1, ImageURL: "https://img.example/alpha/2.jpg"},
	}, pages)

	pages, err = r.Pages(context.Background(), src, model.Chapter{URL: "/comic/beta/issue-1/1/"})
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "https://img.example/beta/02.png", pages[1].ImageURL)
}

func TestFetchFilters(t *testing.T) {
	src, _ := newSource(t)

	_, ok := src.Filters().Get("genre")
	assert.False(t, ok)

	fl, err := src.FetchFilters(context.Background())
	require.NoError(t, err)

	g, ok := fl.Get("genre")
	require.True(t, ok)
	assert.Equal(t, []providers.Option{{Name: "Action", Value: "action"}, {Name: "Sci-Fi", Value: "sci-fi"}}, g.Options)
}
