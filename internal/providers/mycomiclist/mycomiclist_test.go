package mycomiclist

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/mangaext/internal/model"
	"github.com/brogergvhs/mangaext/internal/providers"
)

const listingPage = `<html><body>
<div class="manga-box">
  <a href="https//mycomiclist.org/comic/batman"><img class="lazyload" data-src="/covers/batman.jpg"></a>
  <h3><a href="/comic/batman">  Batman  </a></h3>
</div>
<div class="manga-box">
  <a href="/comic/saga"><img class="lazyload" data-src="https://cdn.example/saga.jpg"></a>
  <h3><a href="/comic/saga">Saga</a></h3>
</div>
<div class="manga-box"><h3><a>No link</a></h3></div>
<a rel="next" href="?page=2">Next</a>
</body></html>`

const detailsPage = `<html><body>
<h1>Batman <small>comic</small></h1>
<div class="manga-cover"><img src="/covers/batman-big.jpg"></div>
<table>
  <tr><td>Name:</td><td><strong>Batman (2016)</strong></td></tr>
  <tr><td>Author:</td><td> Tom King </td></tr>
  <tr><td>Genres:</td><td><a>Action</a>, <a>Superhero</a></td></tr>
  <tr><td>Status:</td><td><a>Completed</a></td></tr>
</table>
<div class="manga-desc"><p class="pdesc">The dark   knight.</p></div>
<ul class="basic-list">
  <li><a class="ch-name" href="/batman/issue-2">Batman Issue #2</a></li>
  <li><a class="ch-name" href="https//mycomiclist.org/batman/issue-1.5">Batman Issue #1.5</a></li>
  <li><span>no link</span></li>
</ul>
</body></html>`

const chapterPage = `<html><body>
<img class="chapter_img lazyload" data-src="https://img.example/1.jpg">
<img class="chapter_img lazyload" data-src="">
<img class="chapter_img lazyload" data-src="/2.jpg">
<img class="banner" src="/ad.jpg">
</body></html>`

const homePage = `<html><body>
<div class="cr-anime-box genre-box">
  <a class="genre-name" href="https://mycomiclist.org/marvel-comic">Marvel</a>
  <a class="genre-name" href="/dc-comics-comic">DC Comics</a>
</div>
</body></html>`

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

func newSource(t *testing.T) (*MyComicList, *requestLog) {
	t.Helper()

	seen := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.add(r.URL.RequestURI())

		switch {
		case r.URL.Path == "/":
			_, _ = io.WriteString(w, homePage)
		case r.URL.Path == "/comic/batman":
			_, _ = io.WriteString(w, detailsPage)
		case strings.HasPrefix(r.URL.Path, "/batman/"):
			_, _ = io.WriteString(w, chapterPage)
		default:
			_, _ = io.WriteString(w, listingPage)
		}
	}))
	t.Cleanup(srv.Close)

	return New(Options{BaseURL: srv.URL, Timeout: 5 * time.Second}), seen
}

func TestListings(t *testing.T) {
	src, seen := newSource(t)
	r := providers.NewRunner(nil)

	l, err := r.Popular(context.Background(), src, 1)
	require.NoError(t, err)

	assert.True(t, l.HasNextPage)
	require.Len(t, l.Mangas, 2)
	assert.Equal(t, "Batman", l.Mangas[0].Title)
	assert.Equal(t, "/comic/batman", l.Mangas[0].URL)
	assert.Equal(t, src.BaseURL()+"/covers/batman.jpg", l.Mangas[0].ThumbnailURL)
	assert.Equal(t, "https://cdn.example/saga.jpg", l.Mangas[1].ThumbnailURL)

	_, err = r.Latest(context.Background(), src, 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"/popular-comic?page=1", "/hot-comic?page=3"}, seen.all())
}

func TestSearchRoutes(t *testing.T) {
	src, seen := newSource(t)
	r := providers.NewRunner(nil)
	ctx := context.Background()

	fl, err := r.Filters(ctx, src).Apply([]string{"genre=DC Comics"})
	require.NoError(t, err)

	_, err = r.Search(ctx, src, 2, " bat man ", fl)
	require.NoError(t, err)
	_, err = r.Search(ctx, src, 2, "", fl)
	require.NoError(t, err)
	_, err = r.Search(ctx, src, 1, "", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/",
		"/comic-search?key=bat+man&page=2",
		"/dc-comics-comic?page=2",
		"/popular-comic?page=1",
	}, seen.all())
}

func TestDetails(t *testing.T) {
	src, _ := newSource(t)

	m, err := providers.NewRunner(nil).Details(context.Background(), src, model.Manga{URL: "/comic/batman"})
	require.NoError(t, err)

	assert.Equal(t, model.Manga{
		Title:        "Batman (2016)",
		URL:          "/comic/batman",
		ThumbnailURL: src.BaseURL() + "/covers/batman-big.jpg",
		Author:       "Tom King",
		Artist:       "Tom King",
		Description:  "The dark knight.",
		Genres:       []string{"Action", "Superhero"},
		Status:       model.StatusCompleted,
	}, m)
}

func TestChapters(t *testing.T) {
	src, _ := newSource(t)

	chs, err := providers.NewRunner(nil).Chapters(context.Background(), src, model.Manga{URL: "/comic/batman"})
	require.NoError(t, err)

	require.Len(t, chs, 2)
	assert.Equal(t, model.Chapter{Name: "Batman Issue #2", Number: 2, URL: "/batman/issue-2"}, chs[0])
	assert.Equal(t, 1.5, chs[1].Number)
	assert.Equal(t, "/batman/issue-1.5", chs[1].URL)
}

func TestPages(t *testing.T) {
	src, _ := newSource(t)

	pages, err := providers.NewRunner(nil).Pages(context.Background(), src, model.Chapter{URL: "/batman/issue-2"})
	require.NoError(t, err)

	assert.Equal(t, []model.Page{
		{Index: 0, ImageURL: "https://img.example/1.jpg"},
		{Index: 1, ImageURL: src.BaseURL() + "/2.jpg"},
	}, pages)
}

func TestFilters(t *testing.T) {
	src, _ := newSource(t)

	_, ok := src.Filters().Get("genre")
	assert.False(t, ok)

	fl, err := src.FetchFilters(context.Background())
	require.NoError(t, err)

	g, ok := fl.Get("genre")
	require.True(t, ok)
	assert.Equal(t, []providers.Option{{Name: "Marvel", Value: "marvel"}, {Name: "DC Comics", Value: "dc-comics"}}, g.Options)

	// the static list now carries the fetched genres
	_, ok = src.Filters().Get("genre")
	assert.True(t, ok)
}
