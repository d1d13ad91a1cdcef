package downloader

import (
	"archive/zip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/mangaext/internal/chapters"
	"github.com/brogergvhs/mangaext/internal/model"
	"github.com/brogergvhs/mangaext/internal/ui"
)

type imageServer struct {
	*httptest.Server
	mu       sync.Mutex
	referers []string
}

func newImageServer(t *testing.T) *imageServer {
	s := &imageServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.referers = append(s.referers, r.Header.Get("Referer"))
		s.mu.Unlock()

		switch r.URL.Path {
		case "/1.jpg", "/ad.gif":
			w.Header().Set("Content-Type", "image/jpeg")
		case "/2.png":
			w.Header().Set("Content-Type", "image/png")
		case "/noext":
			w.Header().Set("Content-Type", "image/webp")
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
		default:
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("data:" + r.URL.Path))
	}))
	t.Cleanup(s.Close)

	return s
}

func (s *imageServer) seenReferers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.referers...)
}

func fastOptions() Options {
	return Options{Attempts: 2, Backoff: time.Millisecond, Timeout: 5 * time.Second}
}

type countingProgress struct {
	mu    sync.Mutex
	done  int
	total int
	final bool
}

func (p *countingProgress) Update(done, total int, _ int64) {
	p.mu.Lock()
	p.done, p.total = done, total
	p.mu.Unlock()
}

func (p *countingProgress) MarkDone() {
	p.mu.Lock()
	p.final = true
	p.mu.Unlock()
}

func TestDownloadPagesOrderAndSkips(t *testing.T) {
	srv := newImageServer(t)
	dir := t.TempDir()

	pages := []model.Page{
		{Index: 0, ImageURL: srv.URL + "/1.jpg?token=x"},
		{Index: 1, ImageURL: srv.URL + "/2.png"},
		{Index: 2, ImageURL: srv.URL + "/ad.gif"},
		{Index: 3, Text: "author note"},
		{Index: 4, ImageURL: srv.URL + "/noext"},
	}

	ph := &countingProgress{}
	d := New(srv.Client(), fastOptions())
	files, n, err := d.DownloadPages(context.Background(), pages, dir, "https://site.example/", 3, ph)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "page_001.jpg"),
		filepath.Join(dir, "page_002.png"),
		filepath.Join(dir, "page_005.webp"),
	}, files)
	assert.Positive(t, n)

	b, err := os.ReadFile(files[1])
	require.NoError(t, err)
	assert.Equal(t, "data:/2.png", string(b))

	for _, ref := range srv.seenReferers() {
		assert.Equal(t, "https://site.example/", ref)
	}
	assert.Len(t, srv.seenReferers(), 3)

	assert.Equal(t, 5, ph.done)
	assert.Equal(t, 5, ph.total)
	assert.True(t, ph.final)
}

func TestDownloadPagesAllowExt(t *testing.T) {
	srv := newImageServer(t)

	opts := fastOptions()
	opts.AllowExt = []string{".PNG", "gif"}
	d := New(srv.Client(), opts)

	files, _, err := d.DownloadPages(context.Background(), []model.Page{
		{ImageURL: srv.URL + "/1.jpg"},
		{ImageURL: srv.URL + "/2.png"},
		{ImageURL: srv.URL + "/ad.gif"},
	}, t.TempDir(), "", 1, nil)
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Equal(t, "page_002.png", filepath.Base(files[0]))
	assert.Equal(t, "page_003.gif", filepath.Base(files[1]))
}

func TestDownloadPagesBroken(t *testing.T) {
	srv := newImageServer(t)
	pages := []model.Page{
		{ImageURL: srv.URL + "/1.jpg"},
		{ImageURL: srv.URL + "/missing.jpg"},
		{ImageURL: srv.URL + "/page.html"},
	}

	d := New(srv.Client(), fastOptions())
	files, _, err := d.DownloadPages(context.Background(), pages, t.TempDir(), "", 2, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed 2/3 images")
	assert.Len(t, files, 1)

	opts := fastOptions()
	opts.SkipBroken = true
	d = New(srv.Client(), opts)
	files, _, err = d.DownloadPages(context.Background(), pages, t.TempDir(), "", 2, nil)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestDownloadPagesNothingUsable(t *testing.T) {
	d := New(http.DefaultClient, fastOptions())
	_, _, err := d.DownloadPages(context.Background(), []model.Page{{Text: "only text"}}, t.TempDir(), "", 1, nil)
	assert.Error(t, err)
}

func TestUrlExt(t *testing.T) {
	assert.Equal(t, ".jpg", urlExt("https://x/a/b.JPG?w=100"))
	assert.Equal(t, "", urlExt("https://x/a/b"))
	assert.Equal(t, "", urlExt("https://x/a/b.verylongext"))
}

func TestRunWritesCBZ(t *testing.T) {
	srv := newImageServer(t)
	out := t.TempDir()

	chs := chapters.Wrap("Test Series", []model.Chapter{
		{Name: "Chapter 2", Number: 2, URL: "/c/2"},
		{Name: "Chapter 1", Number: 1, URL: "/c/1"},
	})

	lister := func(_ context.Context, ch model.Chapter) ([]model.Page, error) {
		if ch.URL == "/c/2" {
			return nil, errors.New("boom")
		}
		return []model.Page{
			{ImageURL: srv.URL + "/1.jpg"},
			{ImageURL: srv.URL + "/2.png"},
		}, nil
	}

	stats := &ui.Stats{}
	d := New(srv.Client(), fastOptions())
	err := d.Run(context.Background(), chs, lister, Batch{
		Output:         out,
		ImageWorkers:   2,
		ChapterWorkers: 2,
		Stats:          stats,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chapter 2: boom")

	cbz := chs[1].OutputCBZPath(out)
	r, err := zip.OpenReader(cbz)
	require.NoError(t, err)
	defer r.Close()

	require.Len(t, r.File, 2)
	assert.Equal(t, "page_001.jpg", r.File[0].Name)
	assert.Equal(t, "page_002.png", r.File[1].Name)

	assert.NoDirExists(t, filepath.Join(out, chs[1].FolderName()))
	assert.EqualValues(t, 1, stats.TotalChapters.Load())
	assert.EqualValues(t, 2, stats.TotalImages.Load())
}

func TestRunKeepFolders(t *testing.T) {
	srv := newImageServer(t)
	out := t.TempDir()

	opts := fastOptions()
	opts.KeepFolders = true
	d := New(srv.Client(), opts)

	chs := chapters.Wrap("S", []model.Chapter{{Name: "Chapter 1", Number: 1, URL: "/c/1"}})
	err := d.Run(context.Background(), chs, func(context.Context, model.Chapter) ([]model.Page, error) {
		return []model.Page{{ImageURL: srv.URL + "/1.jpg"}}, nil
	}, Batch{Output: out})
	require.NoError(t, err)

	assert.FileExists(t, chs[0].OutputCBZPath(out))
	assert.DirExists(t, filepath.Join(out, chs[0].FolderName()))
}
