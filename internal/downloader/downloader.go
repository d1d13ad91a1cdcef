package downloader

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/brogergvhs/mangaext/internal/model"
)

// Progress receives per-chapter progress. *ui.ChapterBar implements it.
type Progress interface {
	Update(done, total int, bytes int64)
	MarkDone()
}

type nopProgress struct{}

func (nopProgress) Update(int, int, int64) {}
func (nopProgress) MarkDone()              {}

type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type Options struct {
	SkipBroken  bool
	KeepFolders bool
	// AllowExt limits downloads to these extensions ("jpg", "webp"). Empty
	// means everything except gif, which sites use for ads and spacers.
	AllowExt []string
	Attempts int
	Backoff  time.Duration
	Timeout  time.Duration
	Log      Logger
}

type Downloader struct {
	client *http.Client
	opts   Options
}

func New(c *http.Client, opts Options) *Downloader {
	if opts.Attempts < 1 {
		opts.Attempts = 3
	}
	if opts.Backoff == 0 {
		opts.Backoff = time.Second
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	allow := make([]string, 0, len(opts.AllowExt))
	for _, e := range opts.AllowExt {
		allow = append(allow, strings.TrimPrefix(strings.ToLower(e), "."))
	}
	opts.AllowExt = allow

	return &Downloader{client: c, opts: opts}
}

type chapterState struct {
	mu          sync.Mutex
	doneImages  int
	totalImages int
	doneBytes   int64
}

func (cs *chapterState) advance(ph Progress, images int, bytes int64) {
	cs.mu.Lock()
	cs.doneImages += images
	cs.doneBytes += bytes
	ph.Update(cs.doneImages, cs.totalImages, cs.doneBytes)
	cs.mu.Unlock()
}

// DownloadPages saves every image page into folder as page_NNN.ext and
// returns the written files in page order. Text pages and filtered
// extensions are skipped.
func (d *Downloader) DownloadPages(
	ctx context.Context,
	pages []model.Page,
	folder string,
	referer string,
	maxParallel int,
	ph Progress,
) ([]string, int64, error) {

	if ph == nil {
		ph = nopProgress{}
	}

	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, 0, err
	}

	total := len(pages)
	if maxParallel < 1 {
		maxParallel = 1
	}
	if maxParallel > total && total > 0 {
		maxParallel = total
	}

	cs := &chapterState{totalImages: total}
	ph.Update(0, total, 0)

	written := make([]string, total)
	var errsMu sync.Mutex
	errs := make([]error, 0, 4)

	jobs := make(chan int)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for i := range jobs {
			p := pages[i]

			if p.ImageURL == "" {
				d.debugf("page %d has no image, skipping\n", i+1)
				cs.advance(ph, 1, 0)
				continue
			}

			ext := urlExt(p.ImageURL)
			if !d.allowed(ext) {
				d.debugf("page %d: extension %q filtered\n", i+1, ext)
				cs.advance(ph, 1, 0)
				continue
			}

			base := filepath.Join(folder, fmt.Sprintf("page_%03d", i+1))
			var last int64

			progress := func(done int64) {
				delta := done - last
				if delta <= 0 {
					return
				}

				last = done
				cs.advance(ph, 0, delta)
			}

			file, err := d.downloadWithRetry(ctx, p.ImageURL, base, ext, referer, progress)
			if err != nil {
				errsMu.Lock()
				errs = append(errs, fmt.Errorf("image %d: %v", i+1, err))
				errsMu.Unlock()

				if d.opts.Log != nil {
					d.opts.Log.Warnf("image %d (%s): %v\n", i+1, p.ImageURL, err)
				}
				cs.advance(ph, 1, 0)
				continue
			}

			written[i] = file
			cs.advance(ph, 1, 0)
		}
	}

	wg.Add(maxParallel)
	for w := 0; w < maxParallel; w++ {
		go worker()
	}

	collect := func() []string {
		return slices.DeleteFunc(written, func(s string) bool { return s == "" })
	}

	for i := range pages {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			ph.MarkDone()
			return collect(), cs.doneBytes, ctx.Err()
		case jobs <- i:
		}
	}

	close(jobs)
	wg.Wait()
	ph.MarkDone()

	files := collect()
	if len(errs) > 0 && !d.opts.SkipBroken {
		return files, cs.doneBytes, fmt.Errorf("failed %d/%d images (use --skip-broken to continue)", len(errs), total)
	}
	if len(files) == 0 && total > 0 {
		return nil, cs.doneBytes, fmt.Errorf("no images downloaded")
	}

	return files, cs.doneBytes, nil
}

func (d *Downloader) allowed(ext string) bool {
	ext = strings.TrimPrefix(ext, ".")
	if len(d.opts.AllowExt) == 0 {
		return ext != "gif"
	}
	if ext == "" {
		return true
	}

	return slices.Contains(d.opts.AllowExt, ext)
}

func (d *Downloader) debugf(format string, args ...any) {
	if d.opts.Log != nil {
		d.opts.Log.Debugf(format, args...)
	}
}

func (d *Downloader) downloadWithRetry(
	ctx context.Context,
	u string,
	base, ext string,
	referer string,
	progress func(done int64),
) (string, error) {
	var err error
	for attempt := 1; attempt <= d.opts.Attempts; attempt++ {
		var file string
		file, err = d.download(ctx, u, base, ext, referer, progress)
		if err == nil {
			return file, nil
		}
		if attempt == d.opts.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * d.opts.Backoff):
		}
	}

	return "", err
}

func (d *Downloader) download(
	ctx context.Context,
	u, base, ext, referer string,
	progress func(done int64),
) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}

	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mt, _, _ := mime.ParseMediaType(ct)
		if !strings.HasPrefix(mt, "image/") {
			return "", fmt.Errorf("unexpected MIME: %s", ct)
		}
		if ext == "" {
			ext = "." + strings.TrimPrefix(mt, "image/")
		}
	}
	if ext == "" {
		ext = ".jpg"
	}

	output := base + ext
	f, err := os.Create(output)
	if err != nil {
		return "", err
	}

	written, err := io.Copy(f, &progressReader{r: resp.Body, fn: progress})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(output)
		return "", err
	}

	if progress != nil && resp.ContentLength > 0 && written < resp.ContentLength {
		progress(resp.ContentLength)
	}

	return output, nil
}

// urlExt is the lowercased extension of the URL path, query ignored.
func urlExt(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}

	ext := strings.ToLower(path.Ext(p))
	if len(ext) > 6 {
		return ""
	}

	return ext
}
