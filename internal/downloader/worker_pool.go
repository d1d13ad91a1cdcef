package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/brogergvhs/mangaext/internal/chapters"
	"github.com/brogergvhs/mangaext/internal/model"
	"github.com/brogergvhs/mangaext/internal/ui"
	"github.com/brogergvhs/mangaext/internal/util"
)

type progressReader struct {
	r     io.Reader
	fn    func(done int64)
	total int64
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.total += int64(n)
		if p.fn != nil {
			p.fn(p.total)
		}
	}

	return n, err
}

// PageLister resolves the pages of one chapter, usually Runner.Pages bound
// to a source.
type PageLister func(ctx context.Context, ch model.Chapter) ([]model.Page, error)

type Batch struct {
	Output         string
	Referer        string
	ImageWorkers   int
	ChapterWorkers int
	// NewProgress is called once per chapter that has pages; nil disables
	// progress output.
	NewProgress func(ch chapters.Chapter) Progress
	Stats       *ui.Stats
}

// Run downloads every chapter into a CBZ under b.Output, at most
// ChapterWorkers at a time. A failing chapter does not stop the others;
// all failures are joined into the returned error.
func (d *Downloader) Run(ctx context.Context, chs []chapters.Chapter, pages PageLister, b Batch) error {
	if b.Stats == nil {
		b.Stats = &ui.Stats{}
	}
	if err := os.MkdirAll(b.Output, 0755); err != nil {
		return fmt.Errorf("cannot create output folder: %w", err)
	}

	var g errgroup.Group
	g.SetLimit(max(1, b.ChapterWorkers))

	var mu sync.Mutex
	var errs []error

	for _, ch := range chs {
		g.Go(func() error {
			if err := d.chapter(ctx, ch, pages, b); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("chapter %s: %w", ch.Label(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func (d *Downloader) chapter(ctx context.Context, ch chapters.Chapter, pages PageLister, b Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	list, err := pages(ctx, ch.Chapter)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return fmt.Errorf("no pages")
	}

	var handle Progress = nopProgress{}
	if b.NewProgress != nil {
		handle = b.NewProgress(ch)
	}

	tmpFolder := filepath.Join(b.Output, ch.FolderName())
	cbzOut := ch.OutputCBZPath(b.Output)

	files, bytes, err := d.DownloadPages(ctx, list, tmpFolder, b.Referer, max(1, b.ImageWorkers), handle)
	if err != nil {
		_ = os.RemoveAll(tmpFolder)
		return err
	}

	if err := util.CreateCBZ(files, cbzOut); err != nil {
		_ = os.RemoveAll(tmpFolder)
		return err
	}

	if !d.opts.KeepFolders {
		util.CleanupFolder(tmpFolder)
	}

	b.Stats.TotalChapters.Add(1)
	b.Stats.TotalImages.Add(int64(len(files)))
	b.Stats.TotalBytes.Add(bytes)

	return nil
}
