package ui

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/brogergvhs/mangaext/internal/chapters"
)

// ReadProgress draws a read batch: one line counting finished chapters of
// the series, then one bar of pages per chapter.
type ReadProgress struct {
	p     *mpb.Progress
	batch *mpb.Bar
}

// NewReadProgress draws to w, or stdout when w is nil. count is the number
// of chapters selected.
func NewReadProgress(w io.Writer, series string, count int) *ReadProgress {
	if w == nil {
		w = os.Stdout
	}

	p := mpb.New(
		mpb.WithWidth(52),
		mpb.WithOutput(w),
		mpb.WithRefreshRate(120*time.Millisecond),
	)

	if series == "" {
		series = "Chapters"
	}

	batch := p.New(
		int64(count),
		mpb.BarStyle().Rbound("]"),
		mpb.PrependDecorators(decor.Name(series+"  ")),
		mpb.AppendDecorators(
			decor.CountersNoUnit("%d/%d chapters", decor.WCSyncWidth),
			decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 6}),
		),
	)

	return &ReadProgress{p: p, batch: batch}
}

// Close waits for the bars to finish. A chapter whose page list failed
// never gets a bar or ticks the batch line, so an unfinished batch line is
// aborted in place.
func (rp *ReadProgress) Close() {
	if !rp.batch.Completed() {
		rp.batch.Abort(false)
	}
	rp.p.Wait()
}

// Chapter adds the page bar of ch. Its MarkDone also ticks the batch line.
func (rp *ReadProgress) Chapter(ch chapters.Chapter) *ChapterBar {
	cb := &ChapterBar{batch: rp.batch, start: time.Now()}

	cb.bar = rp.p.New(
		0,
		mpb.BarStyle().Rbound("]"),
		mpb.PrependDecorators(
			decor.Name("  Ch."+ch.Label()+"  "),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncWidth),
			decor.CountersNoUnit(" | %d/%d pages", decor.WCSyncWidth),
			decor.Any(func(decor.Statistics) string {
				return " | " + HumanBytes(cb.bytes.Load())
			}),
			decor.Any(func(decor.Statistics) string {
				return fmt.Sprintf(" | %ds", int(cb.elapsed().Seconds()))
			}),
		),
	)

	return cb
}

// ChapterBar follows the pages of one chapter. It satisfies
// downloader.Progress.
type ChapterBar struct {
	bar   *mpb.Bar
	batch *mpb.Bar

	total atomic.Int64
	bytes atomic.Int64

	start time.Time
	took  atomic.Int64
	final atomic.Bool
}

func (cb *ChapterBar) elapsed() time.Duration {
	if cb.final.Load() {
		return time.Duration(cb.took.Load())
	}
	return time.Since(cb.start)
}

func (cb *ChapterBar) Update(done, total int, bytes int64) {
	if cb.final.Load() {
		return
	}

	if total > 0 {
		cb.total.Store(int64(total))
		cb.bar.SetTotal(int64(total), false)
	}

	cb.bytes.Store(bytes)
	cb.bar.SetCurrent(int64(done))
}

// MarkDone completes the bar at its page count. Later updates are ignored.
func (cb *ChapterBar) MarkDone() {
	if cb.final.Swap(true) {
		return
	}

	cb.took.Store(int64(time.Since(cb.start)))
	cb.bar.SetCurrent(cb.total.Load())
	cb.bar.SetTotal(cb.total.Load(), true)
	cb.batch.Increment()
}
