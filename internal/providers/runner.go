package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/brogergvhs/mangaext/internal/model"
	"github.com/brogergvhs/mangaext/internal/util"
)

// Runner drives a Source the way the reading app does: build the request,
// execute it with the source's client, hand the response to the parser.
type Runner struct {
	log      Logger
	attempts int
	backoff  time.Duration
}

type RunnerOption func(*Runner)

func WithRetry(attempts int, backoff time.Duration) RunnerOption {
	return func(r *Runner) {
		r.attempts = max(1, attempts)
		r.backoff = backoff
	}
}

func NewRunner(log Logger, opts ...RunnerOption) *Runner {
	if log == nil {
		log = nopLogger{}
	}

	r := &Runner{log: log, attempts: 1}
	for _, o := range opts {
		o(r)
	}

	return r
}

func (r *Runner) Popular(ctx context.Context, src Source, page int) (model.Listing, error) {
	req, err := src.PopularRequest(ctx, page)
	if err != nil {
		return model.Listing{}, err
	}

	return r.listing(ctx, src, OpPopular, req, src.ParsePopular)
}

func (r *Runner) Latest(ctx context.Context, src Source, page int) (model.Listing, error) {
	if !src.SupportsLatest() {
		return model.Listing{}, fmt.Errorf("%s: latest: %w", src.ID(), ErrUnsupported)
	}

	req, err := src.LatestRequest(ctx, page)
	if err != nil {
		return model.Listing{}, err
	}

	return r.listing(ctx, src, OpLatest, req, src.ParseLatest)
}

func (r *Runner) Search(ctx context.Context, src Source, page int, query string, filters FilterList) (model.Listing, error) {
	if f, ok := src.(SearchFetcher); ok {
		r.log.Debugf("%s: search %q via fetcher\n", src.ID(), query)
		return f.FetchSearch(ctx, page, query, filters)
	}

	req, err := src.SearchRequest(ctx, page, query, filters)
	if err != nil {
		return model.Listing{}, err
	}

	return r.listing(ctx, src, OpSearch, req, func(resp *http.Response) (model.Listing, error) {
		return src.ParseSearch(resp, query)
	})
}

func (r *Runner) Details(ctx context.Context, src Source, manga model.Manga) (model.Manga, error) {
	req, err := src.DetailsRequest(ctx, manga)
	if err != nil {
		return model.Manga{}, err
	}

	resp, err := r.Do(ctx, src, OpDetails, req)
	if err != nil {
		return model.Manga{}, err
	}
	defer closeBody(resp)

	out, err := src.ParseDetails(resp, manga)
	if err != nil {
		return model.Manga{}, asParseError(OpDetails, err)
	}

	if out.URL == "" {
		out.URL = manga.URL
	}
	out.ApplyFallbacks()

	return out, nil
}

// Chapters follows ChapterPage.Next until the source stops returning one.
// A next request that was already visited, or a page identical to the
// previous one, ends the walk so malformed pagination cannot loop forever.
func (r *Runner) Chapters(ctx context.Context, src Source, manga model.Manga) ([]model.Chapter, error) {
	req, err := src.ChapterListRequest(ctx, manga)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{}
	var all, prev []model.Chapter

	for pageNo := 1; req != nil; pageNo++ {
		key := req.Method + " " + req.URL.String()
		if visited[key] {
			r.log.Debugf("%s: chapter page %s already visited, stopping\n", src.ID(), req.URL)
			break
		}
		visited[key] = true

		page, err := r.chapterPage(ctx, src, manga, req)
		if err != nil {
			return nil, err
		}

		if pageNo > 1 && sameChapters(prev, page.Chapters) {
			r.log.Debugf("%s: chapter page %d repeats page %d, stopping\n", src.ID(), pageNo, pageNo-1)
			break
		}

		r.log.Debugf("%s: chapter page %d: %d chapters\n", src.ID(), pageNo, len(page.Chapters))
		all = append(all, page.Chapters...)
		prev = page.Chapters

		req = page.Next
		if req != nil {
			req = req.WithContext(ctx)
		}
	}

	model.SortChapters(all)
	return all, nil
}

func (r *Runner) chapterPage(ctx context.Context, src Source, manga model.Manga, req *http.Request) (ChapterPage, error) {
	resp, err := r.Do(ctx, src, OpChapters, req)
	if err != nil {
		return ChapterPage{}, err
	}
	defer closeBody(resp)

	page, err := src.ParseChapterList(resp, manga)
	if err != nil {
		return ChapterPage{}, asParseError(OpChapters, err)
	}

	return page, nil
}

func (r *Runner) Pages(ctx context.Context, src Source, chapter model.Chapter) ([]model.Page, error) {
	req, err := src.PageListRequest(ctx, chapter)
	if err != nil {
		return nil, err
	}

	resp, err := r.Do(ctx, src, OpPages, req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	pages, err := src.ParsePageList(resp, chapter)
	if err != nil {
		return nil, asParseError(OpPages, err)
	}

	return model.IndexPages(pages), nil
}

// Filters returns the source's live filter list when it can fetch one and
// falls back to the static list when it cannot.
func (r *Runner) Filters(ctx context.Context, src Source) FilterList {
	f, ok := src.(FilterFetcher)
	if !ok {
		return src.Filters()
	}

	fl, err := f.FetchFilters(ctx)
	if err != nil || len(fl) == 0 {
		r.log.Debugf("%s: live filters unavailable (%v), using defaults\n", src.ID(), err)
		return src.Filters()
	}

	return fl
}

// Do executes req with the source's client for op. Transport failures and
// non-2xx statuses come back as *NetworkError.
func (r *Runner) Do(ctx context.Context, src Source, op Operation, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	r.log.Debugf("%s: %s %s %s\n", src.ID(), op, req.Method, req.URL)

	resp, err := util.DoWithRetry(ctx, src.Client(op), req, r.attempts, r.backoff)
	if err != nil {
		if resp != nil {
			return nil, &NetworkError{Op: op, URL: req.URL.String(), StatusCode: resp.StatusCode, Err: err}
		}

		return nil, &NetworkError{Op: op, URL: req.URL.String(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		closeBody(resp)
		return nil, &NetworkError{Op: op, URL: req.URL.String(), StatusCode: resp.StatusCode}
	}

	return resp, nil
}

func (r *Runner) listing(
	ctx context.Context,
	src Source,
	op Operation,
	req *http.Request,
	parse func(*http.Response) (model.Listing, error),
) (model.Listing, error) {
	resp, err := r.Do(ctx, src, op, req)
	if err != nil {
		return model.Listing{}, err
	}
	defer closeBody(resp)

	l, err := parse(resp)
	if err != nil {
		var qe *InvalidQueryError
		if errors.As(err, &qe) {
			return model.Listing{}, err
		}

		return model.Listing{}, asParseError(op, err)
	}

	for i := range l.Mangas {
		l.Mangas[i].ApplyFallbacks()
	}

	return l, nil
}

func asParseError(op Operation, err error) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		return err
	}

	return &ParseError{Op: op, Err: err}
}

func sameChapters(a, b []model.Chapter) bool {
	return slices.EqualFunc(a, b, func(x, y model.Chapter) bool {
		return x.URL == y.URL && x.Name == y.Name && x.Number == y.Number && x.Scanlator == y.Scanlator
	})
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
