package providers

import (
	"context"
	"net/http"

	"github.com/brogergvhs/mangaext/internal/model"
)

type Operation int

const (
	OpPopular Operation = iota
	OpLatest
	OpSearch
	OpDetails
	OpChapters
	OpPages
)

func (o Operation) String() string {
	switch o {
	case OpPopular:
		return "popular"
	case OpLatest:
		return "latest"
	case OpSearch:
		return "search"
	case OpDetails:
		return "details"
	case OpChapters:
		return "chapters"
	case OpPages:
		return "pages"
	default:
		return "unknown"
	}
}

// ChapterPage is one parsed page of a chapter list. A non-nil Next asks the
// caller to fetch and parse another page.
type ChapterPage struct {
	Chapters []model.Chapter
	Next     *http.Request
}

// Source is the contract every site adapter implements. The host builds a
// request with one of the *Request methods, executes it with Client(op) and
// feeds the response to the paired Parse* method.
type Source interface {
	ID() string
	Name() string
	Lang() string
	BaseURL() string
	SupportsLatest() bool

	Client(op Operation) *http.Client
	Filters() FilterList

	PopularRequest(ctx context.Context, page int) (*http.Request, error)
	ParsePopular(resp *http.Response) (model.Listing, error)

	LatestRequest(ctx context.Context, page int) (*http.Request, error)
	ParseLatest(resp *http.Response) (model.Listing, error)

	SearchRequest(ctx context.Context, page int, query string, filters FilterList) (*http.Request, error)
	ParseSearch(resp *http.Response, query string) (model.Listing, error)

	DetailsRequest(ctx context.Context, manga model.Manga) (*http.Request, error)
	ParseDetails(resp *http.Response, manga model.Manga) (model.Manga, error)

	ChapterListRequest(ctx context.Context, manga model.Manga) (*http.Request, error)
	ParseChapterList(resp *http.Response, manga model.Manga) (ChapterPage, error)

	PageListRequest(ctx context.Context, chapter model.Chapter) (*http.Request, error)
	ParsePageList(resp *http.Response, chapter model.Chapter) ([]model.Page, error)
}

// SearchFetcher is implemented by sources whose search needs more than one
// request/parse round trip. The Runner prefers it over SearchRequest.
type SearchFetcher interface {
	FetchSearch(ctx context.Context, page int, query string, filters FilterList) (model.Listing, error)
}

// Logger is the logging surface providers need.
type Logger interface {
	Debugf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}

// FilterFetcher is implemented by sources whose filter options (genres,
// statuses) come from the site. Filters() stays the offline fallback.
type FilterFetcher interface {
	FetchFilters(ctx context.Context) (FilterList, error)
}
