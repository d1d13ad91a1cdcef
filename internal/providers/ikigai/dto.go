package ikigai

import (
	"strconv"
	"strings"
	"time"

	"github.com/brogergvhs/mangaext/internal/model"
	"github.com/brogergvhs/mangaext/internal/providers/generic"
)

const dateLayout = "2006-01-02T15:04:05.000000Z"

type seriesDto struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Slug        string      `json:"slug"`
	Cover       string      `json:"cover"`
	Type        string      `json:"type"`
	Description string      `json:"summary"`
	Genres      []optionDto `json:"genres"`
	Status      *optionDto  `json:"status"`
}

type optionDto struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// seriesPayload covers the ranking list (no paging fields) and the paged
// series and new-chapters endpoints.
type seriesPayload struct {
	Data        []seriesDto `json:"data"`
	CurrentPage int         `json:"current_page"`
	LastPage    int         `json:"last_page"`
}

func (p seriesPayload) hasNextPage() bool {
	return p.CurrentPage < p.LastPage
}

type detailsPayload struct {
	Series seriesDto `json:"series"`
}

type chapterDto struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Title       *string `json:"title"`
	PublishedAt string  `json:"published_at"`
}

type chaptersPayload struct {
	Data []chapterDto `json:"data"`
	Meta struct {
		CurrentPage int `json:"current_page"`
		LastPage    int `json:"last_page"`
	} `json:"meta"`
}

func (p chaptersPayload) hasNextPage() bool {
	return p.Meta.CurrentPage < p.Meta.LastPage
}

type filtersPayload struct {
	Data struct {
		Genres   []optionDto `json:"genres"`
		Statuses []optionDto `json:"statuses"`
	} `json:"data"`
}

// mangaURL keeps the numeric id after '#' so it survives slug renames.
func mangaURL(slug string, id int64) string {
	return "/series/comic-" + slug + "#" + strconv.FormatInt(id, 10)
}

// slugOf reads the slug back out of a manga URL.
func slugOf(u string) string {
	s := u
	if _, after, ok := strings.Cut(s, "/series/comic-"); ok {
		s = after
	}
	s, _, _ = strings.Cut(s, "#")

	return strings.Trim(s, "/")
}

func (d seriesDto) toManga() model.Manga {
	return model.Manga{
		Title:        strings.TrimSpace(d.Name),
		URL:          mangaURL(d.Slug, d.ID),
		ThumbnailURL: d.Cover,
	}
}

func (d seriesDto) toDetails() model.Manga {
	m := d.toManga()
	m.Description = strings.TrimSpace(d.Description)

	for _, g := range d.Genres {
		m.Genres = append(m.Genres, g.Name)
	}
	if d.Status != nil {
		m.Status = model.ParseStatus(d.Status.Name)
	}

	return m
}

func (d chapterDto) toChapter(now time.Time) model.Chapter {
	name := "Capítulo " + strings.TrimSpace(d.Name)
	if d.Title != nil && strings.TrimSpace(*d.Title) != "" {
		name += " - " + strings.TrimSpace(*d.Title)
	}

	number, err := strconv.ParseFloat(strings.TrimSpace(d.Name), 64)
	if err != nil {
		number = generic.ChapterNumber(d.Name)
	}

	return model.Chapter{
		Name:       name,
		Number:     number,
		URL:        "/capitulo/" + strconv.FormatInt(d.ID, 10) + "/",
		UploadedAt: generic.ParseDate(dateLayout, d.PublishedAt, now),
	}
}
