package cubari

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/brogergvhs/mangaext/internal/model"
	"github.com/brogergvhs/mangaext/internal/providers/generic"
	"github.com/brogergvhs/mangaext/internal/store"
)

type listMode int

const (
	listPinned listMode = iota
	listUnpinned
	listAll
)

var volumeNotSpecified = map[string]bool{"Uncategorized": true, "null": true, "": true}

// historyEntry is one series in the reader's local history.
type historyEntry struct {
	Title    *string `json:"title"`
	URL      string  `json:"url"`
	CoverURL string  `json:"coverUrl"`
	Cover    string  `json:"cover"`
	Source   string  `json:"source"`
	Slug     string  `json:"slug"`
	Pinned   bool    `json:"pinned"`
}

type series struct {
	Slug        string            `json:"slug"`
	Title       *string           `json:"title"`
	Description *string           `json:"description"`
	Author      *string           `json:"author"`
	Artist      *string           `json:"artist"`
	Cover       string            `json:"cover"`
	CoverURL    string            `json:"coverUrl"`
	Groups      map[string]string `json:"groups"`
	Chapters    json.RawMessage   `json:"chapters"`
}

type seriesChapter struct {
	Volume      json.RawMessage        `json:"volume"`
	Title       json.RawMessage        `json:"title"`
	Groups      json.RawMessage        `json:"groups"`
	ReleaseDate map[string]json.Number `json:"release_date"`
}

func (c *Cubari) parseMangaList(body []byte, mode listMode, keep func(historyEntry) bool) (model.Listing, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(body, &entries); err != nil {
		return model.Listing{}, fmt.Errorf("history: %w", err)
	}

	out := model.Listing{Mangas: make([]model.Manga, 0, len(entries))}
	for i, raw := range entries {
		var e historyEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			c.log.Debugf("cubari: history item %d: %v\n", i, err)
			continue
		}

		if e.Title == nil {
			c.log.Debugf("cubari: history item %d has no title, skipping\n", i)
			continue
		}

		switch {
		case mode == listPinned && !e.Pinned:
			continue
		case mode == listUnpinned && e.Pinned:
			continue
		}

		if keep != nil && !keep(e) {
			continue
		}

		u := e.URL
		if u == "" && e.Source != "" && e.Slug != "" {
			u = "/read/" + e.Source + "/" + e.Slug + "/"
		}

		m := model.Manga{
			Title:        *e.Title,
			URL:          u,
			ThumbnailURL: firstNonEmpty(e.CoverURL, e.Cover),
		}
		m.ApplyFallbacks()
		out.Mangas = append(out.Mangas, m)
	}

	return out, nil
}

// parseManga builds a series from the series API payload. url wins over
// anything derived from the payload so details stay keyed on the input.
func parseManga(s series, url string) (model.Manga, error) {
	if s.Title == nil {
		return model.Manga{}, errors.New("series has no title")
	}

	m := model.Manga{
		Title:        *s.Title,
		URL:          url,
		ThumbnailURL: firstNonEmpty(s.CoverURL, s.Cover),
		Author:       deref(s.Author),
		Artist:       deref(s.Artist),
	}

	if s.Description != nil {
		desc, tags, found := strings.Cut(*s.Description, "Tags: ")
		m.Description = strings.TrimSpace(desc)
		if found {
			m.Genres = strings.Split(tags, ",")
		}
	}

	m.ApplyFallbacks()
	return m, nil
}

// parseChapters flattens the series chapters into one entry per
// (chapter, group) pair.
func (c *Cubari) parseChapters(s series, manga model.Manga) ([]model.Chapter, error) {
	keys, err := objectKeys(s.Chapters)
	if err != nil {
		return nil, fmt.Errorf("chapters: %w", err)
	}

	var all map[string]seriesChapter
	if err := json.Unmarshal(s.Chapters, &all); err != nil {
		return nil, fmt.Errorf("chapters: %w", err)
	}

	slug := s.Slug
	if slug == "" {
		_, slug, _ = seriesRef(manga.URL)
	}

	var out []model.Chapter
	for _, key := range keys {
		ch := all[key]

		groupIDs, err := objectKeys(ch.Groups)
		if err != nil {
			c.log.Debugf("cubari: chapter %s groups: %v\n", key, err)
			continue
		}

		var groups map[string]json.RawMessage
		if err := json.Unmarshal(ch.Groups, &groups); err != nil {
			c.log.Debugf("cubari: chapter %s groups: %v\n", key, err)
			continue
		}

		number := -1.0
		if n, err := strconv.ParseFloat(key, 64); err == nil {
			number = n
		}

		name := chapterName(rawString(ch.Volume), key, rawString(ch.Title))

		for _, gid := range groupIDs {
			chURL := rawString(groups[gid])
			if isArray(groups[gid]) {
				chURL = strings.TrimSuffix(manga.URL, "/") + "/" + key + "/" + gid
			}

			uploaded := int64(0)
			if d, ok := ch.ReleaseDate[gid]; ok {
				if secs, err := d.Float64(); err == nil {
					uploaded = int64(secs) * 1000
				}
			}
			if uploaded == 0 && c.times != nil {
				uploaded = store.FirstSeen(c.times, slug+"/"+key, c.now())
			}

			out = append(out, model.Chapter{
				Name:       name,
				Number:     number,
				URL:        chURL,
				UploadedAt: uploaded,
				Scanlator:  s.Groups[gid],
			})
		}
	}

	model.SortChapters(out)
	return out, nil
}

func chapterName(volume, key, title string) string {
	var b strings.Builder
	if !volumeNotSpecified[volume] && strings.TrimSpace(volume) != "" {
		b.WriteString("Vol." + volume + " ")
	}
	b.WriteString("Ch." + key)
	if strings.TrimSpace(title) != "" && title != "null" {
		b.WriteString(" - " + title)
	}

	return b.String()
}

// NormalizeChapterKey drops leading zeros so "007" and "7" name the same
// chapter. A zero integer part is kept: "0.5" stays "0.5".
func NormalizeChapterKey(key string) string {
	k := strings.TrimLeft(strings.TrimSpace(key), "0")
	if k == "" || strings.HasPrefix(k, ".") {
		k = "0" + k
	}

	return k
}

// seriesPages selects the page list of one chapter/group from the series
// payload.
func seriesPages(s series, chapter model.Chapter) ([]model.Page, error) {
	var all map[string]seriesChapter
	if err := json.Unmarshal(s.Chapters, &all); err != nil {
		return nil, fmt.Errorf("chapters: %w", err)
	}

	normalized := make(map[string]seriesChapter, len(all))
	for k, v := range all {
		normalized[NormalizeChapterKey(k)] = v
	}

	key, group, ok := chapterRef(chapter.URL)
	if !ok {
		key = generic.FormatNumber(chapter.Number)
		group = groupID(s.Groups, chapter.Scanlator)
	}

	ch, ok := normalized[NormalizeChapterKey(key)]
	if !ok {
		return nil, fmt.Errorf("chapter %s not in series", key)
	}

	var groups map[string]json.RawMessage
	if err := json.Unmarshal(ch.Groups, &groups); err != nil {
		return nil, fmt.Errorf("chapter %s groups: %w", key, err)
	}

	raw, ok := groups[group]
	if !ok {
		return nil, fmt.Errorf("chapter %s has no group %q", key, group)
	}

	return pageList(raw)
}

// groupID finds the group id for a scanlator name; unnamed groups go by
// "default".
func groupID(groups map[string]string, scanlator string) string {
	if scanlator == "" {
		scanlator = "default"
	}

	for id, name := range groups {
		if name == "" {
			name = "default"
		}
		if name == scanlator {
			return id
		}
	}

	return ""
}

// pageList reads an array whose items are URLs or {"src": url} objects.
func pageList(raw json.RawMessage) ([]model.Page, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("pages: %w", err)
	}

	pages := make([]model.Page, 0, len(items))
	for i, it := range items {
		var src string
		if err := json.Unmarshal(it, &src); err != nil {
			var obj struct {
				Src string `json:"src"`
			}
			if err := json.Unmarshal(it, &obj); err != nil || obj.Src == "" {
				return nil, fmt.Errorf("page %d: unexpected item %s", i, it)
			}
			src = obj.Src
		}

		pages = append(pages, model.Page{Index: i, ImageURL: src})
	}

	return pages, nil
}

// objectKeys returns the keys of a JSON object in document order.
func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		keys = append(keys, tok.(string))

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}

	return keys, nil
}

// rawString renders a JSON scalar the way it reads: strings unquoted,
// null as "null", numbers as written.
func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	return string(raw)
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}

	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func jsonUnmarshal(b []byte, v any) error {
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}

	return nil
}
