package model

import "strings"

const (
	AuthorFallback      = "Unknown"
	ArtistFallback      = "Unknown"
	DescriptionFallback = "No description."
)

type Status int

const (
	StatusUnknown Status = iota
	StatusOngoing
	StatusCompleted
	StatusOnHiatus
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusOngoing:
		return "ongoing"
	case StatusCompleted:
		return "completed"
	case StatusOnHiatus:
		return "on hiatus"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseStatus maps the status wording used by the supported sites onto a Status.
func ParseStatus(s string) Status {
	s = strings.ToLower(strings.TrimSpace(s))

	switch {
	case s == "":
		return StatusUnknown
	case strings.Contains(s, "ongoing"), strings.Contains(s, "emisi"), strings.Contains(s, "publishing"):
		return StatusOngoing
	case strings.Contains(s, "complet"), strings.Contains(s, "finaliz"), strings.Contains(s, "finished"):
		return StatusCompleted
	case strings.Contains(s, "hiatus"), strings.Contains(s, "pausa"):
		return StatusOnHiatus
	case strings.Contains(s, "cancel"), strings.Contains(s, "abandon"):
		return StatusCancelled
	}

	return StatusUnknown
}

// Manga is one series as a source lists it. URL is the site-relative key
// the source uses for every follow-up request.
type Manga struct {
	Title        string
	URL          string
	ThumbnailURL string
	Author       string
	Artist       string
	Description  string
	Genres       []string
	Status       Status
}

func (m *Manga) ApplyFallbacks() {
	if strings.TrimSpace(m.Author) == "" {
		m.Author = AuthorFallback
	}
	if strings.TrimSpace(m.Artist) == "" {
		m.Artist = ArtistFallback
	}
	if strings.TrimSpace(m.Description) == "" {
		m.Description = DescriptionFallback
	}
	m.Genres = UniqueGenres(m.Genres)
}

// UniqueGenres trims, drops blanks and de-duplicates while keeping order.
func UniqueGenres(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))

	for _, g := range in {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}

		key := strings.ToLower(g)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, g)
	}

	return out
}

type Listing struct {
	Mangas      []Manga
	HasNextPage bool
}
