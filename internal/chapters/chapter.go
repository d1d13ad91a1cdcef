package chapters

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/brogergvhs/mangaext/internal/model"
)

// Chapter is a chapter as the read command sees it: the source's chapter
// plus the series it belongs to, which is needed for file naming.
type Chapter struct {
	model.Chapter
	Series string
}

// Wrap pairs every chapter with the series title.
func Wrap(series string, chs []model.Chapter) []Chapter {
	out := make([]Chapter, len(chs))
	for i, c := range chs {
		out[i] = Chapter{Chapter: c, Series: series}
	}

	return out
}

var reUnderscore = regexp.MustCompile(`_+`)

func sanitize(s string) string {
	s = strings.ToLower(s)

	repl := []string{
		"•", "_",
		"-", "_",
		"—", "_",
		"–", "_",
		"/", "_",
		"\\", "_",
		".", "_",
		" ", "_",
		"(", "",
		")", "",
	}
	for i := 0; i < len(repl); i += 2 {
		s = strings.ReplaceAll(s, repl[i], repl[i+1])
	}

	clean := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			clean = append(clean, r)
		}
	}
	s = string(clean)

	s = reUnderscore.ReplaceAllString(s, "_")

	return strings.Trim(s, "_")
}

// Label is the chapter number as users type it: "12", "12.5". Chapters
// without a number fall back to their name.
func (c Chapter) Label() string {
	if c.Number < 0 {
		return c.Name
	}

	return strconv.FormatFloat(c.Number, 'f', -1, 64)
}

func (c Chapter) baseName() string {
	parts := []string{}
	if s := sanitize(c.Series); s != "" {
		parts = append(parts, s)
	}

	if c.Number >= 0 {
		parts = append(parts, "ch_"+sanitize(c.Label()))
	} else if s := sanitize(c.Name); s != "" {
		parts = append(parts, s)
	}

	// several groups can release the same number
	if s := sanitize(c.Scanlator); s != "" {
		parts = append(parts, s)
	}

	if len(parts) == 0 {
		return "chapter"
	}

	return strings.Join(parts, "_")
}

func (c Chapter) FolderName() string {
	return c.baseName() + "_tmp"
}

func (c Chapter) OutputCBZ() string {
	return c.baseName() + ".cbz"
}

func (c Chapter) OutputCBZPath(out string) string {
	return filepath.Join(out, c.OutputCBZ())
}
