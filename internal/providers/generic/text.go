package generic

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reSpace = regexp.MustCompile(`\s+`)

	reHashNumber = regexp.MustCompile(`#\s*(\d+(?:\.\d+)?)`)
	reChapter    = regexp.MustCompile(`(?i)(?:chapter|ch\.?|cap[ií]tulo|cap\.?|episode|ep\.?)\s*[_\-]?\s*(\d+(?:[.\-]\d+)?)`)
	titlePrefix  = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*(?:[.\- :]|$)`)
	reAnyNumber  = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

	reAgo = regexp.MustCompile(`(?i)(\d+|an?)\s+(second|minute|min|hour|day|week|month|year)s?\s+ago`)
)

func CleanText(s string) string {
	return strings.TrimSpace(reSpace.ReplaceAllString(s, " "))
}

// ChapterNumber extracts the chapter number from a label such as
// "Chapter 12.5", "Issue #3" or "Capítulo 40". It returns -1 when no
// number can be found.
func ChapterNumber(label string) float64 {
	label = CleanText(label)

	for _, re := range []*regexp.Regexp{reHashNumber, reChapter, titlePrefix, reAnyNumber} {
		m := re.FindStringSubmatch(label)
		if m == nil {
			continue
		}

		if n, err := strconv.ParseFloat(strings.Replace(m[1], "-", ".", 1), 64); err == nil {
			return n
		}
	}

	return -1
}

// FormatNumber renders a chapter number without a trailing ".0".
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// ParseDate returns text as epoch millis using layout, or relative to now
// for "3 days ago" style labels. Unknown input yields 0.
func ParseDate(layout, text string, now time.Time) int64 {
	text = CleanText(text)
	if text == "" {
		return 0
	}

	if m := reAgo.FindStringSubmatch(text); m != nil {
		return relative(m[1], m[2], now)
	}

	t, err := time.ParseInLocation(layout, text, time.UTC)
	if err != nil {
		return 0
	}

	return t.UnixMilli()
}

func relative(amount, unit string, now time.Time) int64 {
	n := 1
	if v, err := strconv.Atoi(amount); err == nil {
		n = v
	}

	switch strings.ToLower(unit) {
	case "second":
		now = now.Add(-time.Duration(n) * time.Second)
	case "minute", "min":
		now = now.Add(-time.Duration(n) * time.Minute)
	case "hour":
		now = now.Add(-time.Duration(n) * time.Hour)
	case "day":
		now = now.AddDate(0, 0, -n)
	case "week":
		now = now.AddDate(0, 0, -7*n)
	case "month":
		now = now.AddDate(0, -n, 0)
	case "year":
		now = now.AddDate(-n, 0, 0)
	}

	return now.UnixMilli()
}
