package chapters

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Selection holds the user's chapter choice. At most one field is used, in
// field order; an empty Selection selects everything.
type Selection struct {
	Chapter string
	Range   string
	List    string
}

func (s Selection) Empty() bool {
	return s.Chapter == "" && s.Range == "" && s.List == ""
}

// Filter applies sel to all. Chapter and List entries match a chapter label
// first and fall back to a 1-based index in reading order (oldest first).
// Range bounds are chapter numbers, inclusive. The result is in reading
// order.
func Filter(all []Chapter, sel Selection) ([]Chapter, error) {
	ordered := ReadingOrder(all)

	switch {
	case sel.Chapter != "":
		out := pick(ordered, sel.Chapter)
		if len(out) == 0 {
			return nil, fmt.Errorf("chapter %q not found", sel.Chapter)
		}
		return out, nil

	case sel.Range != "":
		return FilterChapterRange(ordered, sel.Range)

	case sel.List != "":
		var out []Chapter
		for _, item := range strings.Split(sel.List, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			found := pick(ordered, item)
			if len(found) == 0 {
				return nil, fmt.Errorf("chapter %q not found", item)
			}
			out = append(out, found...)
		}
		return out, nil
	}

	return ordered, nil
}

// ReadingOrder returns a copy of chs sorted by chapter number, lowest first.
// Sources list newest first, so ties are reversed to keep release order.
func ReadingOrder(chs []Chapter) []Chapter {
	out := slices.Clone(chs)
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b Chapter) int {
		switch {
		case a.Number < b.Number:
			return -1
		case a.Number > b.Number:
			return 1
		}
		return 0
	})

	return out
}

func FilterChaptersByLabel(all []Chapter, label string) []Chapter {
	var out []Chapter
	for _, ch := range all {
		if ch.Label() == label || strings.EqualFold(ch.Name, label) {
			out = append(out, ch)
		}
	}

	return out
}

func FilterChapterRange(all []Chapter, rng string) ([]Chapter, error) {
	lo, hi, ok := strings.Cut(rng, "-")
	if !ok {
		return nil, fmt.Errorf("invalid range %q (want start-end)", rng)
	}

	start, err1 := parseNumber(lo)
	end, err2 := parseNumber(hi)
	if err1 != nil || err2 != nil || start > end {
		return nil, fmt.Errorf("invalid range %q", rng)
	}

	var out []Chapter
	for _, ch := range all {
		if ch.Number >= start && ch.Number <= end {
			out = append(out, ch)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no chapters in range %s", rng)
	}

	return out, nil
}

func pick(ordered []Chapter, item string) []Chapter {
	if byLabel := FilterChaptersByLabel(ordered, item); len(byLabel) > 0 {
		return byLabel
	}

	if idx, err := strconv.Atoi(item); err == nil && idx > 0 && idx <= len(ordered) {
		return []Chapter{ordered[idx-1]}
	}

	return nil
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
