package model

import "sort"

// Chapter is one release of a chapter by one group. UploadedAt is epoch
// millis, 0 when the source does not know it.
type Chapter struct {
	Name       string
	Number     float64
	URL        string
	UploadedAt int64
	Scanlator  string
}

// SortChapters orders chapters by number, highest first. Chapters sharing a
// number keep the order the source returned them in.
func SortChapters(chs []Chapter) {
	sort.SliceStable(chs, func(i, j int) bool {
		return chs[i].Number > chs[j].Number
	})
}

type Page struct {
	Index    int
	ImageURL string
	Text     string
}

// IndexPages renumbers pages so indices are 0-based and contiguous.
func IndexPages(pages []Page) []Page {
	for i := range pages {
		pages[i].Index = i
	}

	return pages
}
