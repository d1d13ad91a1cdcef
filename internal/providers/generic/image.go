package generic

import (
	"net/url"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	reSizeSuffix = regexp.MustCompile(`[-_]\d{2,5}x\d{2,5}`)
	reParseSize  = regexp.MustCompile(`[-_](\d{2,5})x(\d{2,5})`)

	reLooseURLs  = regexp.MustCompile(`https?://[^\s"'<>\\]+`)
	reQuotedPath = regexp.MustCompile(`["'](/[A-Za-z0-9/\-._]+)["']`)
)

var imageAttrs = []string{"data-src", "data-lazy-src", "data-original", "src"}

// PageImageExtensions are the extensions CollectImages accepts. URLs with
// no extension at all are accepted too.
var PageImageExtensions = []string{"jpg", "jpeg", "png", "webp", "gif", "avif"}

var skipWords = []string{"logo", "avatar", "banner", "profile", "icon"}

type collectedItem struct {
	URL   string
	Index int // -1 if none
	Order int
}

type imageCollector struct {
	base    string
	allowed map[string]bool
	items   []collectedItem
	seen    map[string]bool
}

func newImageCollector(base string) *imageCollector {
	allowed := make(map[string]bool, len(PageImageExtensions))
	for _, e := range PageImageExtensions {
		allowed[e] = true
	}

	return &imageCollector{
		base:    base,
		allowed: allowed,
		seen:    make(map[string]bool),
	}
}

func (c *imageCollector) add(raw string, idx int) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "javascript:") || strings.HasPrefix(raw, "data:") {
		return
	}

	abs := Resolve(c.base, raw)
	u, err := url.Parse(abs)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return
	}

	p := strings.ToLower(u.Path)
	if ext := strings.TrimPrefix(path.Ext(p), "."); ext != "" && !c.allowed[ext] {
		return
	}

	name := path.Base(p)
	for _, w := range skipWords {
		if strings.Contains(name, w) {
			return
		}
	}

	if c.seen[abs] {
		return
	}
	c.seen[abs] = true

	c.items = append(c.items, collectedItem{URL: abs, Index: idx, Order: len(c.items)})
}

func (c *imageCollector) scan(sel *goquery.Selection) {
	imgs := sel.Filter("img").AddSelection(sel.Find("img"))

	imgs.Each(func(_ int, img *goquery.Selection) {
		idx := indexOf(img)

		// lazy loaders keep the real image in data-*; src is a placeholder
		found := false
		for _, k := range imageAttrs {
			if v, ok := img.Attr(k); ok && strings.TrimSpace(v) != "" {
				c.add(v, idx)
				found = true
				break
			}
		}

		if !found {
			if ss, ok := img.Attr("srcset"); ok {
				for _, cand := range strings.Split(ss, ",") {
					if f := strings.Fields(cand); len(f) > 0 {
						c.add(f[0], idx)
					}
				}
			}
		}
	})
}

func indexOf(sel *goquery.Selection) int {
	for _, s := range []*goquery.Selection{sel, sel.ParentsFiltered("[data-index]").First()} {
		if v, ok := s.Attr("data-index"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n
			}
		}
	}

	return -1
}

// finalize keeps one URL per image (resized variants collapse onto the
// original) ordered by data-index, then by document order.
func (c *imageCollector) finalize() []string {
	if len(c.items) == 0 {
		return nil
	}

	groups := map[string][]collectedItem{}
	var keys []string
	for _, it := range c.items {
		k := normalizeBase(it.URL)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], it)
	}

	chosen := make([]collectedItem, 0, len(keys))
	for _, k := range keys {
		items := groups[k]
		best := pickBestItem(items)
		best.Index, best.Order = lowestIndexAndOrder(items)
		chosen = append(chosen, best)
	}

	sort.SliceStable(chosen, func(i, j int) bool {
		ai, aj := chosen[i].Index, chosen[j].Index
		if ai >= 0 && aj >= 0 && ai != aj {
			return ai < aj
		}
		if (ai >= 0) != (aj >= 0) {
			return ai >= 0
		}

		return chosen[i].Order < chosen[j].Order
	})

	out := make([]string, len(chosen))
	for i, it := range chosen {
		out[i] = it.URL
	}

	return out
}

func normalizeBase(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	ext := path.Ext(u.Path)
	base := strings.TrimSuffix(u.Path, ext)
	base = reSizeSuffix.ReplaceAllString(base, "")
	base = strings.TrimRight(base, "-_")

	return u.Host + base + ext
}

func area(u string) int {
	m := reParseSize.FindStringSubmatch(u)
	if m == nil {
		return 0
	}

	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])

	return w * h
}

// pickBestItem prefers the unsized original, else the largest variant.
func pickBestItem(items []collectedItem) collectedItem {
	var best *collectedItem
	for i := range items {
		it := &items[i]
		if !reSizeSuffix.MatchString(it.URL) {
			return *it
		}
		if best == nil || area(it.URL) > area(best.URL) {
			best = it
		}
	}

	return *best
}

func lowestIndexAndOrder(items []collectedItem) (idx, order int) {
	idx, order = -1, items[0].Order
	for _, it := range items {
		if it.Index >= 0 && (idx < 0 || it.Index < idx) {
			idx = it.Index
		}
		if it.Order < order {
			order = it.Order
		}
	}

	return idx, order
}

// CollectImages returns the page image URLs found in sel (img elements or
// containers holding them), resolved against base.
func CollectImages(sel *goquery.Selection, base string) []string {
	c := newImageCollector(base)
	c.scan(sel)

	return c.finalize()
}

// ScriptImages looks for image URLs inside the document's inline scripts,
// for readers that build the page list in JavaScript.
func ScriptImages(doc *goquery.Document, base string) []string {
	var js strings.Builder
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			js.WriteString(t)
			js.WriteString("\n")
		}
	})

	c := newImageCollector(base)
	body := js.String()
	for _, u := range reLooseURLs.FindAllString(body, -1) {
		if hasImageExt(u) {
			c.add(u, -1)
		}
	}
	for _, m := range reQuotedPath.FindAllStringSubmatch(body, -1) {
		if hasImageExt(m[1]) {
			c.add(m[1], -1)
		}
	}

	return c.finalize()
}

func hasImageExt(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
	for _, e := range PageImageExtensions {
		if ext == e {
			return true
		}
	}

	return false
}
