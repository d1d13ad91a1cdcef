package generic

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Resolve returns ref made absolute against base. Unparseable input comes
// back unchanged.
func Resolve(base, ref string) string {
	ref = FixScheme(strings.TrimSpace(ref))

	u, err := url.Parse(ref)
	if err != nil || u == nil {
		return ref
	}

	if u.IsAbs() {
		return u.String()
	}

	b, err := url.Parse(base)
	if err != nil || b == nil {
		return ref
	}

	return b.ResolveReference(u).String()
}

// FixScheme repairs the "https//host" links some sites emit.
func FixScheme(u string) string {
	switch {
	case strings.HasPrefix(u, "https//"):
		return "https://" + strings.TrimPrefix(u, "https//")
	case strings.HasPrefix(u, "http//"):
		return "http://" + strings.TrimPrefix(u, "http//")
	}

	return u
}

// RelativePath strips scheme and host, keeping path, query and fragment.
func RelativePath(raw string) string {
	raw = FixScheme(strings.TrimSpace(raw))

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	out := u.EscapedPath()
	if out == "" {
		out = "/"
	}
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		out += "#" + u.EscapedFragment()
	}

	return out
}

// AbsAttr resolves the first non-blank attribute of sel among attrs.
func AbsAttr(sel *goquery.Selection, base string, attrs ...string) string {
	for _, a := range attrs {
		if v, ok := sel.Attr(a); ok && strings.TrimSpace(v) != "" {
			return Resolve(base, v)
		}
	}

	return ""
}
