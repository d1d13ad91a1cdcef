package cubari

import (
	"net/url"
	"strings"

	"github.com/brogergvhs/mangaext/internal/providers"
)

const (
	ProxyPrefix = "cubari:"
	// AltProxyPrefix is accepted as a synonym of ProxyPrefix.
	AltProxyPrefix = "proxy:"

	SearchFallbackMsg = "Unable to parse. Is your query in the format of " + ProxyPrefix + "<source>/<slug>?"
)

// ProxyTarget is one "<source>/<slug>[,<slug>...]" lookup.
type ProxyTarget struct {
	Source string
	Slugs  []string
}

// IsProxyQuery reports whether query uses the structured lookup form.
func IsProxyQuery(query string) bool {
	q := strings.TrimSpace(query)
	return strings.HasPrefix(q, ProxyPrefix) || strings.HasPrefix(q, AltProxyPrefix)
}

// ParseProxyQuery splits "cubari:<source>/<slug>[,<slug>...]". Blank slugs
// are ignored; a query without a source or any slug is invalid.
func ParseProxyQuery(query string) (ProxyTarget, error) {
	q := strings.TrimSpace(query)
	switch {
	case strings.HasPrefix(q, ProxyPrefix):
		q = strings.TrimPrefix(q, ProxyPrefix)
	case strings.HasPrefix(q, AltProxyPrefix):
		q = strings.TrimPrefix(q, AltProxyPrefix)
	default:
		return ProxyTarget{}, &providers.InvalidQueryError{Query: query, Hint: SearchFallbackMsg}
	}

	source, rest, ok := strings.Cut(q, "/")
	source = strings.TrimSpace(source)
	if !ok || source == "" {
		return ProxyTarget{}, &providers.InvalidQueryError{Query: query, Hint: SearchFallbackMsg}
	}

	var slugs []string
	for s := range strings.SplitSeq(rest, ",") {
		s = strings.Trim(strings.TrimSpace(s), "/")
		if s != "" {
			slugs = append(slugs, s)
		}
	}

	if len(slugs) == 0 {
		return ProxyTarget{}, &providers.InvalidQueryError{Query: query, Hint: SearchFallbackMsg}
	}

	return ProxyTarget{Source: source, Slugs: slugs}, nil
}

// ParseDeepLink maps a link to a series on cubari.moe or on one of the
// hosts cubari proxies onto its (source, slug) pair.
func ParseDeepLink(raw string) (source, slug string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", "", &providers.InvalidQueryError{Query: raw, Hint: "not a link"}
	}

	var segs []string
	for s := range strings.SplitSeq(u.Path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	switch host {
	case "imgur.com":
		return fromSource("imgur", raw, segs)
	case "reddit.com":
		return fromSource("reddit", raw, segs)
	case "imgchest.com":
		return fromSource("imgchest", raw, segs)
	case "catbox.moe":
		return fromSource("catbox", raw, segs)
	case "mangadex.org":
		if len(segs) >= 2 && segs[0] == "title" {
			return "mangadex", segs[1], nil
		}
	case "cubari.moe":
		// /read/<source>/<slug>/... and /proxy/<source>/<slug>/...
		if len(segs) >= 3 {
			return segs[1], segs[2], nil
		}
	}

	return "", "", &providers.InvalidQueryError{Query: raw, Hint: "unsupported cubari link"}
}

// hosts like imgur.com/a/<id> carry the id in the second path segment
func fromSource(source, raw string, segs []string) (string, string, error) {
	if len(segs) >= 2 {
		return source, segs[1], nil
	}

	return "", "", &providers.InvalidQueryError{Query: raw, Hint: "unsupported " + source + " link"}
}

// ProxyQuery converts a deep link into the search query that opens it.
func ProxyQuery(raw string) (string, error) {
	source, slug, err := ParseDeepLink(raw)
	if err != nil {
		return "", err
	}

	return ProxyPrefix + source + "/" + slug, nil
}
