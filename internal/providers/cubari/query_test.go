package cubari

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/mangaext/internal/providers"
)

func TestParseProxyQuery(t *testing.T) {
	got, err := ParseProxyQuery("cubari:gist/one")
	require.NoError(t, err)
	assert.Equal(t, ProxyTarget{Source: "gist", Slugs: []string{"one"}}, got)

	got, err = ParseProxyQuery(" proxy:imgur/a, b ,,c/ ")
	require.NoError(t, err)
	assert.Equal(t, ProxyTarget{Source: "imgur", Slugs: []string{"a", "b", "c"}}, got)

	for _, bad := range []string{"cubari:", "cubari:gist", "cubari:/slug", "cubari:gist/ , ", "gist/slug"} {
		_, err := ParseProxyQuery(bad)
		assert.True(t, providers.IsInvalidQuery(err), bad)
	}
}

func TestParseDeepLink(t *testing.T) {
	cases := []struct {
		in, source, slug string
	}{
		{"https://cubari.moe/read/gist/Z2lzdA/", "gist", "Z2lzdA"},
		{"https://cubari.moe/read/mangadex/abc-123/4/1/", "mangadex", "abc-123"},
		{"https://imgur.com/a/AbCd", "imgur", "AbCd"},
		{"https://m.imgur.com/gallery/AbCd", "imgur", "AbCd"},
		{"https://www.reddit.com/gallery/xyz", "reddit", "xyz"},
		{"https://mangadex.org/title/0b4e7a2d-1d2b/some-title", "mangadex", "0b4e7a2d-1d2b"},
		{"https://imgchest.com/p/9q2", "imgchest", "9q2"},
	}

	for _, c := range cases {
		source, slug, err := ParseDeepLink(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.source, source, c.in)
		assert.Equal(t, c.slug, slug, c.in)
	}

	for _, bad := range []string{"https://cubari.moe/", "https://example.org/read/a/b", "not a url", "https://imgur.com/a"} {
		_, _, err := ParseDeepLink(bad)
		assert.Error(t, err, bad)
	}
}

func TestProxyQuery(t *testing.T) {
	q, err := ProxyQuery("https://imgur.com/a/AbCd")
	require.NoError(t, err)
	assert.Equal(t, "cubari:imgur/AbCd", q)
	assert.True(t, IsProxyQuery(q))
}
