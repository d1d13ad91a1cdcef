package cubari

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/brogergvhs/mangaext/internal/model"
	"github.com/brogergvhs/mangaext/internal/providers"
	"github.com/brogergvhs/mangaext/internal/providers/generic"
)

// FetchSearch resolves structured queries and pasted links with one series
// lookup per slug; anything else is a keyword search over the history.
func (c *Cubari) FetchSearch(ctx context.Context, page int, query string, filters providers.FilterList) (model.Listing, error) {
	q := strings.TrimSpace(query)

	if strings.HasPrefix(q, "http://") || strings.HasPrefix(q, "https://") {
		pq, err := ProxyQuery(q)
		if err != nil {
			return model.Listing{}, err
		}
		q = pq
	}

	if IsProxyQuery(q) {
		target, err := ParseProxyQuery(q)
		if err != nil {
			return model.Listing{}, err
		}

		return c.proxySearch(ctx, target)
	}

	req, err := c.SearchRequest(ctx, page, q, filters)
	if err != nil {
		return model.Listing{}, err
	}

	resp, err := c.exec.Do(ctx, c, providers.OpSearch, req)
	if err != nil {
		return model.Listing{}, err
	}
	defer closeBody(resp)

	l, err := c.ParseSearch(resp, q)
	if err != nil {
		if providers.IsInvalidQuery(err) {
			return model.Listing{}, err
		}

		return model.Listing{}, &providers.ParseError{Op: providers.OpSearch, Err: err}
	}

	return l, nil
}

// proxySearch looks every slug up concurrently. Failed lookups are dropped,
// even when none succeed; the rest keep the order of the query.
func (c *Cubari) proxySearch(ctx context.Context, target ProxyTarget) (model.Listing, error) {
	found := make([]*model.Manga, len(target.Slugs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxLookups)

	for i, slug := range target.Slugs {
		g.Go(func() error {
			m, err := c.lookup(gctx, target.Source, slug)
			if err != nil {
				c.log.Debugf("cubari: lookup %s/%s: %v\n", target.Source, slug, err)
				return nil
			}

			found[i] = &m
			return nil
		})
	}
	_ = g.Wait()

	var out model.Listing
	for _, m := range found {
		if m != nil {
			out.Mangas = append(out.Mangas, *m)
		}
	}

	return out, nil
}

func (c *Cubari) lookup(ctx context.Context, source, slug string) (model.Manga, error) {
	req, err := c.get(ctx, c.seriesURL(source, slug))
	if err != nil {
		return model.Manga{}, err
	}

	resp, err := c.exec.Do(ctx, taggedSource{c}, providers.OpSearch, req)
	if err != nil {
		return model.Manga{}, err
	}
	defer closeBody(resp)

	var s series
	if err := generic.DecodeJSON(resp, &s); err != nil {
		return model.Manga{}, &providers.ParseError{Op: providers.OpSearch, Err: err}
	}

	m, err := parseManga(s, "/read/"+source+"/"+slug+"/")
	if err != nil {
		return model.Manga{}, &providers.ParseError{Op: providers.OpSearch, Err: err}
	}

	return m, nil
}

// taggedSource routes lookups through the client that also records the
// series in the reader history.
type taggedSource struct {
	*Cubari
}

func (t taggedSource) Client(providers.Operation) *http.Client {
	return t.tag
}

func closeBody(resp *http.Response) {
	_ = resp.Body.Close()
}
