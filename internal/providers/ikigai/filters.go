package ikigai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/brogergvhs/mangaext/internal/providers"
	"github.com/brogergvhs/mangaext/internal/providers/generic"
)

var errFilterAttempts = errors.New("filter options unavailable after repeated failures")

func sortFilter() providers.Filter {
	return providers.Filter{
		Key:  "sort",
		Name: "Ordenar por",
		Kind: providers.FilterSort,
		Options: []providers.Option{
			{Name: "Nombre", Value: "name"},
			{Name: "Creado en", Value: "created_at"},
			{Name: "Actualización más reciente", Value: "last_chapter_date"},
			{Name: "Número de favoritos", Value: "bookmark_count"},
			{Name: "Número de valoración", Value: "rating_count"},
			{Name: "Número de vistas", Value: "view_count"},
		},
	}
}

// Filters is the offline list: sorting only, genres and statuses need
// FetchFilters.
func (s *Ikigai) Filters() providers.FilterList {
	return providers.FilterList{
		sortFilter(),
		{Key: "note", Name: "Genre and status filters load from the site", Kind: providers.FilterHeader},
	}
}

// FetchFilters loads genres and statuses from the API. A successful result
// is kept for the lifetime of the source; failures are retried on later
// calls up to maxFilterAttempts.
func (s *Ikigai) FetchFilters(ctx context.Context) (providers.FilterList, error) {
	s.filterMu.Lock()
	defer s.filterMu.Unlock()

	if s.fetched != nil {
		return s.fetched, nil
	}
	if s.filterAttempts >= maxFilterAttempts {
		return nil, errFilterAttempts
	}
	s.filterAttempts++

	req, err := s.get(ctx, s.apiURL("/api/swf/filter-options", nil))
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: filter options: %w", ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: filter options: HTTP %d", ID, resp.StatusCode)
	}

	var p filtersPayload
	if err := generic.DecodeJSON(resp, &p); err != nil {
		return nil, fmt.Errorf("%s: filter options: %w", ID, err)
	}

	s.fetched = providers.FilterList{
		sortFilter(),
		{Key: "status", Name: "Estados", Kind: providers.FilterCheckGroup, Options: toOptions(p.Data.Statuses)},
		{Key: "genres", Name: "Géneros", Kind: providers.FilterCheckGroup, Options: toOptions(p.Data.Genres)},
	}
	s.log.Debugf("%s: loaded %d genres, %d statuses\n", ID, len(p.Data.Genres), len(p.Data.Statuses))

	return s.fetched, nil
}

func toOptions(in []optionDto) []providers.Option {
	out := make([]providers.Option, 0, len(in))
	for _, o := range in {
		out = append(out, providers.Option{Name: strings.TrimSpace(o.Name), Value: strconv.FormatInt(o.ID, 10)})
	}

	return out
}
