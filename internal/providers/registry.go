package providers

import (
	"fmt"
	"sort"
)

type Registry struct {
	sources map[string]Source
}

func NewRegistry(srcs ...Source) *Registry {
	r := &Registry{sources: make(map[string]Source, len(srcs))}
	for _, s := range srcs {
		r.Register(s)
	}

	return r
}

func (r *Registry) Register(s Source) {
	r.sources[s.ID()] = s
}

func (r *Registry) Get(id string) (Source, error) {
	s, ok := r.sources[id]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", id)
	}

	return s, nil
}

func (r *Registry) List() []Source {
	out := make([]Source, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
