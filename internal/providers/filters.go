package providers

import (
	"fmt"
	"strings"
)

type FilterKind int

const (
	FilterHeader FilterKind = iota
	FilterSelect
	FilterCheckGroup
	FilterSort
)

type Option struct {
	Name  string
	Value string
}

// Filter is one user-facing search filter. Selected holds option indices:
// at most one for FilterSelect and FilterSort, any number for FilterCheckGroup.
type Filter struct {
	Key       string
	Name      string
	Kind      FilterKind
	Options   []Option
	Selected  []int
	Ascending bool
}

type FilterList []Filter

func (fl FilterList) Get(key string) (Filter, bool) {
	for _, f := range fl {
		if f.Key == key {
			return f, true
		}
	}

	return Filter{}, false
}

// Values returns the option values selected for key, in option order.
func (fl FilterList) Values(key string) []string {
	f, ok := fl.Get(key)
	if !ok {
		return nil
	}

	var out []string
	for _, idx := range f.Selected {
		if idx >= 0 && idx < len(f.Options) {
			out = append(out, f.Options[idx].Value)
		}
	}

	return out
}

func (fl FilterList) Value(key string) (string, bool) {
	vals := fl.Values(key)
	if len(vals) == 0 {
		return "", false
	}

	return vals[0], true
}

func (fl FilterList) Ascending(key string) bool {
	f, ok := fl.Get(key)
	return ok && f.Ascending
}

// Empty reports whether no filter carries a selection.
func (fl FilterList) Empty() bool {
	for _, f := range fl {
		if len(f.Selected) > 0 {
			return false
		}
	}

	return true
}

// Apply parses "key=value[,value]" assignments (options matched by value or
// case-insensitive name) onto a copy of fl. Sort filters accept a trailing
// ":asc" or ":desc".
func (fl FilterList) Apply(assignments []string) (FilterList, error) {
	out := make(FilterList, len(fl))
	for i, f := range fl {
		f.Selected = append([]int(nil), f.Selected...)
		out[i] = f
	}

	for _, a := range assignments {
		key, raw, ok := strings.Cut(a, "=")
		if !ok {
			return nil, fmt.Errorf("filter %q: expected key=value", a)
		}
		key = strings.TrimSpace(key)

		idx := -1
		for i := range out {
			if out[i].Key == key {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("unknown filter %q", key)
		}

		f := &out[idx]
		if f.Kind == FilterSort {
			if base, dir, ok := strings.Cut(raw, ":"); ok {
				raw = base
				f.Ascending = strings.EqualFold(dir, "asc")
			}
		}

		f.Selected = f.Selected[:0]
		for v := range strings.SplitSeq(raw, ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}

			opt := f.indexOf(v)
			if opt < 0 {
				return nil, fmt.Errorf("filter %q has no option %q", key, v)
			}
			f.Selected = append(f.Selected, opt)
		}

		if f.Kind != FilterCheckGroup && len(f.Selected) > 1 {
			return nil, fmt.Errorf("filter %q accepts a single option", key)
		}
	}

	return out, nil
}

func (f Filter) indexOf(v string) int {
	for i, o := range f.Options {
		if o.Value == v || strings.EqualFold(o.Name, v) {
			return i
		}
	}

	return -1
}
