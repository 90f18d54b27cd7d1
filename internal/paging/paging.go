// Package paging holds the page state of one list view: current page,
// filters, items and loading flags. Fetching is delegated to a DataSource.
package paging

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
)

type Pagination struct {
	CurrentPage int  `json:"current_page"`
	LastPage    int  `json:"last_page"`
	PerPage     int  `json:"per_page"`
	Total       int  `json:"total"`
	From        *int `json:"from,omitempty"`
	To          *int `json:"to,omitempty"`
}

// Filters maps a filter name to an optional scalar. A nil value means the
// filter is unset.
type Filters map[string]any

// String returns the filter as text, or "" when it is unset.
func (f Filters) String(key string) string {
	value, ok := f[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case *string:
		if v == nil {
			return ""
		}
		return strings.TrimSpace(*v)
	default:
		return fmt.Sprint(v)
	}
}

func (f Filters) Clone() Filters {
	if f == nil {
		return Filters{}
	}
	return maps.Clone(f)
}

// Active lists the set filters as key=value pairs, sorted by key.
func (f Filters) Active() []string {
	keys := make([]string, 0, len(f))
	for key := range f {
		if f.String(key) != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key+"="+f.String(key))
	}
	return out
}

// DataSource fetches one page for the given filters.
type DataSource[T any] interface {
	LoadPage(ctx context.Context, page int, filters Filters) ([]T, Pagination, error)
}

// SourceFunc adapts a function to DataSource.
type SourceFunc[T any] func(ctx context.Context, page int, filters Filters) ([]T, Pagination, error)

func (f SourceFunc[T]) LoadPage(ctx context.Context, page int, filters Filters) ([]T, Pagination, error) {
	return f(ctx, page, filters)
}

// State is a read-only snapshot of a Manager.
type State[T any] struct {
	CurrentPage int
	Filters     Filters
	Items       []T
	Pagination  *Pagination
	Loading     bool
	LoadingMore bool
}
