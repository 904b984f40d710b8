// Package extractor turns loaded search-result pages into listings, one extractor per source.
package extractor

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/staydex/internal/domain"
)

// Registry maps source names to extractors.
type Registry struct {
	byName map[string]domain.Extractor
}

// NewRegistry registers extractors by their Source name. Later duplicates win.
func NewRegistry(extractors ...domain.Extractor) *Registry {
	r := &Registry{byName: make(map[string]domain.Extractor, len(extractors))}
	for _, e := range extractors {
		r.byName[e.Source()] = e
	}
	return r
}

// Default returns a registry with every built-in extractor.
func Default() *Registry {
	return NewRegistry(NewAirbnb(), NewBooking())
}

// Get returns the extractor for source or domain.ErrUnknownSource.
func (r *Registry) Get(source string) (domain.Extractor, error) {
	e, ok := r.byName[source]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSource, source)
	}
	return e, nil
}

// Sources returns registered source names in sorted order.
func (r *Registry) Sources() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
