package structuredness

import (
	"fmt"
	"strings"

	"structuredness/internal/engine/sparql"

	"github.com/gobwas/glob"
)

// TypeFilter drops types whose IRI matches any exclusion glob.
type TypeFilter struct {
	globs []glob.Glob
}

func NewTypeFilter(patterns []string) (*TypeFilter, error) {
	f := &TypeFilter{}
	for _, raw := range patterns {
		pattern := strings.TrimSpace(raw)
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile type exclusion %q: %w", pattern, err)
		}
		f.globs = append(f.globs, g)
	}
	return f, nil
}

// Excluded reports whether typeIRI matches an exclusion pattern.
func (f *TypeFilter) Excluded(typeIRI string) bool {
	if f == nil {
		return false
	}
	for _, g := range f.globs {
		if g.Match(typeIRI) {
			return true
		}
	}
	return false
}

// Apply returns a new set without the excluded types.
func (f *TypeFilter) Apply(types sparql.IRISet) sparql.IRISet {
	out := make(sparql.IRISet, len(types))
	for t := range types {
		if !f.Excluded(t) {
			out.Add(t)
		}
	}
	return out
}
