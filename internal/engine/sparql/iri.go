package sparql

import (
	"net/url"
	"strings"

	domainerrors "structuredness/internal/core/errors"
	"structuredness/internal/shared/util"

	"github.com/cayleygraph/quad"
	"github.com/cayleygraph/quad/voc/rdf"
)

// RDFType is the full rdf:type predicate IRI.
var RDFType = string(quad.IRI(rdf.Type).Full())

// ValidateIRI rejects anything that is not an absolute IRI that can be safely
// written as a SPARQL IRIREF. Characters excluded by the IRIREF production
// (whitespace, controls, <>"{}|^`\) are refused rather than escaped.
func ValidateIRI(raw string) error {
	if raw == "" {
		return domainerrors.New(domainerrors.CodeValidationError, "IRI must not be empty")
	}
	for _, r := range raw {
		if r <= 0x20 || r == 0x7f {
			return domainerrors.Newf(domainerrors.CodeValidationError, "IRI %q contains whitespace or control characters", raw)
		}
		if strings.ContainsRune(`<>"{}|^`+"`"+`\`, r) {
			return domainerrors.Newf(domainerrors.CodeValidationError, "IRI %q contains forbidden character %q", raw, r)
		}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeValidationError, "IRI "+quoteIRI(raw)+" is not parseable")
	}
	if u.Scheme == "" {
		return domainerrors.Newf(domainerrors.CodeValidationError, "IRI %q is not absolute", raw)
	}
	return nil
}

// iriRef renders an already validated IRI in angle brackets.
func iriRef(iri string) string {
	return quad.IRI(iri).String()
}

func quoteIRI(raw string) string {
	return `"` + raw + `"`
}

// IRISet is an unordered, deduplicated set of IRIs.
type IRISet map[string]struct{}

func (s IRISet) Add(iri string) {
	s[iri] = struct{}{}
}

func (s IRISet) Has(iri string) bool {
	_, ok := s[iri]
	return ok
}

func (s IRISet) Len() int {
	return len(s)
}

// Sorted returns the members in lexical order.
func (s IRISet) Sorted() []string {
	return util.SortedStringKeys(s)
}
