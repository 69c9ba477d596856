package sparql

import (
	"strconv"
	"strings"

	domainerrors "structuredness/internal/core/errors"
)

const (
	TermURI     = "uri"
	TermLiteral = "literal"
	TermBNode   = "bnode"
)

// Term is one bound value in the SPARQL 1.1 JSON results format.
type Term struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Lang     string `json:"xml:lang,omitempty"`
	Datatype string `json:"datatype,omitempty"`
}

// Binding maps variable names to values. Unbound variables are absent.
type Binding map[string]Term

// Results is a decoded application/sparql-results+json document.
type Results struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []Binding `json:"bindings"`
	} `json:"results"`
}

// NewResults builds a results table from rows; mostly useful in tests and
// in-process executors.
func NewResults(vars []string, rows ...Binding) *Results {
	r := &Results{}
	r.Head.Vars = append([]string(nil), vars...)
	r.Results.Bindings = append([]Binding(nil), rows...)
	return r
}

// Rows returns the bindings, tolerating a nil receiver.
func (r *Results) Rows() []Binding {
	if r == nil {
		return nil
	}
	return r.Results.Bindings
}

// ExtractCount parses the integer bound to variable in the first row.
func ExtractCount(results *Results, variable string) (int, error) {
	rows := results.Rows()
	if len(rows) == 0 {
		return 0, malformed("count result has no rows", variable)
	}
	term, ok := rows[0][variable]
	if !ok {
		return 0, malformed("count variable is unbound", variable)
	}
	return parseCount(term, variable)
}

// ExtractIRISet collects the IRIs bound to variable across all rows. Rows
// where the variable is unbound are skipped.
func ExtractIRISet(results *Results, variable string) (IRISet, error) {
	set := make(IRISet)
	for _, row := range results.Rows() {
		term, ok := row[variable]
		if !ok {
			continue
		}
		if term.Type != TermURI {
			return nil, malformed("expected an IRI, got "+termKind(term)+" "+strconvQuote(term.Value), variable)
		}
		set.Add(term.Value)
	}
	return set, nil
}

// ExtractIRISetsByKey groups the IRIs bound to valueVar by the IRI bound to
// keyVar. Every key that appears gets an entry, possibly an empty set when all
// its rows leave valueVar unbound.
func ExtractIRISetsByKey(results *Results, keyVar, valueVar string) (map[string]IRISet, error) {
	out := make(map[string]IRISet)
	for _, row := range results.Rows() {
		key, ok := row[keyVar]
		if !ok {
			return nil, malformed("grouping variable is unbound", keyVar)
		}
		if key.Type != TermURI {
			return nil, malformed("expected an IRI, got "+termKind(key)+" "+strconvQuote(key.Value), keyVar)
		}
		set, ok := out[key.Value]
		if !ok {
			set = make(IRISet)
			out[key.Value] = set
		}
		value, ok := row[valueVar]
		if !ok {
			continue
		}
		if value.Type != TermURI {
			return nil, malformed("expected an IRI, got "+termKind(value)+" "+strconvQuote(value.Value), valueVar)
		}
		set.Add(value.Value)
	}
	return out, nil
}

// ExtractCountsByKey reads one count per key IRI, as produced by a GROUP BY.
func ExtractCountsByKey(results *Results, keyVar, countVar string) (map[string]int, error) {
	out := make(map[string]int)
	for _, row := range results.Rows() {
		key, ok := row[keyVar]
		if !ok {
			return nil, malformed("grouping variable is unbound", keyVar)
		}
		if key.Type != TermURI {
			return nil, malformed("expected an IRI, got "+termKind(key)+" "+strconvQuote(key.Value), keyVar)
		}
		term, ok := row[countVar]
		if !ok {
			return nil, malformed("count variable is unbound", countVar)
		}
		n, err := parseCount(term, countVar)
		if err != nil {
			return nil, domainerrors.AddContext(err, domainerrors.CtxType, key.Value)
		}
		if _, dup := out[key.Value]; dup {
			return nil, domainerrors.AddContext(malformed("duplicate group row", keyVar), domainerrors.CtxType, key.Value)
		}
		out[key.Value] = n
	}
	return out, nil
}

func parseCount(term Term, variable string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(term.Value))
	if err != nil {
		return 0, domainerrors.AddContext(
			domainerrors.Wrap(err, domainerrors.CodeMalformedResult, "count is not an integer"),
			domainerrors.CtxVariable, variable,
		)
	}
	if n < 0 {
		return 0, malformed("count is negative: "+term.Value, variable)
	}
	return n, nil
}

func malformed(msg, variable string) error {
	return domainerrors.AddContext(domainerrors.New(domainerrors.CodeMalformedResult, msg), domainerrors.CtxVariable, variable)
}

func termKind(t Term) string {
	if t.Type == "" {
		return "untyped term"
	}
	return t.Type
}

func strconvQuote(s string) string {
	return strconv.Quote(s)
}
