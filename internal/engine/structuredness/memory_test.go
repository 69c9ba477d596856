package structuredness

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	domainerrors "structuredness/internal/core/errors"
	"structuredness/internal/engine/sparql"
)

const (
	ex       = "http://example.org/"
	person   = ex + "Person"
	org      = ex + "Org"
	name     = ex + "name"
	age      = ex + "age"
	worksFor = ex + "worksFor"
)

type triple struct {
	g, s, p, o string
}

// memoryEndpoint answers the generated statistics from an in-memory quad list.
// The default graph holds the quads with an empty graph name.
type memoryEndpoint struct {
	mu       sync.Mutex
	quads    []triple
	calls    map[sparql.Statistic]int
	inFlight int
	maxSeen  int

	delay time.Duration
	fail  func(q sparql.Query) error
}

func newMemoryEndpoint(quads ...triple) *memoryEndpoint {
	return &memoryEndpoint{quads: quads, calls: make(map[sparql.Statistic]int)}
}

func typed(g, s, t string) triple { return triple{g: g, s: s, p: sparql.RDFType, o: t} }

func (m *memoryEndpoint) callCount(stat sparql.Statistic) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[stat]
}

func (m *memoryEndpoint) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

func (m *memoryEndpoint) Select(ctx context.Context, q sparql.Query) (*sparql.Results, error) {
	m.mu.Lock()
	m.calls[q.Statistic]++
	m.inFlight++
	if m.inFlight > m.maxSeen {
		m.maxSeen = m.inFlight
	}
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeEndpointUnreachable, "send query")
	}
	if m.fail != nil {
		if err := m.fail(q); err != nil {
			return nil, err
		}
	}
	if q.Graph != "" && !strings.Contains(q.Text, "FROM <"+q.Graph+">") {
		return nil, domainerrors.New(domainerrors.CodeMalformedQuery, "graph scope missing from query text")
	}

	quads := m.scope(q.Graph)
	switch q.Statistic {
	case sparql.StatTypes:
		return iriRows(sparql.VarType, distinctTypes(quads)), nil
	case sparql.StatTypePredicates:
		return iriRows(sparql.VarPredicate, predicatesOf(quads, q.Type)), nil
	case sparql.StatInstanceCount:
		return countRow(sparql.VarInstances, len(instancesOf(quads, q.Type))), nil
	case sparql.StatTypeOccurrences:
		return countRow(sparql.VarOccurrences, len(pairsOf(quads, q.Type))), nil
	case sparql.StatPredicateOccurrences:
		n := 0
		for pair := range pairsOf(quads, q.Type) {
			if pair[1] == q.Predicate {
				n++
			}
		}
		return countRow(sparql.VarOccurrences, n), nil
	case sparql.StatTypesPredicates:
		return typesPredicatesRows(quads), nil
	case sparql.StatInstanceCounts:
		res := sparql.NewResults([]string{sparql.VarType, sparql.VarInstances})
		for t := range distinctTypes(quads) {
			res.Results.Bindings = append(res.Results.Bindings, sparql.Binding{
				sparql.VarType:      {Type: sparql.TermURI, Value: t},
				sparql.VarInstances: countTerm(len(instancesOf(quads, t))),
			})
		}
		return res, nil
	}
	return nil, domainerrors.Newf(domainerrors.CodeMalformedQuery, "unsupported statistic %s", q.Statistic)
}

func (m *memoryEndpoint) scope(graph string) []triple {
	out := make([]triple, 0, len(m.quads))
	for _, q := range m.quads {
		if q.g == graph {
			out = append(out, q)
		}
	}
	return out
}

func distinctTypes(quads []triple) map[string]bool {
	out := make(map[string]bool)
	for _, q := range quads {
		if q.p == sparql.RDFType {
			out[q.o] = true
		}
	}
	return out
}

func instancesOf(quads []triple, t string) map[string]bool {
	out := make(map[string]bool)
	for _, q := range quads {
		if q.p == sparql.RDFType && q.o == t {
			out[q.s] = true
		}
	}
	return out
}

func pairsOf(quads []triple, t string) map[[2]string]bool {
	instances := instancesOf(quads, t)
	out := make(map[[2]string]bool)
	for _, q := range quads {
		if instances[q.s] && q.p != sparql.RDFType {
			out[[2]string{q.s, q.p}] = true
		}
	}
	return out
}

func predicatesOf(quads []triple, t string) map[string]bool {
	out := make(map[string]bool)
	for pair := range pairsOf(quads, t) {
		out[pair[1]] = true
	}
	return out
}

// typesPredicatesRows mirrors DISTINCT ?type ?p with an OPTIONAL predicate:
// a subject without other predicates yields a row with ?p unbound.
func typesPredicatesRows(quads []triple) *sparql.Results {
	res := sparql.NewResults([]string{sparql.VarType, sparql.VarPredicate})
	seen := make(map[[2]string]bool)
	for t := range distinctTypes(quads) {
		for s := range instancesOf(quads, t) {
			preds := make(map[string]bool)
			for _, q := range quads {
				if q.s == s && q.p != sparql.RDFType {
					preds[q.p] = true
				}
			}
			if len(preds) == 0 {
				preds[""] = true
			}
			for p := range preds {
				key := [2]string{t, p}
				if seen[key] {
					continue
				}
				seen[key] = true
				row := sparql.Binding{sparql.VarType: {Type: sparql.TermURI, Value: t}}
				if p != "" {
					row[sparql.VarPredicate] = sparql.Term{Type: sparql.TermURI, Value: p}
				}
				res.Results.Bindings = append(res.Results.Bindings, row)
			}
		}
	}
	return res
}

func iriRows(variable string, values map[string]bool) *sparql.Results {
	res := sparql.NewResults([]string{variable})
	for v := range values {
		res.Results.Bindings = append(res.Results.Bindings, sparql.Binding{variable: {Type: sparql.TermURI, Value: v}})
	}
	return res
}

func countRow(variable string, n int) *sparql.Results {
	return sparql.NewResults([]string{variable}, sparql.Binding{variable: countTerm(n)})
}

func countTerm(n int) sparql.Term {
	return sparql.Term{Type: sparql.TermLiteral, Value: strconv.Itoa(n), Datatype: "http://www.w3.org/2001/XMLSchema#integer"}
}

// personDataset is the single-type scenario: A has {name, age}, B has {name}.
func personDataset(g string) []triple {
	return []triple{
		typed(g, ex+"A", person),
		{g: g, s: ex + "A", p: name, o: "Alice"},
		{g: g, s: ex + "A", p: age, o: "42"},
		typed(g, ex+"B", person),
		{g: g, s: ex + "B", p: name, o: "Bob"},
	}
}

// twoTypeDataset adds an Org with one instance and no other predicates.
func twoTypeDataset(g string) []triple {
	return append(personDataset(g), typed(g, ex+"acme", org))
}

func allOptions() []Options {
	var out []Options
	for _, mode := range []OccurrenceMode{OccurrenceAggregate, OccurrencePerPredicate} {
		for _, batch := range []bool{false, true} {
			out = append(out, Options{Concurrency: 4, OccurrenceMode: mode, Batch: batch})
		}
	}
	return out
}

func optionsName(o Options) string {
	return fmt.Sprintf("%s/batch=%t", o.OccurrenceMode, o.Batch)
}
