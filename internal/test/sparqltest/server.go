// Package sparqltest serves a small in-memory dataset over the SPARQL 1.1
// protocol for tests. It recognises only the query shapes produced by the
// sparql.Builder.
package sparqltest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"structuredness/internal/engine/sparql"
	"structuredness/internal/shared/util"
)

type Quad struct {
	Graph, Subject, Predicate, Object string
}

// Typed returns the rdf:type quad for s.
func Typed(graph, s, t string) Quad {
	return Quad{Graph: graph, Subject: s, Predicate: sparql.RDFType, Object: t}
}

var (
	fromRe      = regexp.MustCompile(`FROM <([^>]*)>`)
	typeRe      = regexp.MustCompile(`\?s <` + regexp.QuoteMeta(sparql.RDFType) + `> <([^>]*)> \.`)
	predicateRe = regexp.MustCompile(`\?s <([^>]*)> \[\] \.`)
)

type Server struct {
	*httptest.Server

	mu      sync.Mutex
	quads   []Quad
	queries []string
	status  int
	count   atomic.Int64
}

func NewServer(quads ...Quad) *Server {
	s := &Server{quads: quads}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Queries returns the query texts received so far.
func (s *Server) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

// FailWith makes every following request answer with the HTTP status code.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *Server) Requests() int {
	return int(s.count.Load())
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.count.Add(1)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	text := r.Form.Get("query")

	s.mu.Lock()
	s.queries = append(s.queries, text)
	status := s.status
	s.mu.Unlock()
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	graph := ""
	if m := fromRe.FindStringSubmatch(text); m != nil {
		graph = m[1]
	}
	ds := s.scope(graph)

	var res *sparql.Results
	switch {
	case strings.Contains(text, "GROUP BY ?"+sparql.VarType):
		res = sparql.NewResults([]string{sparql.VarType, sparql.VarInstances})
		for _, t := range ds.types() {
			res.Results.Bindings = append(res.Results.Bindings, sparql.Binding{
				sparql.VarType:      uri(t),
				sparql.VarInstances: count(len(ds.instances(t))),
			})
		}
	case strings.Contains(text, "OPTIONAL"):
		res = ds.typesPredicates()
	case strings.HasPrefix(text, "SELECT DISTINCT ?"+sparql.VarType+"\n"):
		res = sparql.NewResults([]string{sparql.VarType})
		for _, t := range ds.types() {
			res.Results.Bindings = append(res.Results.Bindings, sparql.Binding{sparql.VarType: uri(t)})
		}
	case strings.HasPrefix(text, "SELECT DISTINCT ?"+sparql.VarPredicate+"\n"):
		res = sparql.NewResults([]string{sparql.VarPredicate})
		for _, p := range ds.predicates(typeOf(text)) {
			res.Results.Bindings = append(res.Results.Bindings, sparql.Binding{sparql.VarPredicate: uri(p)})
		}
	case strings.Contains(text, "AS ?"+sparql.VarInstances):
		res = countResult(sparql.VarInstances, len(ds.instances(typeOf(text))))
	case strings.Contains(text, "COUNT(*) AS ?"+sparql.VarOccurrences):
		res = countResult(sparql.VarOccurrences, len(ds.pairs(typeOf(text))))
	case strings.Contains(text, "AS ?"+sparql.VarOccurrences):
		n := 0
		pm := predicateRe.FindStringSubmatch(text)
		for pair := range ds.pairs(typeOf(text)) {
			if pm != nil && pair[1] == pm[1] {
				n++
			}
		}
		res = countResult(sparql.VarOccurrences, n)
	default:
		http.Error(w, "unsupported query", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/sparql-results+json")
	_ = json.NewEncoder(w).Encode(res)
}

func typeOf(text string) string {
	if m := typeRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

type dataset []Quad

func (s *Server) scope(graph string) dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out dataset
	for _, q := range s.quads {
		if q.Graph == graph {
			out = append(out, q)
		}
	}
	return out
}

func (d dataset) types() []string {
	seen := map[string]bool{}
	for _, q := range d {
		if q.Predicate == sparql.RDFType {
			seen[q.Object] = true
		}
	}
	return util.SortedStringKeys(seen)
}

func (d dataset) instances(t string) map[string]bool {
	out := map[string]bool{}
	for _, q := range d {
		if q.Predicate == sparql.RDFType && q.Object == t {
			out[q.Subject] = true
		}
	}
	return out
}

func (d dataset) pairs(t string) map[[2]string]bool {
	inst := d.instances(t)
	out := map[[2]string]bool{}
	for _, q := range d {
		if inst[q.Subject] && q.Predicate != sparql.RDFType {
			out[[2]string{q.Subject, q.Predicate}] = true
		}
	}
	return out
}

func (d dataset) predicates(t string) []string {
	seen := map[string]bool{}
	for pair := range d.pairs(t) {
		seen[pair[1]] = true
	}
	return util.SortedStringKeys(seen)
}

func (d dataset) typesPredicates() *sparql.Results {
	res := sparql.NewResults([]string{sparql.VarType, sparql.VarPredicate})
	for _, t := range d.types() {
		preds := d.predicates(t)
		pairs := d.pairs(t)
		// Instances without other predicates leave ?p unbound.
		bare := false
		for subject := range d.instances(t) {
			has := false
			for pair := range pairs {
				if pair[0] == subject {
					has = true
					break
				}
			}
			if !has {
				bare = true
				break
			}
		}
		if bare {
			res.Results.Bindings = append(res.Results.Bindings, sparql.Binding{sparql.VarType: uri(t)})
		}
		for _, p := range preds {
			res.Results.Bindings = append(res.Results.Bindings, sparql.Binding{
				sparql.VarType:      uri(t),
				sparql.VarPredicate: uri(p),
			})
		}
	}
	return res
}

func uri(v string) sparql.Term { return sparql.Term{Type: sparql.TermURI, Value: v} }

func count(n int) sparql.Term {
	return sparql.Term{Type: sparql.TermLiteral, Value: strconv.Itoa(n), Datatype: "http://www.w3.org/2001/XMLSchema#integer"}
}

func countResult(variable string, n int) *sparql.Results {
	return sparql.NewResults([]string{variable}, sparql.Binding{variable: count(n)})
}

// PersonDataset has two Person instances covering three of four
// (instance, predicate) slots. Its structuredness is 0.75.
func PersonDataset(graph string) []Quad {
	const ex = "http://example.org/"
	return []Quad{
		Typed(graph, ex+"A", ex+"Person"),
		{Graph: graph, Subject: ex + "A", Predicate: ex + "name", Object: "Alice"},
		{Graph: graph, Subject: ex + "A", Predicate: ex + "age", Object: "42"},
		Typed(graph, ex+"B", ex+"Person"),
		{Graph: graph, Subject: ex + "B", Predicate: ex + "name", Object: "Bob"},
	}
}

// TwoTypeDataset adds an Org instance with no other predicates. Its
// structuredness is 0.6.
func TwoTypeDataset(graph string) []Quad {
	return append(PersonDataset(graph), Typed(graph, "http://example.org/acme", "http://example.org/Org"))
}
