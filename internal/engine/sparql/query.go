package sparql

import (
	"fmt"
	"strings"

	domainerrors "structuredness/internal/core/errors"
)

// Statistic names the quantity a query computes. It is used for error context,
// logging and metric labels.
type Statistic string

const (
	StatTypes                Statistic = "types"
	StatTypePredicates       Statistic = "type_predicates"
	StatInstanceCount        Statistic = "instance_count"
	StatTypeOccurrences      Statistic = "type_occurrences"
	StatPredicateOccurrences Statistic = "predicate_occurrences"
	StatTypesPredicates      Statistic = "types_predicates"
	StatInstanceCounts       Statistic = "instance_counts"
)

// Result variable names bound by the generated queries.
const (
	VarType        = "type"
	VarPredicate   = "p"
	VarInstances   = "instances"
	VarOccurrences = "occurrences"
)

// Query is a generated SELECT together with the parameters it was built from.
type Query struct {
	Statistic Statistic
	Graph     string
	Type      string
	Predicate string
	Text      string
}

// Builder generates the SPARQL text for every statistic, optionally scoped to
// one named graph. All interpolated IRIs are validated first.
type Builder struct {
	graph string
}

func NewBuilder(namedGraph string) (*Builder, error) {
	namedGraph = strings.TrimSpace(namedGraph)
	if namedGraph != "" {
		if err := ValidateIRI(namedGraph); err != nil {
			return nil, domainerrors.AddContext(err, domainerrors.CtxGraph, namedGraph)
		}
	}
	return &Builder{graph: namedGraph}, nil
}

// Graph returns the named graph scope, or "" for the default graph.
func (b *Builder) Graph() string {
	return b.graph
}

func (b *Builder) from() string {
	if b.graph == "" {
		return ""
	}
	return "FROM " + iriRef(b.graph) + "\n"
}

func (b *Builder) query(stat Statistic, typeIRI, predicate, text string) Query {
	return Query{
		Statistic: stat,
		Graph:     b.graph,
		Type:      typeIRI,
		Predicate: predicate,
		Text:      text,
	}
}

// TypesQuery selects every distinct rdf:type object.
func (b *Builder) TypesQuery() Query {
	text := fmt.Sprintf(`SELECT DISTINCT ?%s
%sWHERE {
  ?s %s ?%s .
  FILTER (isIRI(?%s))
}`, VarType, b.from(), iriRef(RDFType), VarType, VarType)
	return b.query(StatTypes, "", "", text)
}

// TypePredicatesQuery selects the distinct non-rdf:type predicates used by
// instances of typeIRI.
func (b *Builder) TypePredicatesQuery(typeIRI string) (Query, error) {
	if err := validateParam(typeIRI, StatTypePredicates, domainerrors.CtxType); err != nil {
		return Query{}, err
	}
	text := fmt.Sprintf(`SELECT DISTINCT ?%s
%sWHERE {
  ?s %s %s .
  ?s ?%s [] .
  FILTER (?%s != %s)
}`, VarPredicate, b.from(), iriRef(RDFType), iriRef(typeIRI), VarPredicate, VarPredicate, iriRef(RDFType))
	return b.query(StatTypePredicates, typeIRI, "", text), nil
}

// TypeInstanceCountQuery counts the distinct subjects typed typeIRI.
func (b *Builder) TypeInstanceCountQuery(typeIRI string) (Query, error) {
	if err := validateParam(typeIRI, StatInstanceCount, domainerrors.CtxType); err != nil {
		return Query{}, err
	}
	text := fmt.Sprintf(`SELECT (COUNT(DISTINCT ?s) AS ?%s)
%sWHERE {
  ?s %s %s .
}`, VarInstances, b.from(), iriRef(RDFType), iriRef(typeIRI))
	return b.query(StatInstanceCount, typeIRI, "", text), nil
}

// TypePredicateOccurrenceCountQuery counts distinct (subject, predicate) pairs
// among instances of typeIRI, excluding rdf:type. Multi-valued predicates
// count once per subject.
func (b *Builder) TypePredicateOccurrenceCountQuery(typeIRI string) (Query, error) {
	if err := validateParam(typeIRI, StatTypeOccurrences, domainerrors.CtxType); err != nil {
		return Query{}, err
	}
	text := fmt.Sprintf(`SELECT (COUNT(*) AS ?%s)
%sWHERE {
  SELECT DISTINCT ?s ?%s WHERE {
    ?s %s %s .
    ?s ?%s [] .
    FILTER (?%s != %s)
  }
}`, VarOccurrences, b.from(), VarPredicate, iriRef(RDFType), iriRef(typeIRI), VarPredicate, VarPredicate, iriRef(RDFType))
	return b.query(StatTypeOccurrences, typeIRI, "", text), nil
}

// PredicateOccurrenceCountQuery counts the distinct instances of typeIRI that
// have at least one value for predicate.
func (b *Builder) PredicateOccurrenceCountQuery(predicate, typeIRI string) (Query, error) {
	if err := validateParam(typeIRI, StatPredicateOccurrences, domainerrors.CtxType); err != nil {
		return Query{}, err
	}
	if err := validateParam(predicate, StatPredicateOccurrences, domainerrors.CtxPredicate); err != nil {
		return Query{}, domainerrors.AddContext(err, domainerrors.CtxType, typeIRI)
	}
	text := fmt.Sprintf(`SELECT (COUNT(DISTINCT ?s) AS ?%s)
%sWHERE {
  ?s %s %s .
  ?s %s [] .
}`, VarOccurrences, b.from(), iriRef(RDFType), iriRef(typeIRI), iriRef(predicate))
	return b.query(StatPredicateOccurrences, typeIRI, predicate, text), nil
}

// TypesPredicatesQuery returns one row per (type, predicate) pair in a single
// round trip. Types whose instances carry no other predicate appear once with
// ?p unbound.
func (b *Builder) TypesPredicatesQuery() Query {
	text := fmt.Sprintf(`SELECT DISTINCT ?%s ?%s
%sWHERE {
  ?s %s ?%s .
  FILTER (isIRI(?%s))
  OPTIONAL {
    ?s ?%s [] .
    FILTER (?%s != %s)
  }
}`, VarType, VarPredicate, b.from(), iriRef(RDFType), VarType, VarType, VarPredicate, VarPredicate, iriRef(RDFType))
	return b.query(StatTypesPredicates, "", "", text)
}

// InstanceCountsQuery counts distinct instances for every type at once.
func (b *Builder) InstanceCountsQuery() Query {
	text := fmt.Sprintf(`SELECT ?%s (COUNT(DISTINCT ?s) AS ?%s)
%sWHERE {
  ?s %s ?%s .
  FILTER (isIRI(?%s))
}
GROUP BY ?%s`, VarType, VarInstances, b.from(), iriRef(RDFType), VarType, VarType, VarType)
	return b.query(StatInstanceCounts, "", "", text)
}

func validateParam(iri string, stat Statistic, ctxKey string) error {
	if err := ValidateIRI(iri); err != nil {
		err = domainerrors.AddContext(err, domainerrors.CtxStatistic, string(stat))
		return domainerrors.AddContext(err, ctxKey, iri)
	}
	return nil
}
