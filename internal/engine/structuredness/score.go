// Package structuredness computes the Duan et al. structuredness (coherence)
// of an RDF dataset from per-type statistics.
package structuredness

import (
	"fmt"
	"sort"

	domainerrors "structuredness/internal/core/errors"
)

// TypeStats are the raw per-type quantities read from the endpoint.
type TypeStats struct {
	Type string
	// Predicates is |P(t)|, the distinct non-rdf:type predicates of instances of t.
	Predicates int
	// Instances is I(t), the distinct subjects typed t.
	Instances int
	// Occurrences is O(t), the distinct (subject, predicate) pairs of instances of t.
	Occurrences int
}

// TypeScore is one type's share of the final score.
type TypeScore struct {
	Type         string  `json:"type"`
	Predicates   int     `json:"predicates"`
	Instances    int     `json:"instances"`
	Occurrences  int     `json:"occurrences"`
	Coverage     float64 `json:"coverage"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Score is the structuredness of a dataset with its per-type breakdown.
type Score struct {
	Value     float64     `json:"score"`
	WeightSum float64     `json:"weight_sum"`
	Types     []TypeScore `json:"types"`
}

// Compute combines per-type statistics into the weighted structuredness:
//
//	coverage(t) = O(t) / (|P(t)| * I(t))    (denominator 1 when |P(t)| = 0)
//	weight(t)   = (|P(t)| + I(t)) / W,      W = sum over t of |P(t)| + I(t)
//	score       = sum over t of coverage(t) * weight(t)
//
// W is computed once from the same stats slice used for scoring. Types are
// scored in IRI order so repeated runs sum in the same order.
func Compute(stats []TypeStats) (Score, error) {
	if len(stats) == 0 {
		return Score{}, domainerrors.New(domainerrors.CodeEmptyDataset, "dataset has no rdf:type statements")
	}

	ordered := append([]TypeStats(nil), stats...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Type < ordered[j].Type })

	var weightSum int64
	for i, s := range ordered {
		if err := checkConsistent(s); err != nil {
			return Score{}, err
		}
		if i > 0 && ordered[i-1].Type == s.Type {
			return Score{}, typeError(domainerrors.New(domainerrors.CodeMalformedResult, "type listed twice"), s.Type)
		}
		weightSum += int64(s.Predicates) + int64(s.Instances)
	}
	if weightSum == 0 {
		return Score{}, domainerrors.New(domainerrors.CodeEmptyDataset, "dataset types have no instances or predicates")
	}

	w := float64(weightSum)
	out := Score{WeightSum: w, Types: make([]TypeScore, 0, len(ordered))}
	for _, s := range ordered {
		// Zero-predicate types keep denominator 1, so their coverage is 0.
		denom := 1.0
		if s.Predicates > 0 {
			denom = float64(s.Predicates) * float64(s.Instances)
		}
		coverage := float64(s.Occurrences) / denom
		weight := float64(s.Predicates+s.Instances) / w
		contribution := coverage * weight

		out.Value += contribution
		out.Types = append(out.Types, TypeScore{
			Type:         s.Type,
			Predicates:   s.Predicates,
			Instances:    s.Instances,
			Occurrences:  s.Occurrences,
			Coverage:     coverage,
			Weight:       weight,
			Contribution: contribution,
		})
	}
	return out, nil
}

func checkConsistent(s TypeStats) error {
	if s.Predicates < 0 || s.Instances < 0 || s.Occurrences < 0 {
		return typeError(domainerrors.Newf(domainerrors.CodeMalformedResult,
			"negative statistic (predicates=%d instances=%d occurrences=%d)", s.Predicates, s.Instances, s.Occurrences), s.Type)
	}
	if s.Predicates > 0 && s.Instances == 0 {
		return typeError(domainerrors.Newf(domainerrors.CodeMalformedResult,
			"type has %d predicates but no instances", s.Predicates), s.Type)
	}
	slots := int64(s.Predicates) * int64(s.Instances)
	if s.Predicates == 0 {
		slots = 0
	}
	if int64(s.Occurrences) > slots {
		return typeError(domainerrors.New(domainerrors.CodeMalformedResult,
			fmt.Sprintf("occurrence count %d exceeds %d predicate slots", s.Occurrences, slots)), s.Type)
	}
	return nil
}

func typeError(err error, typeIRI string) error {
	return domainerrors.AddContext(err, domainerrors.CtxType, typeIRI)
}
