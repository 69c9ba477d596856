package structuredness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	domainerrors "structuredness/internal/core/errors"
	"structuredness/internal/engine/sparql"
	"structuredness/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// OccurrenceMode selects how O(t) is obtained. Both modes yield the same
// number: the count of distinct (subject, predicate) pairs equals the sum over
// predicates of the distinct subjects using that predicate.
type OccurrenceMode string

const (
	// OccurrenceAggregate issues one COUNT over distinct (s, p) pairs per type.
	OccurrenceAggregate OccurrenceMode = "aggregate"
	// OccurrencePerPredicate issues one COUNT per predicate per type and sums.
	OccurrencePerPredicate OccurrenceMode = "per_predicate"
)

func ParseOccurrenceMode(raw string) (OccurrenceMode, error) {
	switch OccurrenceMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", OccurrenceAggregate:
		return OccurrenceAggregate, nil
	case OccurrencePerPredicate, "per-predicate":
		return OccurrencePerPredicate, nil
	default:
		return "", fmt.Errorf("occurrence mode must be one of: aggregate, per_predicate; got %q", raw)
	}
}

type Options struct {
	// Concurrency bounds the number of queries in flight. Values < 1 mean 1.
	Concurrency    int
	OccurrenceMode OccurrenceMode
	// Batch fetches predicate sets and instance counts for all types with two
	// grouped queries instead of two queries per type.
	Batch  bool
	Filter *TypeFilter
	Logger *slog.Logger
}

// Calculator gathers per-type statistics from an endpoint and scores them.
// A Calculator holds no per-run state and may be reused.
type Calculator struct {
	exec    sparql.Executor
	builder *sparql.Builder
	opts    Options
	sem     *semaphore.Weighted
	logger  *slog.Logger
}

func NewCalculator(exec sparql.Executor, builder *sparql.Builder, opts Options) (*Calculator, error) {
	if exec == nil {
		return nil, fmt.Errorf("query executor is required")
	}
	if builder == nil {
		return nil, fmt.Errorf("query builder is required")
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	mode, err := ParseOccurrenceMode(string(opts.OccurrenceMode))
	if err != nil {
		return nil, err
	}
	opts.OccurrenceMode = mode
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{
		exec:    exec,
		builder: builder,
		opts:    opts,
		sem:     semaphore.NewWeighted(int64(opts.Concurrency)),
		logger:  logger,
	}, nil
}

// Compute collects statistics and returns the structuredness score. Any
// failed query aborts the run and cancels the queries still in flight.
func (c *Calculator) Compute(ctx context.Context) (Score, error) {
	ctx, span := observability.Tracer.Start(ctx, "structuredness.Compute", trace.WithAttributes(
		attribute.String("sparql.graph", c.builder.Graph()),
		attribute.String("occurrence_mode", string(c.opts.OccurrenceMode)),
		attribute.Bool("batch", c.opts.Batch),
	))
	defer span.End()

	stats, err := c.Collect(ctx)
	if err != nil {
		span.RecordError(err)
		return Score{}, err
	}
	score, err := Compute(stats)
	if err != nil {
		span.RecordError(err)
		return Score{}, c.scoped(err)
	}
	span.SetAttributes(attribute.Int("types", len(score.Types)), attribute.Float64("score", score.Value))
	return score, nil
}

// Collect returns one TypeStats per type in the scoped dataset, ordered by
// type IRI.
func (c *Calculator) Collect(ctx context.Context) ([]TypeStats, error) {
	all, err := c.selectIRIs(ctx, c.builder.TypesQuery(), sparql.VarType)
	if err != nil {
		return nil, err
	}
	types := c.opts.Filter.Apply(all)
	if types.Len() == 0 {
		msg := "dataset has no rdf:type statements"
		if all.Len() > 0 {
			msg = fmt.Sprintf("all %d types were excluded by filter", all.Len())
		}
		return nil, c.scoped(domainerrors.New(domainerrors.CodeEmptyDataset, msg))
	}
	c.logger.Debug("discovered types", "types", types.Len(), "excluded", all.Len()-types.Len(), "graph", c.builder.Graph())

	if c.opts.Batch {
		return c.collectBatched(ctx, types.Sorted())
	}
	return c.collectPerType(ctx, types.Sorted())
}

func (c *Calculator) collectPerType(ctx context.Context, types []string) ([]TypeStats, error) {
	stats := make([]TypeStats, len(types))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range types {
		g.Go(func() error {
			s, err := c.collectType(gctx, t)
			if err != nil {
				return err
			}
			stats[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

func (c *Calculator) collectType(ctx context.Context, typeIRI string) (TypeStats, error) {
	var (
		predicates  sparql.IRISet
		instances   int
		occurrences int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q, err := c.builder.TypePredicatesQuery(typeIRI)
		if err != nil {
			return err
		}
		predicates, err = c.selectIRIs(gctx, q, sparql.VarPredicate)
		return err
	})
	g.Go(func() error {
		q, err := c.builder.TypeInstanceCountQuery(typeIRI)
		if err != nil {
			return err
		}
		instances, err = c.selectCount(gctx, q, sparql.VarInstances)
		return err
	})
	if c.opts.OccurrenceMode == OccurrenceAggregate {
		g.Go(func() error {
			var err error
			occurrences, err = c.typeOccurrences(gctx, typeIRI)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return TypeStats{}, err
	}

	if c.opts.OccurrenceMode == OccurrencePerPredicate {
		var err error
		occurrences, err = c.predicateOccurrences(ctx, typeIRI, predicates)
		if err != nil {
			return TypeStats{}, err
		}
	}

	s := TypeStats{Type: typeIRI, Predicates: predicates.Len(), Instances: instances, Occurrences: occurrences}
	c.logger.Debug("type statistics", "type", typeIRI, "predicates", s.Predicates, "instances", s.Instances, "occurrences", s.Occurrences)
	return s, nil
}

func (c *Calculator) collectBatched(ctx context.Context, types []string) ([]TypeStats, error) {
	var (
		predicatesByType map[string]sparql.IRISet
		instancesByType  map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q := c.builder.TypesPredicatesQuery()
		res, err := c.run(gctx, q)
		if err != nil {
			return err
		}
		predicatesByType, err = sparql.ExtractIRISetsByKey(res, sparql.VarType, sparql.VarPredicate)
		return c.describe(err, q)
	})
	g.Go(func() error {
		q := c.builder.InstanceCountsQuery()
		res, err := c.run(gctx, q)
		if err != nil {
			return err
		}
		instancesByType, err = sparql.ExtractCountsByKey(res, sparql.VarType, sparql.VarInstances)
		return c.describe(err, q)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := make([]TypeStats, len(types))
	for i, t := range types {
		predicates, ok := predicatesByType[t]
		if !ok {
			return nil, c.missingFromGroup(sparql.StatTypesPredicates, t)
		}
		instances, ok := instancesByType[t]
		if !ok {
			return nil, c.missingFromGroup(sparql.StatInstanceCounts, t)
		}
		stats[i] = TypeStats{Type: t, Predicates: predicates.Len(), Instances: instances}
	}

	g, gctx = errgroup.WithContext(ctx)
	for i, t := range types {
		g.Go(func() error {
			var (
				n   int
				err error
			)
			if c.opts.OccurrenceMode == OccurrencePerPredicate {
				n, err = c.predicateOccurrences(gctx, t, predicatesByType[t])
			} else {
				n, err = c.typeOccurrences(gctx, t)
			}
			if err != nil {
				return err
			}
			stats[i].Occurrences = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

func (c *Calculator) typeOccurrences(ctx context.Context, typeIRI string) (int, error) {
	q, err := c.builder.TypePredicateOccurrenceCountQuery(typeIRI)
	if err != nil {
		return 0, err
	}
	return c.selectCount(ctx, q, sparql.VarOccurrences)
}

// predicateOccurrences sums, over every predicate of the type, the number of
// distinct instances using it.
func (c *Calculator) predicateOccurrences(ctx context.Context, typeIRI string, predicates sparql.IRISet) (int, error) {
	ordered := predicates.Sorted()
	counts := make([]int, len(ordered))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range ordered {
		g.Go(func() error {
			q, err := c.builder.PredicateOccurrenceCountQuery(p, typeIRI)
			if err != nil {
				return err
			}
			counts[i], err = c.selectCount(gctx, q, sparql.VarOccurrences)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}

func (c *Calculator) selectCount(ctx context.Context, q sparql.Query, variable string) (int, error) {
	res, err := c.run(ctx, q)
	if err != nil {
		return 0, err
	}
	n, err := sparql.ExtractCount(res, variable)
	if err != nil {
		return 0, c.describe(err, q)
	}
	return n, nil
}

func (c *Calculator) selectIRIs(ctx context.Context, q sparql.Query, variable string) (sparql.IRISet, error) {
	res, err := c.run(ctx, q)
	if err != nil {
		return nil, err
	}
	set, err := sparql.ExtractIRISet(res, variable)
	if err != nil {
		return nil, c.describe(err, q)
	}
	return set, nil
}

// run executes q while holding one concurrency slot.
func (c *Calculator) run(ctx context.Context, q sparql.Query) (*sparql.Results, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := c.exec.Select(ctx, q)
	if err != nil {
		return nil, c.describe(err, q)
	}
	return res, nil
}

// describe names the statistic, type and predicate behind err.
func (c *Calculator) describe(err error, q sparql.Query) error {
	if err == nil {
		return nil
	}
	err = domainerrors.AddContext(err, domainerrors.CtxStatistic, string(q.Statistic))
	if q.Type != "" {
		err = domainerrors.AddContext(err, domainerrors.CtxType, q.Type)
	}
	if q.Predicate != "" {
		err = domainerrors.AddContext(err, domainerrors.CtxPredicate, q.Predicate)
	}
	return c.scoped(err)
}

func (c *Calculator) scoped(err error) error {
	if g := c.builder.Graph(); g != "" {
		return domainerrors.AddContext(err, domainerrors.CtxGraph, g)
	}
	return err
}

func (c *Calculator) missingFromGroup(stat sparql.Statistic, typeIRI string) error {
	err := domainerrors.New(domainerrors.CodeMalformedResult, "type missing from grouped result")
	err = domainerrors.AddContext(err, domainerrors.CtxStatistic, string(stat))
	err = domainerrors.AddContext(err, domainerrors.CtxType, typeIRI)
	return c.scoped(err)
}
