package app

import (
	"context"
	"fmt"
	"time"

	domainerrors "structuredness/internal/core/errors"
	"structuredness/internal/core/ports"
	"structuredness/internal/data/history"
	"structuredness/internal/shared/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type calculatorService struct {
	app *App
}

var _ ports.CalculatorService = (*calculatorService)(nil)

func NewCalculatorService(app *App) ports.CalculatorService {
	return &calculatorService{app: app}
}

func (a *App) CalculatorService() ports.CalculatorService {
	return NewCalculatorService(a)
}

// Run computes the score once. A failed history write is logged and reported
// through RunReport.Saved; the computed score is still returned.
func (s *calculatorService) Run(ctx context.Context) (ports.RunReport, error) {
	if s.app.calculator == nil {
		return ports.RunReport{}, fmt.Errorf("calculator is not configured")
	}
	runID := uuid.NewString()
	cfg := s.app.Config
	ctx, span := observability.Tracer.Start(ctx, "calculatorService.Run", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("sparql.endpoint", cfg.Endpoint.URL),
	))
	defer span.End()

	logger := s.app.logger.With("run_id", runID, "endpoint", cfg.Endpoint.URL, "graph", cfg.Endpoint.NamedGraph)
	logger.Info("computing structuredness", "mode", cfg.Compute.OccurrenceMode, "batch", cfg.Compute.Batch, "concurrency", cfg.Compute.Concurrency)

	started := time.Now()
	score, err := s.app.calculator.Compute(ctx)
	elapsed := time.Since(started)
	observability.RunDuration.Observe(elapsed.Seconds())
	if err != nil {
		observability.RunsTotal.WithLabelValues(string(domainerrors.CodeOf(err))).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("computation failed", "duration", elapsed, "error", err)
		return ports.RunReport{}, err
	}
	observability.RunsTotal.WithLabelValues(observability.OutcomeOK).Inc()
	observability.LastScore.Set(score.Value)
	observability.TypesObserved.Set(float64(len(score.Types)))

	report := ports.RunReport{
		RunID:          runID,
		Endpoint:       cfg.Endpoint.URL,
		Graph:          cfg.Endpoint.NamedGraph,
		OccurrenceMode: cfg.Compute.OccurrenceMode,
		Batch:          cfg.Compute.Batch,
		StartedAt:      started.UTC(),
		Duration:       elapsed,
		Score:          score.Value,
		WeightSum:      score.WeightSum,
		Types:          score.Types,
	}
	logger.Info("computation finished", "score", score.Value, "types", len(score.Types), "duration", elapsed)

	if s.app.history != nil {
		if err := s.app.history.SaveRun(ctx, toHistoryRun(report)); err != nil {
			logger.Error("saving run to history failed", "error", err)
		} else {
			report.Saved = true
		}
	}
	return report, nil
}

func (s *calculatorService) History(ctx context.Context, filter history.RunFilter) ([]history.Run, error) {
	if s.app.history == nil {
		return nil, fmt.Errorf("history store is not configured")
	}
	return s.app.history.LoadRuns(ctx, filter)
}

func toHistoryRun(r ports.RunReport) history.Run {
	run := history.Run{
		ID:             r.RunID,
		Endpoint:       r.Endpoint,
		Graph:          r.Graph,
		Score:          r.Score,
		WeightSum:      r.WeightSum,
		TypeCount:      len(r.Types),
		OccurrenceMode: r.OccurrenceMode,
		Batch:          r.Batch,
		StartedAt:      r.StartedAt,
		Duration:       r.Duration,
		Types:          make([]history.TypeRecord, 0, len(r.Types)),
	}
	for _, t := range r.Types {
		run.Types = append(run.Types, history.TypeRecord{
			Type:        t.Type,
			Predicates:  t.Predicates,
			Instances:   t.Instances,
			Occurrences: t.Occurrences,
			Coverage:    t.Coverage,
			Weight:      t.Weight,
		})
	}
	return run
}
