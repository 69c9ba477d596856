package ports

import (
	"context"
	"time"

	"structuredness/internal/data/history"
	"structuredness/internal/engine/sparql"
	"structuredness/internal/engine/structuredness"
)

// QueryExecutor abstracts the SPARQL endpoint behind the calculator.
type QueryExecutor = sparql.Executor

// HistoryStore abstracts run persistence for the history command.
type HistoryStore interface {
	SaveRun(ctx context.Context, run history.Run) error
	LoadRuns(ctx context.Context, filter history.RunFilter) ([]history.Run, error)
	Close() error
}

// CalculatorService is the driving port used by the CLI and health checks.
type CalculatorService interface {
	Run(ctx context.Context) (RunReport, error)
	History(ctx context.Context, filter history.RunFilter) ([]history.Run, error)
}

// RunReport describes one completed computation.
type RunReport struct {
	RunID          string                     `json:"run_id"`
	Endpoint       string                     `json:"endpoint"`
	Graph          string                     `json:"graph,omitempty"`
	OccurrenceMode string                     `json:"occurrence_mode"`
	Batch          bool                       `json:"batch"`
	StartedAt      time.Time                  `json:"started_at"`
	Duration       time.Duration              `json:"duration_ns"`
	Score          float64                    `json:"score"`
	WeightSum      float64                    `json:"weight_sum"`
	Types          []structuredness.TypeScore `json:"types"`
	// Saved is set when the run was written to the history store.
	Saved bool `json:"saved"`
}
