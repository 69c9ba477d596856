package history

import "time"

const SchemaVersion = 2

// Run is one successful structuredness computation.
type Run struct {
	ID             string        `json:"id"`
	Endpoint       string        `json:"endpoint"`
	Graph          string        `json:"graph,omitempty"`
	Score          float64       `json:"score"`
	WeightSum      float64       `json:"weight_sum"`
	TypeCount      int           `json:"type_count"`
	OccurrenceMode string        `json:"occurrence_mode"`
	Batch          bool          `json:"batch"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	Types          []TypeRecord  `json:"types,omitempty"`
}

// TypeRecord is the stored per-type breakdown of a run.
type TypeRecord struct {
	Type        string  `json:"type"`
	Predicates  int     `json:"predicates"`
	Instances   int     `json:"instances"`
	Occurrences int     `json:"occurrences"`
	Coverage    float64 `json:"coverage"`
	Weight      float64 `json:"weight"`
}

// RunFilter narrows LoadRuns. Zero values match everything; Graph is only
// applied when Endpoint is set.
type RunFilter struct {
	RunID    string
	Endpoint string
	Graph    string
	Since    time.Time
	Limit    int
}
