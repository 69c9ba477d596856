package history

import (
	"math"
	"sort"
	"time"
)

// TrendPoint is a run with its score change against the previous run of the
// same endpoint and graph.
type TrendPoint struct {
	RunID     string    `json:"run_id"`
	Endpoint  string    `json:"endpoint"`
	Graph     string    `json:"graph,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Score     float64   `json:"score"`
	TypeCount int       `json:"type_count"`
	// Delta is zero for the first run of a series.
	Delta      float64 `json:"delta"`
	DeltaTypes int     `json:"delta_types"`
}

// BuildTrend orders runs oldest first and computes per-series deltas.
func BuildTrend(runs []Run) []TrendPoint {
	ordered := append([]Run(nil), runs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].StartedAt.Equal(ordered[j].StartedAt) {
			return ordered[i].StartedAt.Before(ordered[j].StartedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	type series struct{ endpoint, graph string }
	last := make(map[series]Run, len(ordered))
	points := make([]TrendPoint, 0, len(ordered))
	for _, run := range ordered {
		p := TrendPoint{
			RunID:     run.ID,
			Endpoint:  run.Endpoint,
			Graph:     run.Graph,
			StartedAt: run.StartedAt,
			Score:     run.Score,
			TypeCount: run.TypeCount,
		}
		key := series{run.Endpoint, run.Graph}
		if prev, ok := last[key]; ok {
			p.Delta = round6(run.Score - prev.Score)
			p.DeltaTypes = run.TypeCount - prev.TypeCount
		}
		last[key] = run
		points = append(points, p)
	}
	return points
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
