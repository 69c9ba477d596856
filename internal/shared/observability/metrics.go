package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "structuredness_sparql_queries_total",
		Help: "Total number of SPARQL queries issued, by statistic and outcome code.",
	}, []string{"statistic", "outcome"})

	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "structuredness_sparql_query_seconds",
		Help:    "Round-trip time of a SPARQL query against the endpoint.",
		Buckets: prometheus.DefBuckets,
	}, []string{"statistic"})

	QueriesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "structuredness_sparql_queries_in_flight",
		Help: "Current number of SPARQL queries awaiting a response.",
	})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "structuredness_run_seconds",
		Help:    "Wall time of a full structuredness computation.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
	})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "structuredness_runs_total",
		Help: "Total number of computations, by outcome code.",
	}, []string{"outcome"})

	TypesObserved = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "structuredness_types",
		Help: "Number of RDF types in the last computation.",
	})

	LastScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "structuredness_score",
		Help: "Structuredness score of the last successful computation.",
	})
)

// OutcomeOK labels successful queries and runs.
const OutcomeOK = "ok"
