package app

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"

	"structuredness/internal/core/config"
	domainerrors "structuredness/internal/core/errors"
	"structuredness/internal/data/history"
	"structuredness/internal/engine/sparql"
	"structuredness/internal/shared/observability"
	"structuredness/internal/test/sparqltest"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(endpoint string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Endpoint.URL = endpoint
	return cfg
}

type memoryHistory struct {
	mu     sync.Mutex
	runs   []history.Run
	err    error
	closed bool
}

func (m *memoryHistory) SaveRun(_ context.Context, run history.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryHistory) LoadRuns(_ context.Context, _ history.RunFilter) ([]history.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]history.Run(nil), m.runs...), nil
}

func (m *memoryHistory) Close() error {
	m.closed = true
	return nil
}

func TestRun_OverHTTP(t *testing.T) {
	srv := sparqltest.NewServer(sparqltest.TwoTypeDataset("")...)
	defer srv.Close()

	a, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	report, err := a.CalculatorService().Run(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.6, report.Score, 1e-12)
	assert.InDelta(t, 5.0, report.WeightSum, 1e-12)
	assert.Len(t, report.Types, 2)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, srv.URL, report.Endpoint)
	assert.False(t, report.Saved)
	assert.InDelta(t, 0.6, testutil.ToFloat64(observability.LastScore), 1e-12)
	assert.Equal(t, 2.0, testutil.ToFloat64(observability.TypesObserved))
}

func TestRun_NamedGraphAndBatch(t *testing.T) {
	const g = "http://example.org/g1"
	quads := append(sparqltest.PersonDataset(g), sparqltest.TwoTypeDataset("")...)
	srv := sparqltest.NewServer(quads...)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Endpoint.NamedGraph = g
	cfg.Compute.Batch = true
	cfg.Compute.OccurrenceMode = "per_predicate"
	a, err := New(cfg)
	require.NoError(t, err)

	report, err := a.CalculatorService().Run(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.75, report.Score, 1e-12)
	assert.Equal(t, g, report.Graph)
	for _, q := range srv.Queries() {
		assert.Contains(t, q, "FROM <"+g+">")
	}
}

func TestRun_EndpointFailureIsCounted(t *testing.T) {
	srv := sparqltest.NewServer()
	defer srv.Close()
	srv.FailWith(http.StatusServiceUnavailable)

	a, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	counter := observability.RunsTotal.WithLabelValues(string(domainerrors.CodeEndpointUnreachable))
	before := testutil.ToFloat64(counter)

	_, err = a.CalculatorService().Run(context.Background())
	require.Error(t, err)
	assert.True(t, domainerrors.IsCode(err, domainerrors.CodeEndpointUnreachable), "got %v", err)
	assert.Contains(t, err.Error(), "statistic=types")
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestRun_EmptyDataset(t *testing.T) {
	srv := sparqltest.NewServer()
	defer srv.Close()

	store := &memoryHistory{}
	a, err := New(testConfig(srv.URL), WithHistory(store))
	require.NoError(t, err)

	_, err = a.CalculatorService().Run(context.Background())
	require.Error(t, err)
	assert.True(t, domainerrors.IsCode(err, domainerrors.CodeEmptyDataset))
	assert.Empty(t, store.runs, "failed runs are not saved")
}

func TestRun_SavesHistory(t *testing.T) {
	srv := sparqltest.NewServer(sparqltest.TwoTypeDataset("")...)
	defer srv.Close()

	store := &memoryHistory{}
	a, err := New(testConfig(srv.URL), WithHistory(store))
	require.NoError(t, err)

	report, err := a.CalculatorService().Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Saved)
	require.Len(t, store.runs, 1)
	run := store.runs[0]
	assert.Equal(t, report.RunID, run.ID)
	assert.Equal(t, 2, run.TypeCount)
	require.Len(t, run.Types, 2)
	assert.Equal(t, "http://example.org/Org", run.Types[0].Type)

	runs, err := a.CalculatorService().History(context.Background(), history.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	require.NoError(t, a.Close())
	assert.True(t, store.closed)
}

func TestRun_HistoryFailureKeepsScore(t *testing.T) {
	srv := sparqltest.NewServer(sparqltest.PersonDataset("")...)
	defer srv.Close()

	a, err := New(testConfig(srv.URL), WithHistory(&memoryHistory{err: errors.New("disk full")}))
	require.NoError(t, err)

	report, err := a.CalculatorService().Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Saved)
	assert.InDelta(t, 0.75, report.Score, 1e-12)
}

func TestRun_SqliteHistory(t *testing.T) {
	srv := sparqltest.NewServer(sparqltest.PersonDataset("")...)
	defer srv.Close()

	store, err := history.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	a, err := New(testConfig(srv.URL), WithHistory(history.NewAdapter(store)))
	require.NoError(t, err)
	defer a.Close()

	svc := a.CalculatorService()
	_, err = svc.Run(context.Background())
	require.NoError(t, err)
	_, err = svc.Run(context.Background())
	require.NoError(t, err)

	runs, err := svc.History(context.Background(), history.RunFilter{Endpoint: srv.URL})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.InDelta(t, 0.75, runs[0].Score, 1e-12)
	assert.Len(t, runs[0].Types, 1)
}

func TestHistory_NotConfigured(t *testing.T) {
	a, err := New(testConfig("http://localhost:1/sparql"))
	require.NoError(t, err)
	_, err = a.CalculatorService().History(context.Background(), history.RunFilter{})
	require.Error(t, err)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	cfg := testConfig("http://localhost:1/sparql")
	cfg.Endpoint.NamedGraph = "not an iri"
	_, err = New(cfg)
	require.Error(t, err)
	assert.True(t, domainerrors.IsCode(err, domainerrors.CodeValidationError))

	cfg = testConfig("http://localhost:1/sparql")
	cfg.Compute.OccurrenceMode = "sampled"
	_, err = New(cfg)
	require.Error(t, err)

	cfg = testConfig("ftp://localhost/sparql")
	_, err = New(cfg)
	require.Error(t, err)
}

func TestNew_ClosesHistoryOnError(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
	}{
		{name: "invalid named graph", mutate: func(cfg *config.Config) { cfg.Endpoint.NamedGraph = "not an iri" }},
		{name: "invalid mode", mutate: func(cfg *config.Config) { cfg.Compute.OccurrenceMode = "sampled" }},
		{name: "invalid endpoint", mutate: func(cfg *config.Config) { cfg.Endpoint.URL = "ftp://localhost/sparql" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("http://localhost:1/sparql")
			tt.mutate(cfg)
			store := &memoryHistory{}
			_, err := New(cfg, WithHistory(store))
			require.Error(t, err)
			assert.True(t, store.closed)
		})
	}

	store := &memoryHistory{}
	a, err := New(testConfig("http://localhost:1/sparql"), WithHistory(store))
	require.NoError(t, err)
	assert.False(t, store.closed)
	require.NoError(t, a.Close())
	assert.True(t, store.closed)
}

func TestNewHistoryOnly(t *testing.T) {
	store := &memoryHistory{runs: []history.Run{{ID: "run-1", Score: 0.6}}}
	a := NewHistoryOnly(config.DefaultConfig(), store)

	runs, err := a.CalculatorService().History(context.Background(), history.RunFilter{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)

	_, err = a.CalculatorService().Run(context.Background())
	require.Error(t, err)

	require.NoError(t, a.Close())
	assert.True(t, store.closed)
}

func TestNew_WithExecutorSkipsHTTPClient(t *testing.T) {
	exec := executorFunc(func(context.Context, sparql.Query) (*sparql.Results, error) {
		return sparql.NewResults([]string{sparql.VarType}), nil
	})
	cfg := testConfig("")
	a, err := New(cfg, WithExecutor(exec))
	require.NoError(t, err)

	_, err = a.CalculatorService().Run(context.Background())
	assert.True(t, domainerrors.IsCode(err, domainerrors.CodeEmptyDataset))
}

func TestHealthService(t *testing.T) {
	srv := sparqltest.NewServer(sparqltest.TwoTypeDataset("")...)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.History.Enabled = true
	a, err := New(cfg)
	require.NoError(t, err)

	health := NewHealthService(a)
	status := health.Check(context.Background(), false)
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "configured", status.Components["endpoint"])
	assert.Equal(t, "missing but enabled in config", status.Components["history"])

	a.history = &memoryHistory{}
	status = health.Check(context.Background(), true)
	assert.Equal(t, "up", status.Status)
	assert.Equal(t, "ok (2 types)", status.Components["endpoint"])

	srv.FailWith(http.StatusInternalServerError)
	status = health.Check(context.Background(), true)
	assert.Equal(t, "degraded", status.Status)
	assert.Contains(t, status.Components["endpoint"], string(domainerrors.CodeEndpointUnreachable))
}

type executorFunc func(ctx context.Context, q sparql.Query) (*sparql.Results, error)

func (f executorFunc) Select(ctx context.Context, q sparql.Query) (*sparql.Results, error) {
	return f(ctx, q)
}
