package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "structuredness.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[endpoint]
url = "http://localhost:3030/ds/sparql"
named_graph = "http://example.org/g1"
timeout = "90s"
method = "get"
user_agent = "structuredness-test"

[endpoint.headers]
Authorization = "Bearer abc"

[compute]
concurrency = 8
occurrence_mode = "per-predicate"
batch = true
rate_limit = 2.5
rate_burst = 3

[filter]
exclude_types = ["http://www.w3.org/2002/07/owl#*", "  "]

[history]
enabled = true
path = "runs.db"

[observability]
metrics_addr = "127.0.0.1:9464"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Endpoint.URL != "http://localhost:3030/ds/sparql" {
		t.Errorf("unexpected endpoint url %q", cfg.Endpoint.URL)
	}
	if cfg.Endpoint.NamedGraph != "http://example.org/g1" {
		t.Errorf("unexpected named graph %q", cfg.Endpoint.NamedGraph)
	}
	if cfg.Endpoint.Timeout != 90*time.Second {
		t.Errorf("expected timeout 90s, got %v", cfg.Endpoint.Timeout)
	}
	if cfg.Endpoint.Method != "GET" {
		t.Errorf("expected method to be upper-cased, got %q", cfg.Endpoint.Method)
	}
	if cfg.Endpoint.Headers["Authorization"] != "Bearer abc" {
		t.Errorf("unexpected headers %v", cfg.Endpoint.Headers)
	}
	if cfg.Compute.Concurrency != 8 || !cfg.Compute.Batch {
		t.Errorf("unexpected compute section %+v", cfg.Compute)
	}
	if cfg.Compute.OccurrenceMode != "per_predicate" {
		t.Errorf("expected per_predicate, got %q", cfg.Compute.OccurrenceMode)
	}
	if cfg.Compute.RateLimit != 2.5 || cfg.Compute.RateBurst != 3 {
		t.Errorf("unexpected rate settings %+v", cfg.Compute)
	}
	if len(cfg.Filter.ExcludeTypes) != 1 {
		t.Errorf("expected blank patterns to be dropped, got %v", cfg.Filter.ExcludeTypes)
	}
	if !cfg.History.Enabled || cfg.History.Path != "runs.db" {
		t.Errorf("unexpected history section %+v", cfg.History)
	}
	if cfg.Observability.MetricsAddr != "127.0.0.1:9464" {
		t.Errorf("unexpected metrics addr %q", cfg.Observability.MetricsAddr)
	}
	if cfg.Observability.ServiceName != DefaultServiceName {
		t.Errorf("expected default service name, got %q", cfg.Observability.ServiceName)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
[endpoint]
url = "https://dbpedia.org/sparql"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Endpoint.Timeout != DefaultTimeout {
		t.Errorf("expected default timeout, got %v", cfg.Endpoint.Timeout)
	}
	if cfg.Endpoint.Method != DefaultMethod {
		t.Errorf("expected default method, got %q", cfg.Endpoint.Method)
	}
	if cfg.Compute.Concurrency != DefaultConcurrency {
		t.Errorf("expected default concurrency, got %d", cfg.Compute.Concurrency)
	}
	if cfg.Compute.OccurrenceMode != DefaultMode {
		t.Errorf("expected default mode, got %q", cfg.Compute.OccurrenceMode)
	}
	if cfg.Compute.RateBurst != 1 {
		t.Errorf("expected default burst 1, got %d", cfg.Compute.RateBurst)
	}
	if cfg.History.Enabled {
		t.Error("history must be disabled by default")
	}
	if cfg.History.Path != DefaultHistoryPath {
		t.Errorf("expected default history path, got %q", cfg.History.Path)
	}
}

func TestLoadError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nonexistent.toml")); err == nil {
		t.Error("expected error for nonexistent file")
	}

	if _, err := Load(writeConfig(t, "bad = toml = format")); err == nil {
		t.Error("expected error for malformed TOML")
	}

	_, err := Load(writeConfig(t, `
[endpoint]
url = "http://localhost/sparql"
named_grph = "http://example.org/g"
`))
	if err == nil || !strings.Contains(err.Error(), "endpoint.named_grph") {
		t.Errorf("expected unknown key error, got %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STRUCTUREDNESS_ENDPOINT_URL", "http://override/sparql")
	t.Setenv("STRUCTUREDNESS_COMPUTE_CONCURRENCY", "2")
	t.Setenv("STRUCTUREDNESS_COMPUTE_BATCH", "true")
	t.Setenv("STRUCTUREDNESS_ENDPOINT_TIMEOUT", "5s")
	t.Setenv("STRUCTUREDNESS_FILTER_EXCLUDE_TYPES", "http://a/*, http://b/*")
	t.Setenv("STRUCTUREDNESS_COMPUTE_RATE_BURST", "not-a-number")

	cfg, err := Load(writeConfig(t, `
[endpoint]
url = "http://file/sparql"

[compute]
rate_burst = 4
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Endpoint.URL != "http://override/sparql" {
		t.Errorf("expected env url to win, got %q", cfg.Endpoint.URL)
	}
	if cfg.Compute.Concurrency != 2 || !cfg.Compute.Batch {
		t.Errorf("unexpected compute section %+v", cfg.Compute)
	}
	if cfg.Endpoint.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", cfg.Endpoint.Timeout)
	}
	if len(cfg.Filter.ExcludeTypes) != 2 || cfg.Filter.ExcludeTypes[1] != "http://b/*" {
		t.Errorf("unexpected exclude types %v", cfg.Filter.ExcludeTypes)
	}
	if cfg.Compute.RateBurst != 4 {
		t.Errorf("unparseable env value must be ignored, got burst %d", cfg.Compute.RateBurst)
	}
}

func TestReadOrDefault(t *testing.T) {
	t.Setenv("STRUCTUREDNESS_ENDPOINT_NAMED_GRAPH", " http://example.org/g ")
	cfg, err := ReadOrDefault("")
	if err != nil {
		t.Fatalf("ReadOrDefault failed: %v", err)
	}
	if cfg.Endpoint.URL != "" {
		t.Errorf("expected no endpoint without a file, got %q", cfg.Endpoint.URL)
	}
	if cfg.Endpoint.NamedGraph != "http://example.org/g" {
		t.Errorf("expected trimmed env graph, got %q", cfg.Endpoint.NamedGraph)
	}
	if cfg.Compute.Concurrency != DefaultConcurrency {
		t.Errorf("expected default concurrency, got %d", cfg.Compute.Concurrency)
	}
}

func TestReadSkipsValidation(t *testing.T) {
	path := writeConfig(t, `
[compute]
batch = true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected Load to reject a config without endpoint.url")
	}
	cfg, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !cfg.Compute.Batch {
		t.Error("expected batch to be read")
	}
}
