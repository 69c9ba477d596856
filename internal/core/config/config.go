package config

import (
	"time"
)

const (
	DefaultTimeout     = 60 * time.Second
	DefaultMethod      = "POST"
	DefaultConcurrency = 4
	DefaultMode        = "aggregate"
	DefaultHistoryPath = "structuredness.db"
	DefaultServiceName = "structuredness"
)

type Config struct {
	Endpoint      Endpoint      `toml:"endpoint"`
	Compute       Compute       `toml:"compute"`
	Filter        Filter        `toml:"filter"`
	History       History       `toml:"history"`
	Observability Observability `toml:"observability"`
}

type Endpoint struct {
	URL        string            `toml:"url"`
	NamedGraph string            `toml:"named_graph"`
	Timeout    time.Duration     `toml:"timeout"`
	UserAgent  string            `toml:"user_agent"`
	Method     string            `toml:"method"`
	Headers    map[string]string `toml:"headers"`
}

type Compute struct {
	Concurrency    int    `toml:"concurrency"`
	OccurrenceMode string `toml:"occurrence_mode"`
	Batch          bool   `toml:"batch"`
	// RateLimit is in queries per second; 0 disables limiting.
	RateLimit float64 `toml:"rate_limit"`
	RateBurst int     `toml:"rate_burst"`
}

type Filter struct {
	ExcludeTypes []string `toml:"exclude_types"`
}

type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

// DefaultConfig is the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}
