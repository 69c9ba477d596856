package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: STRUCTUREDNESS_[SECTION]_[KEY] (e.g., STRUCTUREDNESS_ENDPOINT_URL).
func ApplyEnvOverrides(cfg *Config) {
	// Endpoint
	setEnvString(&cfg.Endpoint.URL, "STRUCTUREDNESS_ENDPOINT_URL")
	setEnvString(&cfg.Endpoint.NamedGraph, "STRUCTUREDNESS_ENDPOINT_NAMED_GRAPH")
	setEnvDuration(&cfg.Endpoint.Timeout, "STRUCTUREDNESS_ENDPOINT_TIMEOUT")
	setEnvString(&cfg.Endpoint.UserAgent, "STRUCTUREDNESS_ENDPOINT_USER_AGENT")
	setEnvString(&cfg.Endpoint.Method, "STRUCTUREDNESS_ENDPOINT_METHOD")

	// Compute
	setEnvInt(&cfg.Compute.Concurrency, "STRUCTUREDNESS_COMPUTE_CONCURRENCY")
	setEnvString(&cfg.Compute.OccurrenceMode, "STRUCTUREDNESS_COMPUTE_OCCURRENCE_MODE")
	setEnvBool(&cfg.Compute.Batch, "STRUCTUREDNESS_COMPUTE_BATCH")
	setEnvFloat64(&cfg.Compute.RateLimit, "STRUCTUREDNESS_COMPUTE_RATE_LIMIT")
	setEnvInt(&cfg.Compute.RateBurst, "STRUCTUREDNESS_COMPUTE_RATE_BURST")

	// Filter
	setEnvList(&cfg.Filter.ExcludeTypes, "STRUCTUREDNESS_FILTER_EXCLUDE_TYPES")

	// History
	setEnvBool(&cfg.History.Enabled, "STRUCTUREDNESS_HISTORY_ENABLED")
	setEnvString(&cfg.History.Path, "STRUCTUREDNESS_HISTORY_PATH")

	// Observability
	setEnvString(&cfg.Observability.MetricsAddr, "STRUCTUREDNESS_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.OTLPEndpoint, "STRUCTUREDNESS_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvString(&cfg.Observability.ServiceName, "STRUCTUREDNESS_OBSERVABILITY_SERVICE_NAME")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key)
		*target = val
	}
}

// setEnvList splits a comma-separated value.
func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key)
		*target = strings.Split(val, ",")
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key)
			*target = d
		}
	}
}
