package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads a TOML file, applies defaults and env overrides, and validates
// the result.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation, for callers that still merge flags.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}

	applyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)
	normalize(&cfg)
	return &cfg, nil
}

// ReadOrDefault reads path when set; otherwise it starts from DefaultConfig
// with env overrides applied. Neither path validates.
func ReadOrDefault(path string) (*Config, error) {
	if strings.TrimSpace(path) != "" {
		return Read(path)
	}
	cfg := DefaultConfig()
	ApplyEnvOverrides(cfg)
	normalize(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Endpoint.Timeout <= 0 {
		cfg.Endpoint.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(cfg.Endpoint.Method) == "" {
		cfg.Endpoint.Method = DefaultMethod
	}
	if cfg.Compute.Concurrency == 0 {
		cfg.Compute.Concurrency = DefaultConcurrency
	}
	if strings.TrimSpace(cfg.Compute.OccurrenceMode) == "" {
		cfg.Compute.OccurrenceMode = DefaultMode
	}
	if cfg.Compute.RateBurst == 0 {
		cfg.Compute.RateBurst = 1
	}
	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = DefaultHistoryPath
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = DefaultServiceName
	}
}

func normalize(cfg *Config) {
	cfg.Endpoint.URL = strings.TrimSpace(cfg.Endpoint.URL)
	cfg.Endpoint.NamedGraph = strings.TrimSpace(cfg.Endpoint.NamedGraph)
	cfg.Endpoint.Method = strings.ToUpper(strings.TrimSpace(cfg.Endpoint.Method))
	cfg.Compute.OccurrenceMode = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(cfg.Compute.OccurrenceMode)), "-", "_")
	cfg.History.Path = strings.TrimSpace(cfg.History.Path)
	cfg.Observability.MetricsAddr = strings.TrimSpace(cfg.Observability.MetricsAddr)
	cfg.Observability.OTLPEndpoint = strings.TrimSpace(cfg.Observability.OTLPEndpoint)

	if len(cfg.Filter.ExcludeTypes) == 0 {
		return
	}
	patterns := make([]string, 0, len(cfg.Filter.ExcludeTypes))
	for _, p := range cfg.Filter.ExcludeTypes {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	cfg.Filter.ExcludeTypes = patterns
}
