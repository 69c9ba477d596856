package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks every section and joins all problems into one error.
func Validate(cfg *Config) error {
	var errs []error
	errs = append(errs, validateEndpoint(cfg)...)
	errs = append(errs, validateCompute(cfg)...)
	errs = append(errs, validateHistory(cfg)...)
	return errors.Join(errs...)
}

func validateEndpoint(cfg *Config) []error {
	var errs []error
	ep := cfg.Endpoint
	if ep.URL == "" {
		errs = append(errs, fmt.Errorf("endpoint.url must not be empty"))
	} else if u, err := url.Parse(ep.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("endpoint.url must be an absolute http(s) URL, got %q", ep.URL))
	}
	if ep.NamedGraph != "" {
		if u, err := url.Parse(ep.NamedGraph); err != nil || !u.IsAbs() {
			errs = append(errs, fmt.Errorf("endpoint.named_graph must be an absolute IRI, got %q", ep.NamedGraph))
		}
	}
	if ep.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("endpoint.timeout must be > 0"))
	}
	switch ep.Method {
	case "GET", "POST":
	default:
		errs = append(errs, fmt.Errorf("endpoint.method must be one of: GET, POST"))
	}
	for name := range ep.Headers {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Errorf("endpoint.headers must not contain an empty header name"))
			break
		}
	}
	return errs
}

func validateCompute(cfg *Config) []error {
	var errs []error
	c := cfg.Compute
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("compute.concurrency must be >= 1, got %d", c.Concurrency))
	}
	switch c.OccurrenceMode {
	case "aggregate", "per_predicate":
	default:
		errs = append(errs, fmt.Errorf("compute.occurrence_mode must be one of: aggregate, per_predicate"))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("compute.rate_limit must be >= 0"))
	}
	if c.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("compute.rate_burst must be >= 1"))
	}
	return errs
}

func validateHistory(cfg *Config) []error {
	if cfg.History.Enabled && cfg.History.Path == "" {
		return []error{fmt.Errorf("history.path must not be empty when history.enabled=true")}
	}
	return nil
}
