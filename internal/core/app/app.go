package app

import (
	"fmt"
	"log/slog"

	"structuredness/internal/core/config"
	"structuredness/internal/core/ports"
	"structuredness/internal/engine/sparql"
	"structuredness/internal/engine/structuredness"
	"structuredness/internal/shared/util"
	"structuredness/internal/shared/version"
)

type App struct {
	Config *config.Config

	executor   ports.QueryExecutor
	builder    *sparql.Builder
	calculator *structuredness.Calculator
	history    ports.HistoryStore
	logger     *slog.Logger
}

type Option func(*App)

// WithExecutor replaces the HTTP SPARQL client.
func WithExecutor(exec ports.QueryExecutor) Option {
	return func(a *App) { a.executor = exec }
}

// WithHistory enables run persistence. The App takes ownership of the store.
func WithHistory(store ports.HistoryStore) Option {
	return func(a *App) { a.history = store }
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// New wires the calculator for cfg. On error any store passed through
// WithHistory is closed.
func New(cfg *config.Config, opts ...Option) (_ *App, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	a := &App{Config: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	defer func() {
		if err != nil && a.history != nil {
			if closeErr := a.history.Close(); closeErr != nil {
				a.logger.Warn("closing history store failed", "error", closeErr)
			}
		}
	}()

	if a.executor == nil {
		userAgent := cfg.Endpoint.UserAgent
		if userAgent == "" {
			userAgent = "structuredness/" + version.Version
		}
		client, err := sparql.NewClient(sparql.ClientOptions{
			Endpoint:  cfg.Endpoint.URL,
			Timeout:   cfg.Endpoint.Timeout,
			Method:    cfg.Endpoint.Method,
			UserAgent: userAgent,
			Headers:   cfg.Endpoint.Headers,
			Limiter:   util.NewLimiter(cfg.Compute.RateLimit, cfg.Compute.RateBurst),
			Logger:    a.logger,
		})
		if err != nil {
			return nil, err
		}
		a.executor = client
	}

	builder, err := sparql.NewBuilder(cfg.Endpoint.NamedGraph)
	if err != nil {
		return nil, err
	}
	a.builder = builder

	filter, err := structuredness.NewTypeFilter(cfg.Filter.ExcludeTypes)
	if err != nil {
		return nil, err
	}
	mode, err := structuredness.ParseOccurrenceMode(cfg.Compute.OccurrenceMode)
	if err != nil {
		return nil, err
	}
	calc, err := structuredness.NewCalculator(a.executor, builder, structuredness.Options{
		Concurrency:    cfg.Compute.Concurrency,
		OccurrenceMode: mode,
		Batch:          cfg.Compute.Batch,
		Filter:         filter,
		Logger:         a.logger,
	})
	if err != nil {
		return nil, err
	}
	a.calculator = calc
	return a, nil
}

// NewHistoryOnly returns an App that can only read saved runs. It needs no
// endpoint; Run on its CalculatorService fails.
func NewHistoryOnly(cfg *config.Config, store ports.HistoryStore, opts ...Option) *App {
	a := &App{Config: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	a.history = store
	return a
}

func (a *App) Close() error {
	if a == nil || a.history == nil {
		return nil
	}
	return a.history.Close()
}
