package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	coreapp "structuredness/internal/core/app"
	"structuredness/internal/core/config"
	"structuredness/internal/data/history"
	"structuredness/internal/engine/structuredness"
	"structuredness/internal/shared/observability"

	"github.com/spf13/cobra"
)

func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRuntime(os.Stdout, os.Stderr).run(ctx, args)
}

type cliRuntime struct {
	out    io.Writer
	errOut io.Writer
	getwd  func() (string, error)
}

func newRuntime(out, errOut io.Writer) *cliRuntime {
	return &cliRuntime{out: out, errOut: errOut, getwd: os.Getwd}
}

func (r *cliRuntime) run(ctx context.Context, args []string) int {
	var opts cliOptions
	root := r.newRootCommand(&opts)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintln(r.errOut, "error:", err)
	if isUsageError(err) {
		fmt.Fprintln(r.errOut, "run 'structuredness --help' for usage")
		return 2
	}
	return 1
}

func (r *cliRuntime) compute(cmd *cobra.Command, opts *cliOptions) error {
	configureLogging(opts.verbose, r.errOut)
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	shutdown, err := observability.SetupTracing(ctx, cfg.Observability.OTLPEndpoint, cfg.Observability.ServiceName)
	if err != nil {
		return fmt.Errorf("tracing setup failed: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}()

	appOpts := []coreapp.Option{coreapp.WithLogger(slog.Default())}
	if cfg.History.Enabled {
		store, err := r.openHistory(cfg, opts.configPath)
		if err != nil {
			return err
		}
		appOpts = append(appOpts, coreapp.WithHistory(history.NewAdapter(store)))
	}

	// New closes the history store itself when wiring fails.
	app, err := coreapp.New(cfg, appOpts...)
	if err != nil {
		return err
	}
	defer app.Close()

	if cfg.Observability.MetricsAddr != "" {
		server := NewObservabilityServer(cfg.Observability.MetricsAddr, coreapp.NewHealthService(app))
		if err := server.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(stopCtx)
		}()
	}

	report, err := app.CalculatorService().Run(ctx)
	if err != nil {
		return err
	}

	switch {
	case opts.json:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case opts.report:
		return renderReport(r.out, report)
	default:
		_, err := fmt.Fprintln(r.out, formatScore(report.Score))
		return err
	}
}

func (r *cliRuntime) listHistory(cmd *cobra.Command, opts *cliOptions) error {
	configureLogging(opts.verbose, r.errOut)

	cfg, err := config.ReadOrDefault(opts.configPath)
	if err != nil {
		return err
	}
	applyEndpointFlags(cmd, opts, cfg)

	filter := history.RunFilter{Endpoint: cfg.Endpoint.URL, Graph: cfg.Endpoint.NamedGraph, Limit: opts.limit}
	if runID := strings.TrimSpace(opts.runID); runID != "" {
		filter = history.RunFilter{RunID: runID}
	}
	if opts.since != "" {
		since, err := parseSince(opts.since)
		if err != nil {
			return usageError{err}
		}
		filter.Since = since
	}

	store, err := r.openHistory(cfg, opts.configPath)
	if err != nil {
		return err
	}
	app := coreapp.NewHistoryOnly(cfg, history.NewAdapter(store), coreapp.WithLogger(slog.Default()))
	defer app.Close()

	runs, err := app.CalculatorService().History(cmd.Context(), filter)
	if err != nil {
		return err
	}

	if filter.RunID != "" {
		if len(runs) == 0 {
			return fmt.Errorf("run %q not found", filter.RunID)
		}
		if opts.json {
			enc := json.NewEncoder(r.out)
			enc.SetIndent("", "  ")
			return enc.Encode(runs[0])
		}
		return renderRun(r.out, runs[0])
	}
	if opts.json {
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(history.BuildTrend(runs))
	}
	return renderHistory(r.out, runs)
}

func (r *cliRuntime) openHistory(cfg *config.Config, configPath string) (*history.Store, error) {
	cwd, err := r.getwd()
	if err != nil {
		return nil, fmt.Errorf("detect working directory: %w", err)
	}
	path, err := config.ResolveHistoryPath(cfg, configPath, cwd)
	if err != nil {
		return nil, err
	}
	store, err := history.Open(path)
	if err != nil {
		return nil, fmt.Errorf("history setup failed: %w", err)
	}
	slog.Debug("history store opened", "path", store.Path())
	return store, nil
}

// loadConfig layers defaults, file, env and explicitly set flags, then
// validates the merged result.
func loadConfig(cmd *cobra.Command, opts *cliOptions) (*config.Config, error) {
	cfg, err := config.ReadOrDefault(opts.configPath)
	if err != nil {
		return nil, err
	}
	applyEndpointFlags(cmd, opts, cfg)

	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cfg.Endpoint.Timeout = opts.timeout
	}
	if flags.Changed("concurrency") {
		cfg.Compute.Concurrency = opts.concurrency
	}
	if flags.Changed("mode") {
		mode, err := structuredness.ParseOccurrenceMode(opts.mode)
		if err != nil {
			return nil, usageError{err}
		}
		cfg.Compute.OccurrenceMode = string(mode)
	}
	if flags.Changed("batch") {
		cfg.Compute.Batch = opts.batch
	}
	if flags.Changed("history") {
		cfg.History.Enabled = opts.history
	}
	if flags.Changed("metrics-addr") {
		cfg.Observability.MetricsAddr = strings.TrimSpace(opts.metricsAddr)
	}

	if cfg.Endpoint.URL == "" {
		return nil, usageError{errors.New("--endpoint is required (or set endpoint.url in the config file)")}
	}
	if err := config.Validate(cfg); err != nil {
		return nil, usageError{err}
	}
	return cfg, nil
}

func applyEndpointFlags(cmd *cobra.Command, opts *cliOptions, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		cfg.Endpoint.URL = strings.TrimSpace(opts.endpoint)
	}
	if flags.Changed("named") {
		cfg.Endpoint.NamedGraph = strings.TrimSpace(opts.named)
	}
}

func parseSince(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("--since must be RFC3339 or YYYY-MM-DD, got %q", raw)
}

func configureLogging(verbose bool, w io.Writer) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}
