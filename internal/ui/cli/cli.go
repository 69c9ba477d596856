package cli

import (
	"errors"
	"fmt"
	"time"

	"structuredness/internal/shared/version"

	"github.com/spf13/cobra"
)

type cliOptions struct {
	configPath  string
	endpoint    string
	named       string
	timeout     time.Duration
	concurrency int
	mode        string
	batch       bool
	verbose     bool
	report      bool
	json        bool
	history     bool
	metricsAddr string

	// history command
	since string
	limit int
	runID string
}

// usageError marks bad invocations; they exit with status 2.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func isUsageError(err error) bool {
	var ue usageError
	return errors.As(err, &ue)
}

func (r *cliRuntime) newRootCommand(opts *cliOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "structuredness",
		Short: "Compute the structuredness of an RDF dataset behind a SPARQL endpoint",
		Long: `structuredness queries a SPARQL 1.1 endpoint for per-type statistics and
prints the weighted coverage (Duan et al. coherence) of the dataset, a number
between 0 and 1.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.compute(cmd, opts)
		},
	}
	root.SetOut(r.out)
	root.SetErr(r.errOut)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "Path to a TOML config file")
	pf.StringVarP(&opts.endpoint, "endpoint", "e", "", "SPARQL endpoint URL (required unless set in config)")
	pf.StringVarP(&opts.named, "named", "g", "", "Restrict the computation to one named graph IRI")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVar(&opts.json, "json", false, "Print JSON instead of text")

	f := root.Flags()
	f.DurationVar(&opts.timeout, "timeout", 0, "Per-query HTTP timeout (default from config, 60s)")
	f.IntVar(&opts.concurrency, "concurrency", 0, "Maximum queries in flight (default from config, 4)")
	f.StringVar(&opts.mode, "mode", "", "Occurrence counting mode: aggregate or per_predicate")
	f.BoolVar(&opts.batch, "batch", false, "Fetch predicates and instance counts with grouped queries")
	f.BoolVar(&opts.report, "report", false, "Print the per-type breakdown table")
	f.BoolVar(&opts.history, "history", false, "Save the run to the history database")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics and /health on this address while computing")
	root.MarkFlagsMutuallyExclusive("report", "json")

	root.AddCommand(r.newHistoryCommand(opts), r.newVersionCommand())
	return root
}

func (r *cliRuntime) newHistoryCommand(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.listHistory(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.since, "since", "", "Only runs at/after this time (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "Maximum number of runs to list (0 for all)")
	cmd.Flags().StringVar(&opts.runID, "run", "", "Show the per-type breakdown of one saved run")
	return cmd
}

func (r *cliRuntime) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "structuredness %s\n", version.Version)
			return err
		},
	}
}
