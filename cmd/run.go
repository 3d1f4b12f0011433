package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/erp-ingest/internal/config"
	"github.com/sells-group/erp-ingest/internal/ingest"
	"github.com/sells-group/erp-ingest/internal/manifest"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest every dataset in the manifest",
	Long: `Ingest the datasets listed in the manifest, one at a time and in order.

Each dataset is downloaded to <root>/data/raw/<date>/<filename>, its table is
dropped and recreated, and the file is loaded with COPY. The first failure
stops the run unless --continue-on-error is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := parseRunOpts(cmd, cfg.Ingest)
		if err != nil {
			return err
		}
		return runIngest(cmd.Context(), cfg, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	runCmd.Flags().String("manifest", "", "dataset manifest (default from ingest.manifest)")
	runCmd.Flags().String("root", "", "directory holding data/raw (default from ingest.root)")
	runCmd.Flags().String("only", "", "comma-separated dataset ids to ingest")
	runCmd.Flags().Bool("continue-on-error", false, "keep going after a dataset fails")
	rootCmd.AddCommand(runCmd)
}

type runOpts struct {
	Manifest        string
	Root            string
	Only            []string
	ContinueOnError bool
}

// parseRunOpts overlays the run flags on the configured defaults.
func parseRunOpts(cmd *cobra.Command, ic config.IngestConfig) (runOpts, error) {
	opts := runOpts{
		Manifest:        ic.Manifest,
		Root:            ic.Root,
		ContinueOnError: ic.ContinueOnError,
	}

	if v, _ := cmd.Flags().GetString("manifest"); v != "" {
		opts.Manifest = v
	}
	if v, _ := cmd.Flags().GetString("root"); v != "" {
		opts.Root = v
	}
	if cmd.Flags().Changed("continue-on-error") {
		opts.ContinueOnError, _ = cmd.Flags().GetBool("continue-on-error")
	}

	only, _ := cmd.Flags().GetString("only")
	for _, id := range strings.Split(only, ",") {
		if id = strings.TrimSpace(id); id != "" {
			opts.Only = append(opts.Only, id)
		}
	}
	return opts, nil
}

// loadDatasets reads the manifest and applies the --only filter. An empty
// manifest is reported on stderr and returned as errReported.
func loadDatasets(opts runOpts, stderr io.Writer) ([]manifest.Dataset, error) {
	m, err := manifest.Load(opts.Manifest)
	if errors.Is(err, manifest.ErrNoDatasets) {
		fmt.Fprintf(stderr, "no datasets in %s\n", opts.Manifest)
		return nil, errReported
	}
	if err != nil {
		return nil, err
	}
	return m.Select(opts.Only)
}

func runIngest(ctx context.Context, c *config.Config, opts runOpts, stdout, stderr io.Writer) error {
	log := zap.L().With(zap.String("command", "run"))

	datasets, err := loadDatasets(opts, stderr)
	if err != nil {
		return err
	}

	pool, err := openPool(ctx, c.Postgres, true)
	if err != nil {
		return err
	}
	defer pool.Close()

	ic := c.Ingest
	ic.Root = opts.Root
	ic.ContinueOnError = opts.ContinueOnError
	engine, err := newEngine(pool, ic)
	if err != nil {
		return err
	}

	log.Info("starting ingestion",
		zap.String("manifest", opts.Manifest),
		zap.Int("datasets", len(datasets)),
		zap.Bool("continue_on_error", opts.ContinueOnError),
	)

	summary, err := engine.Run(ctx, datasets)
	if summary != nil {
		formatSummary(stdout, summary)
	}
	return eris.Wrap(err, "run")
}

// formatSummary writes one line per attempted dataset.
func formatSummary(out io.Writer, s *ingest.RunSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATASET\tTABLE\tROWS\tDURATION\tRESULT")
	_, _ = fmt.Fprintln(w, "-------\t-----\t----\t--------\t------")

	for _, r := range s.Results {
		result := "ok"
		if r.Err != nil {
			result = "failed"
			var se *ingest.StageError
			if errors.As(r.Err, &se) {
				result = "failed while " + se.Stage.String()
			}
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			r.Dataset,
			r.Table,
			r.Rows,
			r.Elapsed.Round(time.Millisecond),
			result,
		)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "run %s: %d/%d datasets loaded\n", s.RunID, len(s.Results)-len(s.Failed()), len(s.Results))
}
