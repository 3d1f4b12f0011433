package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/erp-ingest/internal/ingest"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent ingestions",
	Long:  "Lists erp_ingest_log entries, most recent first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		datasetID, _ := cmd.Flags().GetString("dataset")
		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			return eris.Errorf("status: --limit must be > 0, got %d", limit)
		}

		pool, err := openPool(ctx, cfg.Postgres, false)
		if err != nil {
			return err
		}
		defer pool.Close()

		entries, err := ingest.NewIngestLog().List(ctx, pool, datasetID, limit)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		if len(entries) == 0 {
			zap.L().Info("no ingestions recorded, run 'erp-ingest run' to load the manifest")
			return nil
		}

		formatStatusEntries(cmd.OutOrStdout(), entries)
		return nil
	},
}

func init() {
	statusCmd.Flags().String("dataset", "", "only show this dataset id")
	statusCmd.Flags().Int("limit", 20, "maximum number of entries")
	rootCmd.AddCommand(statusCmd)
}

// formatStatusEntries writes a tabular representation of log entries to w.
func formatStatusEntries(out io.Writer, entries []ingest.LogEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDATASET\tTABLE\tFETCHED\tROWS\tFILE")
	_, _ = fmt.Fprintln(w, "--\t-------\t-----\t-------\t----\t----")

	for _, e := range entries {
		dataset := e.DatasetID
		if dataset == "" {
			dataset = "-"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
			e.ID,
			dataset,
			e.TableName,
			e.FetchedAt.Format("2006-01-02 15:04"),
			e.RowCount,
			truncate(e.Filename, 60),
		)
	}
	_ = w.Flush()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
