package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/erp-ingest/internal/fetcher"
	"github.com/sells-group/erp-ingest/internal/header"
)

var headersCmd = &cobra.Command{
	Use:   "headers [dataset-id...]",
	Short: "Preview the column names each dataset would get",
	Long: `Downloads each dataset, reads its first CSV record and prints the raw
header next to the column name it normalizes to. Nothing is written to disk
or to the database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		manifestPath, _ := cmd.Flags().GetString("manifest")
		if manifestPath == "" {
			manifestPath = cfg.Ingest.Manifest
		}
		datasets, err := loadDatasets(runOpts{Manifest: manifestPath, Only: args}, cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		f := newFetcher(cfg.Ingest)
		out := cmd.OutOrStdout()
		for _, ds := range datasets {
			raw, err := fetchHeader(cmd.Context(), f, ds.URL)
			if err != nil {
				return eris.Wrapf(err, "headers: %s", ds.Name())
			}
			_, _ = fmt.Fprintf(out, "%s -> %s\n", ds.Name(), ds.Table)
			formatHeaderMapping(out, raw, header.NormalizeAll(raw))
			_, _ = fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	headersCmd.Flags().String("manifest", "", "dataset manifest (default from ingest.manifest)")
	rootCmd.AddCommand(headersCmd)
}

// fetchHeader downloads url only as far as its first CSV record.
func fetchHeader(ctx context.Context, f fetcher.Fetcher, url string) ([]string, error) {
	body, err := f.Download(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck
	return header.ReadFirst(body)
}

func formatHeaderMapping(out io.Writer, raw, normalized []string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tHEADER\tCOLUMN")
	for i := range raw {
		_, _ = fmt.Fprintf(w, "%d\t%q\t%s\n", i+1, raw[i], normalized[i])
	}
	_ = w.Flush()
}
