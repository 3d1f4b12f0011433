package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/erp-ingest/internal/config"
)

var cfg *config.Config

// errReported marks a failure whose diagnostic was already written to stderr.
var errReported = errors.New("reported")

var rootCmd = &cobra.Command{
	Use:   "erp-ingest",
	Short: "Load ERP CSV exports into PostgreSQL",
	Long: "Fetches every dataset in the manifest, normalizes its CSV headers, recreates the target table " +
		"with TEXT columns, bulk-loads it with COPY and records each load in erp_ingest_log.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
