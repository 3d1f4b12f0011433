package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the database and erp_ingest_log",
	Long:  "Creates the target database when it is missing and the erp_ingest_log audit table. Safe to run repeatedly.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := openPool(ctx, cfg.Postgres, true)
		if err != nil {
			return err
		}
		defer pool.Close()

		engine, err := newEngine(pool, cfg.Ingest)
		if err != nil {
			return err
		}
		if err := engine.Setup(ctx); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s is ready\n", cfg.Postgres)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
