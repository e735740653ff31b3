package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/gik/internal/engine"
	"github.com/standardbeagle/gik/internal/model"
)

var (
	reindexForce  bool
	reindexDryRun bool
)

var reindexCmd = &cobra.Command{
	Use:   "reindex <base>",
	Short: "Rebuild a base's vector index and BM25 snapshot under the active embedding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		result, err := e.Reindex(context.Background(), model.Base(args[0]), engine.ReindexOptions{
			Force:  reindexForce,
			DryRun: reindexDryRun,
		})
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func init() {
	reindexCmd.Flags().BoolVar(&reindexForce, "force", false, "Reindex even if the active embedding already matches what's stored")
	reindexCmd.Flags().BoolVar(&reindexDryRun, "dry-run", false, "Report what would change without touching storage")
	rootCmd.AddCommand(reindexCmd)
}
