package main

import (
	"github.com/spf13/cobra"

	"github.com/standardbeagle/gik/internal/engine"
)

var (
	releaseFrom   string
	releaseTo     string
	releaseDryRun bool
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Generate a Conventional Commits changelog between two timeline points",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		result, err := e.Release(engine.ReleaseOptions{From: releaseFrom, To: releaseTo, DryRun: releaseDryRun})
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func init() {
	releaseCmd.Flags().StringVar(&releaseFrom, "from", "", "Starting revision reference, exclusive")
	releaseCmd.Flags().StringVar(&releaseTo, "to", "", "Ending revision reference; defaults to HEAD")
	releaseCmd.Flags().BoolVar(&releaseDryRun, "dry-run", false, "Compute the changelog without writing CHANGELOG.md")
	rootCmd.AddCommand(releaseCmd)
}
