package main

import (
	"github.com/spf13/cobra"

	"github.com/standardbeagle/gik/internal/engine"
)

var (
	showIncludeKG bool
	showKGFormat  string
)

var showCmd = &cobra.Command{
	Use:   "show [rev]",
	Short: "Resolve a revision reference and show its metadata",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rev := "HEAD"
		if len(args) == 1 {
			rev = args[0]
		}
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		view, err := e.Show(rev, engine.ShowOptions{IncludeKGExport: showIncludeKG, KGFormat: showKGFormat})
		if err != nil {
			return err
		}
		return printJSON(view)
	},
}

func init() {
	showCmd.Flags().BoolVar(&showIncludeKG, "kg", false, "Include a knowledge-graph export")
	showCmd.Flags().StringVar(&showKGFormat, "kg-format", "dot", "Export format: dot, mermaid, or blockdiagram")
	rootCmd.AddCommand(showCmd)
}
