package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/gik/internal/engine"
)

var addBase string

var addCmd = &cobra.Command{
	Use:   "add <path>...",
	Short: "Stage files or directories for the next commit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		result, err := e.Add(context.Background(), args, engine.AddOptions{Base: addBase})
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func init() {
	addCmd.Flags().StringVar(&addBase, "base", "", "Base to stage into: code, docs, or memory; inferred when omitted")
	rootCmd.AddCommand(addCmd)
}
