package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/gik/internal/model"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Ingest, inspect, and prune the memory base",
}

var (
	memoryScope  string
	memorySource string
	memoryTitle  string
	memoryTags   []string
)

var memoryIngestCmd = &cobra.Command{
	Use:   "ingest <text>",
	Short: "Ingest a note directly into the memory base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		result, err := e.AddMemory(context.Background(), model.MemoryScope(memoryScope), model.MemorySource(memorySource), args[0], memoryTitle, memoryTags)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var memoryMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Report the memory base's entry, token, and character counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		metrics, err := e.MemoryMetrics()
		if err != nil {
			return err
		}
		return printJSON(metrics)
	},
}

var memoryPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Evict memory entries per the configured pruning policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		result, err := e.MemoryPrune(context.Background())
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func init() {
	memoryIngestCmd.Flags().StringVar(&memoryScope, "scope", string(model.ScopeProject), "Memory scope: project, branch, or global")
	memoryIngestCmd.Flags().StringVar(&memorySource, "source", string(model.SourceManualNote), "Memory source kind")
	memoryIngestCmd.Flags().StringVar(&memoryTitle, "title", "", "Note title")
	memoryIngestCmd.Flags().StringSliceVar(&memoryTags, "tag", nil, "Tags")

	memoryCmd.AddCommand(memoryIngestCmd, memoryMetricsCmd, memoryPruneCmd)
	rootCmd.AddCommand(memoryCmd)
}
