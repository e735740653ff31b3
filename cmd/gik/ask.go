package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/gik/internal/engine"
)

var (
	askBases         []string
	askTopK          int
	askIncludeMemory bool
	askRerank        bool
	askQueryVariants []string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Run the hybrid retrieval pipeline and print a context bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		bundle, err := e.Ask(context.Background(), engine.AskOptions{
			Question:      args[0],
			Bases:         askBases,
			TopK:          askTopK,
			IncludeMemory: askIncludeMemory,
			Rerank:        askRerank,
			QueryVariants: askQueryVariants,
		})
		if err != nil {
			return err
		}
		return printJSON(bundle)
	},
}

func init() {
	askCmd.Flags().StringSliceVar(&askBases, "base", nil, "Bases to search: code, docs, memory; all when omitted")
	askCmd.Flags().IntVar(&askTopK, "top-k", 0, "Number of final chunks to return")
	askCmd.Flags().BoolVar(&askIncludeMemory, "include-memory", false, "Include the memory base in retrieval")
	askCmd.Flags().BoolVar(&askRerank, "rerank", false, "Apply the cross-encoder reranker")
	askCmd.Flags().StringSliceVar(&askQueryVariants, "query-variant", nil, "Additional query rewrites to pool alongside the question")
	rootCmd.AddCommand(askCmd)
}
