package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/gik/internal/mcpserver"
)

var serveMCPCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Run the Model Context Protocol server over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpserver.New(flagWorkspace).Start(context.Background())
	},
}

func init() {
	rootCmd.AddCommand(serveMCPCmd)
}
