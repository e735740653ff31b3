package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/gik/internal/config"
	"github.com/standardbeagle/gik/internal/engine"
	"github.com/standardbeagle/gik/internal/vcs"
)

var (
	flagWorkspace     string
	flagBranch        string
	flagVectorBackend string
	flagBatchSize     int
)

var rootCmd = &cobra.Command{
	Use:   "gik",
	Short: "A local-first knowledge engine for codebases",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagWorkspace, "workspace", "w", ".", "Workspace directory")
	rootCmd.PersistentFlags().StringVarP(&flagBranch, "branch", "b", "", "Branch name (defaults to the resolved HEAD/BRANCH branch)")
	rootCmd.PersistentFlags().StringVar(&flagVectorBackend, "vector-backend", "", "Override the configured vector backend: memory or sqlite-vec")
	rootCmd.PersistentFlags().IntVar(&flagBatchSize, "batch-size", 0, "Override the configured embedding batch size")
}

// openEngine resolves the workspace root the same way engine.New does
// (vcs.FindRoot, falling back to flagWorkspace itself), loads config,
// applies the CLI-option override layer config.Load's doc comment
// reserves for cmd/gik, resolves the branch (flagBranch, or
// engine.ResolveBranch's priority when unset), and opens an Engine
// against the result. It duplicates engine.New's workspace-resolution
// step rather than calling it directly because config overrides must be
// applied before Open constructs the base handles, not after.
func openEngine(cmd *cobra.Command) (*engine.Engine, error) {
	root := vcs.FindRoot(flagWorkspace)
	if root == "" {
		abs, err := filepath.Abs(flagWorkspace)
		if err != nil {
			return nil, err
		}
		root = abs
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	applyFlagOverrides(cmd, cfg)

	branch := flagBranch
	if branch == "" {
		branch, err = engine.ResolveBranch(root)
		if err != nil {
			return nil, err
		}
	}
	return engine.Open(root, branch, cfg)
}

// applyFlagOverrides sets the highest-precedence config layer from
// persistent flags the user actually changed (spec §6 precedence table).
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if f := cmd.Flags().Lookup("vector-backend"); f != nil && f.Changed {
		cfg.VectorBackend = flagVectorBackend
	}
	if f := cmd.Flags().Lookup("batch-size"); f != nil && f.Changed {
		cfg.BatchSize = flagBatchSize
	}
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
