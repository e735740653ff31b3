package engine

import (
	"context"

	"github.com/standardbeagle/gik/internal/commit"
	"github.com/standardbeagle/gik/internal/model"
)

// Commit runs the commit pipeline over every source currently pending
// for this branch and emits a Commit revision (spec §4.1 commit, §4.4).
func (e *Engine) Commit(ctx context.Context, message string) (commit.Result, error) {
	cfg := commit.Config{
		Workspace: e.Workspace,
		Branch:    e.Branch,
		Matcher:   e.Matcher,

		Embedder: e.Embedder,
		Provider: e.Config.ProfileFor(model.BaseCode).Provider,
		Metric:   model.MetricCosine,

		BatchSize:    e.Config.BatchSize,
		MaxFileBytes: e.Config.MaxFileBytes,
		MaxFileLines: e.Config.MaxFileLines,

		Bases:   e.Bases,
		KG:      e.KG,
		Message: message,
	}

	return commit.Run(ctx, cfg, e.Staging, e.Timeline)
}
