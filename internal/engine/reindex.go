package engine

import (
	"context"
	"fmt"

	gikerrors "github.com/standardbeagle/gik/internal/errors"
	"github.com/standardbeagle/gik/internal/model"
	"github.com/standardbeagle/gik/internal/reindex"
)

// ReindexOptions parameterizes one reindex invocation (spec §4.1 reindex).
type ReindexOptions struct {
	Force  bool
	DryRun bool
}

// Reindex rebuilds base under the currently-configured embedding, or
// reports NotReindexed if opts.Force is false and the active embedding
// already matches what's stored (spec §4.5).
func (e *Engine) Reindex(ctx context.Context, base model.Base, opts ReindexOptions) (reindex.Result, error) {
	handle, ok := e.Bases[base]
	if !ok {
		return reindex.Result{}, gikerrors.New(gikerrors.UnsupportedSourceKind, "engine.Reindex", string(base), fmt.Sprintf("no base handle configured for %q", base), nil)
	}

	profile := e.Config.ProfileFor(base)
	cfg := reindex.Config{
		Workspace: e.Workspace,
		Branch:    e.Branch,
		Base:      handle,

		Embedder: e.Embedder,
		Provider: profile.Provider,
		Metric:   model.MetricCosine,

		BatchSize: e.Config.BatchSize,
		Force:     opts.Force,
		DryRun:    opts.DryRun,
	}
	return reindex.Run(ctx, cfg, e.Timeline)
}
