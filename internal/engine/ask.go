package engine

import (
	"context"

	"github.com/standardbeagle/gik/internal/config"
	"github.com/standardbeagle/gik/internal/model"
	"github.com/standardbeagle/gik/internal/retrieval"
)

// AskOptions parameterizes one ask invocation (spec §4.1 ask, §4.6).
type AskOptions struct {
	Question      string
	Bases         []string
	TopK          int
	IncludeMemory bool
	Rerank        bool
	QueryVariants []string
}

// Ask runs the hybrid retrieval pipeline and returns the resulting
// context bundle, logging the query to the branch-agnostic ask log.
func (e *Engine) Ask(ctx context.Context, opts AskOptions) (model.AskContextBundle, error) {
	head, err := e.Timeline.Head()
	if err != nil {
		return model.AskContextBundle{}, err
	}

	profile := e.Config.ProfileFor(model.BaseCode)
	cfg := retrieval.Config{
		Provider:      profile.Provider,
		VectorBackend: e.Config.VectorBackend,
		Embedder:      e.Embedder,
		Bases:         e.Bases,
		MemoryStore:   e.Memory,
		KG:            e.KG,

		AskLogPath: config.AskLogPath(e.Workspace),

		DensePoolSize:  e.Config.Retrieval.DensePoolSize,
		SparsePoolSize: e.Config.Retrieval.SparsePoolSize,
		RerankPoolSize: e.Config.Retrieval.RerankPoolSize,
		FinalK:         e.Config.Retrieval.FinalK,
	}
	if opts.Rerank {
		cfg.Reranker = e.Reranker
	}

	return retrieval.Ask(ctx, cfg, retrieval.Options{
		Branch:        e.Branch,
		Question:      opts.Question,
		Bases:         opts.Bases,
		TopK:          opts.TopK,
		IncludeMemory: opts.IncludeMemory,
		Rerank:        opts.Rerank,
		QueryVariants: opts.QueryVariants,
		HeadRevision:  head,
	})
}
