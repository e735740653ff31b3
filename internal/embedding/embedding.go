// Package embedding defines the embedding and reranker capability
// interfaces (spec §6) the commit, reindex, and retrieval pipelines call
// against. Concrete model runtimes are out of scope (spec §1 Non-goals);
// this package only defines the seam and a deterministic local stub for
// exercising the rest of the engine end to end.
package embedding

import "context"

// Embedder batches texts into fixed-dimension vectors. Implementations
// must return exactly Dimensions() components per vector; failures
// surface to callers as gikerrors.EmbeddingProviderUnavailable.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelID() string
	Dimensions() int
}

// Reranker scores (query, document) pairs; higher is more relevant.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string) ([]float64, error)
}
