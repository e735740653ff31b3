package embedding

import (
	"context"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/standardbeagle/gik/internal/bm25"
)

// LocalStub is a deterministic, model-free Embedder/Reranker used when no
// model-backed provider is configured (spec §1: model runtimes themselves
// are out of scope). It hash-projects tokens into a fixed-width vector the
// way the teacher's file_content_store.go reaches for xxhash.Sum64 for a
// fast, deterministic fingerprint rather than a cryptographic one.
type LocalStub struct {
	dim int
}

// NewLocalStub returns a stub producing vectors of the given dimension.
func NewLocalStub(dimension int) *LocalStub {
	return &LocalStub{dim: dimension}
}

func (s *LocalStub) ModelID() string { return "local-hash-stub" }
func (s *LocalStub) Dimensions() int { return s.dim }

// EmbedBatch hash-projects each text's tokens into a bag-of-hashed-features
// vector, L2-normalized so cosine similarity behaves sensibly. This is not
// a semantic embedding — it exists so the rest of the engine (chunking,
// vector storage, fusion, reranking) is exercisable without a real model.
func (s *LocalStub) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = s.embedOne(text)
	}
	return out, nil
}

func (s *LocalStub) embedOne(text string) []float32 {
	vec := make([]float32, s.dim)
	for _, tok := range bm25.Tokenize(text) {
		h := xxhash.Sum64String(tok)
		idx := h % uint64(s.dim)
		sign := float32(1)
		if (h>>1)%2 == 0 {
			sign = -1
		}
		vec[idx] += sign
	}
	normalize(vec)
	return vec
}

func normalize(v []float32) {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(1 / math.Sqrt(sumSq))
	for i := range v {
		v[i] *= norm
	}
}

// Rerank scores each document by lexical token overlap with the query,
// standing in for a cross-encoder when no reranker model is configured.
func (s *LocalStub) Rerank(ctx context.Context, query string, documents []string) ([]float64, error) {
	qTokens := bm25.Tokenize(query)
	qSet := make(map[string]bool, len(qTokens))
	for _, t := range qTokens {
		qSet[t] = true
	}

	scores := make([]float64, len(documents))
	for i, doc := range documents {
		docTokens := bm25.Tokenize(doc)
		var overlap int
		for _, t := range docTokens {
			if qSet[t] {
				overlap++
			}
		}
		if len(docTokens) == 0 {
			continue
		}
		scores[i] = float64(overlap) / float64(len(docTokens)+len(qTokens))
	}
	return scores, nil
}
