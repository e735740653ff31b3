// Package vectorindex defines the backend-agnostic vector capability
// (spec §4.8) and an Adapter that performs the bookkeeping the backend
// itself should not: dimension enforcement, VectorIndexMeta persistence
// (ModelInfo is persisted by internal/basestore), and translation of backend errors into the engine error
// taxonomy. The engine façade never imports a concrete backend directly
// (spec §9 "adapter boundary preserved") — callers construct an Adapter
// with a Backend implementation injected.
package vectorindex

import (
	"context"

	"github.com/standardbeagle/gik/internal/model"
)

// SearchHit is one ranked result from Backend.Query.
type SearchHit struct {
	ID      uint64
	Score   float64
	Payload map[string]any
}

// Backend is the capability interface spec §4.8 requires of a pluggable
// vector store (the columnar vector store implementation itself is out of
// scope per spec §1 — this is the seam it plugs into). A backend is
// permitted to be asynchronous internally but must expose this
// synchronous surface (spec §9 "async inside sync out").
type Backend interface {
	Create(ctx context.Context, meta model.VectorIndexMeta) error
	Upsert(ctx context.Context, records []model.VectorRecord) (int, error)
	Query(ctx context.Context, embedding []float32, topK int, filter map[string]any) ([]SearchHit, error)
	Delete(ctx context.Context, ids []uint64) (int, error)
	Count(ctx context.Context) (int, error)
	Exists(ctx context.Context) (bool, error)
	// Name identifies the backend for VectorIndexMeta.Backend / meta.json's
	// "backend" string (spec §9: readers switch on this, never convert).
	Name() string
}
