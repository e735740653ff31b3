package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/standardbeagle/gik/internal/basestore"
	gikerrors "github.com/standardbeagle/gik/internal/errors"
	"github.com/standardbeagle/gik/internal/memory"
	"github.com/standardbeagle/gik/internal/model"
)

// MemoryIngestResult is AddMemory's typed result (spec §4.10 "Ingest
// result includes (ingestedCount, failedCount, ingestedIds[],
// failed[(id, error)], vectorCount)"). This repo ingests exactly one
// entry per call, so the failed list is either empty or a single item.
type MemoryIngestResult struct {
	Revision      model.Revision
	IngestedCount int
	FailedCount   int
	IngestedIDs   []string
	Failed        []MemoryIngestFailure
	VectorCount   int
}

// MemoryIngestFailure pairs a failed ingest attempt with its reason.
type MemoryIngestFailure struct {
	ID    string
	Error string
}

func (e *Engine) memoryIngest(ctx context.Context, scope model.MemoryScope, source model.MemorySource, text, title string, tags []string, newID func() string, now func() time.Time) (MemoryIngestResult, error) {
	base, ok := e.Bases[model.BaseMemory]
	if !ok {
		return MemoryIngestResult{}, gikerrors.New(gikerrors.UnsupportedSourceKind, "engine.AddMemory", "memory", "no memory base handle configured", nil)
	}

	profile := e.Config.ProfileFor(model.BaseMemory)
	vectors, err := e.Embedder.EmbedBatch(ctx, []string{text})
	if err != nil {
		return MemoryIngestResult{}, gikerrors.New(gikerrors.EmbeddingProviderUnavailable, "engine.AddMemory", "memory", "check the embedding provider configuration", err)
	}
	if len(vectors) != 1 || len(vectors[0]) != e.Embedder.Dimensions() {
		return MemoryIngestResult{}, gikerrors.New(gikerrors.EmbeddingDimensionMismatch, "engine.AddMemory", "memory", "embedding provider violated its declared dimension", nil)
	}

	entry, err := e.Memory.Ingest(scope, source, text, title, tags, e.Branch, "")
	if err != nil {
		return MemoryIngestResult{}, err
	}

	if _, exists, err := base.ModelInfo(); err != nil {
		return MemoryIngestResult{}, err
	} else if !exists {
		if err := base.SetModelInfo(model.ModelInfo{
			Provider:  profile.Provider,
			ModelID:   e.Embedder.ModelID(),
			Dimension: e.Embedder.Dimensions(),
			CreatedAt: now().UTC(),
		}); err != nil {
			return MemoryIngestResult{}, err
		}
	}
	if _, err := base.Vector.EnsureCreated(ctx, profile.Provider, e.Embedder.ModelID(), e.Embedder.Dimensions(), model.MetricCosine, string(model.BaseMemory)); err != nil {
		return MemoryIngestResult{}, err
	}

	count, err := base.Vector.Upsert(ctx, []model.VectorRecord{{
		ID:        memory.VectorID(entry.ID),
		Embedding: vectors[0],
		Payload: map[string]any{
			"chunkId": entry.ID,
			"base":    string(model.BaseMemory),
		},
	}})
	if err != nil {
		return MemoryIngestResult{}, err
	}

	bmIdx, err := base.BM25()
	if err != nil {
		return MemoryIngestResult{}, err
	}
	bmIdx.AddDocument(entry.ID, text)
	if err := base.SaveBM25(); err != nil {
		return MemoryIngestResult{}, err
	}

	vectorCount, err := base.Vector.Count(ctx)
	if err != nil {
		return MemoryIngestResult{}, err
	}

	head, err := e.Timeline.Head()
	if err != nil {
		return MemoryIngestResult{}, err
	}
	rev := model.Revision{
		ID:         newID(),
		ParentID:   head,
		Branch:     e.Branch,
		Timestamp:  now().UTC(),
		Message:    fmt.Sprintf("memory: ingest %q", entry.Title),
		Operations: []model.Operation{{Kind: model.OpMemoryIngest, Count: 1}},
	}
	if err := e.Timeline.Append(rev); err != nil {
		return MemoryIngestResult{}, err
	}

	return MemoryIngestResult{
		Revision:      rev,
		IngestedCount: 1,
		IngestedIDs:   []string{entry.ID},
		VectorCount:   vectorCount,
	}, nil
}

// MemoryMetrics reports the memory base's entry/token/char counters
// (spec §4.10).
func (e *Engine) MemoryMetrics() (memory.Metrics, error) {
	return e.Memory.Metrics()
}

// MemoryPruneResult is memoryPrune's typed result.
type MemoryPruneResult struct {
	Revision      model.Revision
	Pruned        bool
	Count         int
	ArchivedCount int
	DeletedCount  int
}

// MemoryPrune evicts entries per memory/config.json's pruningPolicy and,
// for whichever of ArchivedIDs/DeletedIDs prune.go returns, removes the
// matching vector records and BM25 postings — cleanup internal/memory
// itself cannot do since it has no vectorindex dependency (spec §4.10).
func (e *Engine) MemoryPrune(ctx context.Context) (MemoryPruneResult, error) {
	result, err := e.Memory.Prune(time.Now())
	if err != nil {
		return MemoryPruneResult{}, err
	}
	if result.Count == 0 {
		return MemoryPruneResult{}, nil
	}

	base, ok := e.Bases[model.BaseMemory]
	if !ok {
		return MemoryPruneResult{}, gikerrors.New(gikerrors.UnsupportedSourceKind, "engine.MemoryPrune", "memory", "no memory base handle configured", nil)
	}

	evicted := append(append([]string{}, result.ArchivedIDs...), result.DeletedIDs...)
	if err := e.cleanupEvictedVectors(ctx, base, evicted); err != nil {
		return MemoryPruneResult{}, err
	}

	head, err := e.Timeline.Head()
	if err != nil {
		return MemoryPruneResult{}, err
	}
	rev := model.Revision{
		ID:        uuid.NewString(),
		ParentID:  head,
		Branch:    e.Branch,
		Timestamp: time.Now().UTC(),
		Message:   fmt.Sprintf("memory: prune %d entr(y/ies)", result.Count),
		Operations: []model.Operation{{
			Kind:          model.OpMemoryPrune,
			Count:         result.Count,
			ArchivedCount: len(result.ArchivedIDs),
			DeletedCount:  len(result.DeletedIDs),
		}},
	}
	if err := e.Timeline.Append(rev); err != nil {
		return MemoryPruneResult{}, err
	}

	return MemoryPruneResult{
		Revision:      rev,
		Pruned:        true,
		Count:         result.Count,
		ArchivedCount: len(result.ArchivedIDs),
		DeletedCount:  len(result.DeletedIDs),
	}, nil
}

// cleanupEvictedVectors deletes the vector records and BM25 postings for
// every evicted memory entry id.
func (e *Engine) cleanupEvictedVectors(ctx context.Context, base *basestore.Base, entryIDs []string) error {
	if len(entryIDs) == 0 {
		return nil
	}
	ids := make([]uint64, len(entryIDs))
	for i, id := range entryIDs {
		ids[i] = memory.VectorID(id)
	}
	if _, err := base.Vector.Delete(ctx, ids); err != nil {
		return err
	}

	bmIdx, err := base.BM25()
	if err != nil {
		return err
	}
	for _, id := range entryIDs {
		bmIdx.Remove(id)
	}
	return base.SaveBM25()
}
