package reindex

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/gik/internal/basestore"
	"github.com/standardbeagle/gik/internal/embedding"
	gikerrors "github.com/standardbeagle/gik/internal/errors"
	"github.com/standardbeagle/gik/internal/model"
	"github.com/standardbeagle/gik/internal/timeline"
	"github.com/standardbeagle/gik/internal/vectorindex/backends/memvec"
)

func seedBase(t *testing.T, base *basestore.Base) {
	t.Helper()
	ctx := context.Background()
	stub16 := embedding.NewLocalStub(16)

	_, err := base.Vector.EnsureCreated(ctx, "local", stub16.ModelID(), stub16.Dimensions(), model.MetricCosine, string(base.Name))
	require.NoError(t, err)
	require.NoError(t, base.SetModelInfo(model.ModelInfo{Provider: "local", ModelID: stub16.ModelID(), Dimension: 16}))

	entries := []model.BaseSourceEntry{
		{ID: "code:a.go", Base: string(base.Name), Path: "a.go", StartLine: 1, EndLine: 2, Text: "package a\n"},
		{ID: "code:b.go", Base: string(base.Name), Path: "b.go", StartLine: 1, EndLine: 2, Text: "package b\n"},
	}
	vecs, err := stub16.EmbedBatch(ctx, []string{entries[0].Text, entries[1].Text})
	require.NoError(t, err)
	records := make([]model.VectorRecord, len(entries))
	for i, e := range entries {
		require.NoError(t, base.AppendSource(e))
		records[i] = model.VectorRecord{ID: basestore.ChunkVectorID(e.ID), Embedding: vecs[i]}
	}
	_, err = base.Vector.Upsert(ctx, records)
	require.NoError(t, err)

	idx, err := base.BM25()
	require.NoError(t, err)
	for _, e := range entries {
		idx.AddDocument(e.ID, e.Text)
	}
	require.NoError(t, base.SaveBM25())
}

func TestRunReturnsNotReindexedWhenModelUnchanged(t *testing.T) {
	branchDir := t.TempDir()
	base := basestore.Open(branchDir, model.BaseCode, memvec.New())
	seedBase(t, base)

	tl := timeline.New(branchDir)
	require.NoError(t, tl.Append(model.Revision{ID: uuid.NewString(), Branch: "main", Operations: []model.Operation{{Kind: model.OpInit}}}))

	_, err := Run(context.Background(), Config{
		Branch:   "main",
		Base:     base,
		Embedder: embedding.NewLocalStub(16),
		Provider: "local",
	}, tl)
	require.Error(t, err)
	var gikErr *gikerrors.GikError
	require.ErrorAs(t, err, &gikErr)
	require.Equal(t, gikerrors.NotReindexed, gikErr.Code)
}

func TestRunRebuildsUnderNewDimensionAndEmitsRevision(t *testing.T) {
	branchDir := t.TempDir()
	base := basestore.Open(branchDir, model.BaseCode, memvec.New())
	seedBase(t, base)

	tl := timeline.New(branchDir)
	require.NoError(t, tl.Append(model.Revision{ID: uuid.NewString(), Branch: "main", Operations: []model.Operation{{Kind: model.OpInit}}}))

	newEmbedder := embedding.NewLocalStub(32)
	result, err := Run(context.Background(), Config{
		Branch:   "main",
		Base:     base,
		Embedder: newEmbedder,
		Provider: "local",
	}, tl)
	require.NoError(t, err)
	require.Equal(t, 2, result.ChunkCount)
	require.Empty(t, result.ReadFailures)
	require.Equal(t, "local-hash-stub", result.FromModelID)
	require.Equal(t, "local-hash-stub", result.ToModelID)

	info, exists, err := base.ModelInfo()
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, 32, info.Dimension)
	require.NotNil(t, info.LastReindexedAt)

	count, err := base.Vector.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, count)

	idx, err := base.BM25()
	require.NoError(t, err)
	require.Equal(t, 2, idx.Count())

	head, err := tl.Head()
	require.NoError(t, err)
	require.Equal(t, result.Revision.ID, head)
}

func TestRunForceRebuildsEvenWhenModelUnchanged(t *testing.T) {
	branchDir := t.TempDir()
	base := basestore.Open(branchDir, model.BaseCode, memvec.New())
	seedBase(t, base)

	tl := timeline.New(branchDir)
	require.NoError(t, tl.Append(model.Revision{ID: uuid.NewString(), Branch: "main", Operations: []model.Operation{{Kind: model.OpInit}}}))

	result, err := Run(context.Background(), Config{
		Branch:   "main",
		Base:     base,
		Embedder: embedding.NewLocalStub(16),
		Provider: "local",
		Force:    true,
	}, tl)
	require.NoError(t, err)
	require.Equal(t, 2, result.ChunkCount)
}

func TestRunDryRunTouchesNoStorage(t *testing.T) {
	branchDir := t.TempDir()
	base := basestore.Open(branchDir, model.BaseCode, memvec.New())
	seedBase(t, base)

	tl := timeline.New(branchDir)
	require.NoError(t, tl.Append(model.Revision{ID: uuid.NewString(), Branch: "main", Operations: []model.Operation{{Kind: model.OpInit}}}))
	headBefore, err := tl.Head()
	require.NoError(t, err)

	result, err := Run(context.Background(), Config{
		Branch:   "main",
		Base:     base,
		Embedder: embedding.NewLocalStub(32),
		Provider: "local",
		DryRun:   true,
	}, tl)
	require.NoError(t, err)
	require.True(t, result.DryRun)
	require.Equal(t, 2, result.ChunkCount)

	headAfter, err := tl.Head()
	require.NoError(t, err)
	require.Equal(t, headBefore, headAfter)

	info, _, err := base.ModelInfo()
	require.NoError(t, err)
	require.Equal(t, 16, info.Dimension) // unchanged
}
