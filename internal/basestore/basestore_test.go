package basestore

import (
	"testing"

	"github.com/standardbeagle/gik/internal/model"
	"github.com/standardbeagle/gik/internal/vectorindex/backends/memvec"
	"github.com/stretchr/testify/require"
)

func TestSourcesDedupesByIDKeepingLatest(t *testing.T) {
	b := Open(t.TempDir(), model.BaseCode, memvec.New())

	require.NoError(t, b.AppendSource(model.BaseSourceEntry{ID: "code:a.go", Path: "a.go", Text: "v1"}))
	require.NoError(t, b.AppendSource(model.BaseSourceEntry{ID: "code:b.go", Path: "b.go", Text: "v1"}))
	require.NoError(t, b.AppendSource(model.BaseSourceEntry{ID: "code:a.go", Path: "a.go", Text: "v2"}))

	sources, err := b.Sources()
	require.NoError(t, err)
	require.Len(t, sources, 2)
	for _, s := range sources {
		if s.ID == "code:a.go" {
			require.Equal(t, "v2", s.Text)
		}
	}
}

func TestModelInfoRoundTrips(t *testing.T) {
	b := Open(t.TempDir(), model.BaseCode, memvec.New())
	_, exists, err := b.ModelInfo()
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, b.SetModelInfo(model.ModelInfo{Provider: "local", ModelID: "local-hash-stub", Dimension: 16}))
	info, exists, err := b.ModelInfo()
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, "local-hash-stub", info.ModelID)
}

func TestBM25IsLazilyLoadedAndSavedAsFullRewrite(t *testing.T) {
	branchDir := t.TempDir()
	b := Open(branchDir, model.BaseCode, memvec.New())
	idx, err := b.BM25()
	require.NoError(t, err)
	idx.AddDocument("chunk-1", "hello world")
	require.NoError(t, b.SaveBM25())

	reopened := Open(branchDir, model.BaseCode, memvec.New())
	reloaded, err := reopened.BM25()
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.Count())
}

func TestChunkVectorIDIsDeterministic(t *testing.T) {
	require.Equal(t, ChunkVectorID("code:a.go"), ChunkVectorID("code:a.go"))
	require.NotEqual(t, ChunkVectorID("code:a.go"), ChunkVectorID("code:b.go"))
}
