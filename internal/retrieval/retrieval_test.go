package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/gik/internal/basestore"
	"github.com/standardbeagle/gik/internal/embedding"
	gikerrors "github.com/standardbeagle/gik/internal/errors"
	"github.com/standardbeagle/gik/internal/jsonl"
	"github.com/standardbeagle/gik/internal/kg"
	"github.com/standardbeagle/gik/internal/memory"
	"github.com/standardbeagle/gik/internal/model"
	"github.com/standardbeagle/gik/internal/vectorindex/backends/memvec"
)

func seedCodeBase(t *testing.T, branchDir string, embedder embedding.Embedder) *basestore.Base {
	t.Helper()
	ctx := context.Background()
	base := basestore.Open(branchDir, model.BaseCode, memvec.New())

	_, err := base.Vector.EnsureCreated(ctx, "local", embedder.ModelID(), embedder.Dimensions(), model.MetricCosine, string(base.Name))
	require.NoError(t, err)
	require.NoError(t, base.SetModelInfo(model.ModelInfo{Provider: "local", ModelID: embedder.ModelID(), Dimension: embedder.Dimensions()}))

	entries := []model.BaseSourceEntry{
		{ID: "code:auth.go", Base: string(base.Name), Path: "auth.go", StartLine: 1, EndLine: 3, Text: "package auth\nfunc Login() {}\n"},
		{ID: "code:widgets.go", Base: string(base.Name), Path: "widgets.go", StartLine: 1, EndLine: 3, Text: "package widgets\nfunc Render() {}\n"},
	}
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}
	vecs, err := embedder.EmbedBatch(ctx, texts)
	require.NoError(t, err)

	records := make([]model.VectorRecord, len(entries))
	for i, e := range entries {
		require.NoError(t, base.AppendSource(e))
		records[i] = model.VectorRecord{
			ID:        basestore.ChunkVectorID(e.ID),
			Embedding: vecs[i],
			Payload:   map[string]any{"chunkId": e.ID, "path": e.Path},
		}
	}
	_, err = base.Vector.Upsert(ctx, records)
	require.NoError(t, err)

	idx, err := base.BM25()
	require.NoError(t, err)
	for _, e := range entries {
		idx.AddDocument(e.ID, e.Text)
	}
	require.NoError(t, base.SaveBM25())
	return base
}

func seedMemoryBase(t *testing.T, branchDir string, embedder embedding.Embedder) (*basestore.Base, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	store := memory.New(branchDir)
	base := basestore.Open(store.Dir(), model.BaseMemory, memvec.New())

	_, err := base.Vector.EnsureCreated(ctx, "local", embedder.ModelID(), embedder.Dimensions(), model.MetricCosine, string(base.Name))
	require.NoError(t, err)
	require.NoError(t, base.SetModelInfo(model.ModelInfo{Provider: "local", ModelID: embedder.ModelID(), Dimension: embedder.Dimensions()}))

	entry, err := store.Ingest(model.MemoryScope("project"), model.MemorySource("user"), "remember to rotate the signing key every quarter", "", []string{"security"}, "main", "")
	require.NoError(t, err)

	vecs, err := embedder.EmbedBatch(ctx, []string{entry.Text})
	require.NoError(t, err)
	_, err = base.Vector.Upsert(ctx, []model.VectorRecord{{
		ID:        basestore.ChunkVectorID(entry.ID),
		Embedding: vecs[0],
		Payload:   map[string]any{"chunkId": entry.ID},
	}})
	require.NoError(t, err)

	idx, err := base.BM25()
	require.NoError(t, err)
	idx.AddDocument(entry.ID, entry.Text)
	require.NoError(t, base.SaveBM25())

	return base, store
}

func TestAskReturnsCodeChunksRankedByFusion(t *testing.T) {
	branchDir := t.TempDir()
	embedder := embedding.NewLocalStub(16)
	codeBase := seedCodeBase(t, branchDir, embedder)

	bundle, err := Ask(context.Background(), Config{
		Provider: "local",
		Embedder: embedder,
		Bases:    map[model.Base]*basestore.Base{model.BaseCode: codeBase},
	}, Options{
		Branch:   "main",
		Question: "how does login work",
		TopK:     5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, bundle.RagChunks)
	require.Empty(t, bundle.MemoryEvents)
	require.Contains(t, bundle.Bases, string(model.BaseCode))
}

func TestAskRefusesExplicitMismatchedBase(t *testing.T) {
	branchDir := t.TempDir()
	embedder := embedding.NewLocalStub(16)
	codeBase := seedCodeBase(t, branchDir, embedder)

	mismatched := embedding.NewLocalStub(32)
	_, err := Ask(context.Background(), Config{
		Provider: "local",
		Embedder: mismatched,
		Bases:    map[model.Base]*basestore.Base{model.BaseCode: codeBase},
	}, Options{
		Branch:   "main",
		Question: "anything",
		Bases:    []string{string(model.BaseCode)},
	})
	require.Error(t, err)
	var gikErr *gikerrors.GikError
	require.ErrorAs(t, err, &gikErr)
	require.Equal(t, gikerrors.BaseEmbeddingIncompatible, gikErr.Code)
}

func TestAskDefaultRequestSilentlyDropsIncompatibleBase(t *testing.T) {
	branchDir := t.TempDir()
	embedder := embedding.NewLocalStub(16)
	codeBase := seedCodeBase(t, branchDir, embedder)

	mismatched := embedding.NewLocalStub(32)
	bundle, err := Ask(context.Background(), Config{
		Provider: "local",
		Embedder: mismatched,
		Bases:    map[model.Base]*basestore.Base{model.BaseCode: codeBase},
	}, Options{
		Branch:   "main",
		Question: "anything",
	})
	require.Error(t, err)
	require.Empty(t, bundle.RagChunks)
	var gikErr *gikerrors.GikError
	require.ErrorAs(t, err, &gikErr)
	require.Equal(t, gikerrors.BaseNotIndexed, gikErr.Code)
}

func TestAskFilenameBoostPrefersMatchingPath(t *testing.T) {
	branchDir := t.TempDir()
	embedder := embedding.NewLocalStub(16)
	codeBase := seedCodeBase(t, branchDir, embedder)

	bundle, err := Ask(context.Background(), Config{
		Provider: "local",
		Embedder: embedder,
		Bases:    map[model.Base]*basestore.Base{model.BaseCode: codeBase},
	}, Options{
		Branch:   "main",
		Question: "what does widgets.go do",
		TopK:     2,
	})
	require.NoError(t, err)
	require.NotEmpty(t, bundle.RagChunks)
	require.Equal(t, "widgets.go", bundle.RagChunks[0].Path)
}

func TestAskWithRerankerReordersByRerankScore(t *testing.T) {
	branchDir := t.TempDir()
	embedder := embedding.NewLocalStub(16)
	codeBase := seedCodeBase(t, branchDir, embedder)

	bundle, err := Ask(context.Background(), Config{
		Provider: "local",
		Embedder: embedder,
		Reranker: embedder,
		Bases:    map[model.Base]*basestore.Base{model.BaseCode: codeBase},
	}, Options{
		Branch:   "main",
		Question: "login",
		TopK:     5,
		Rerank:   true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, bundle.RagChunks)
	for _, rc := range bundle.RagChunks {
		require.NotNil(t, rc.RerankScore)
	}
}

func TestAskPartitionsMemoryEventsFromRagChunks(t *testing.T) {
	branchDir := t.TempDir()
	embedder := embedding.NewLocalStub(16)
	codeBase := seedCodeBase(t, branchDir, embedder)
	memBase, memStore := seedMemoryBase(t, branchDir, embedder)

	bundle, err := Ask(context.Background(), Config{
		Provider:    "local",
		Embedder:    embedder,
		Bases:       map[model.Base]*basestore.Base{model.BaseCode: codeBase, model.BaseMemory: memBase},
		MemoryStore: memStore,
	}, Options{
		Branch:        "main",
		Question:      "signing key rotation",
		TopK:          5,
		IncludeMemory: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, bundle.MemoryEvents)
	require.Equal(t, model.MemoryScope("project"), bundle.MemoryEvents[0].Scope)
	require.Equal(t, model.MemorySource("user"), bundle.MemoryEvents[0].Source)
	require.Contains(t, bundle.MemoryEvents[0].Tags, "security")
}

func TestAskExcludesMemoryWhenNotRequested(t *testing.T) {
	branchDir := t.TempDir()
	embedder := embedding.NewLocalStub(16)
	codeBase := seedCodeBase(t, branchDir, embedder)
	memBase, memStore := seedMemoryBase(t, branchDir, embedder)

	bundle, err := Ask(context.Background(), Config{
		Provider:    "local",
		Embedder:    embedder,
		Bases:       map[model.Base]*basestore.Base{model.BaseCode: codeBase, model.BaseMemory: memBase},
		MemoryStore: memStore,
	}, Options{
		Branch:        "main",
		Question:      "signing key rotation",
		TopK:          5,
		IncludeMemory: false,
	})
	require.NoError(t, err)
	require.Empty(t, bundle.MemoryEvents)
}

func TestAskExpandsKgAroundRagChunkFiles(t *testing.T) {
	branchDir := t.TempDir()
	embedder := embedding.NewLocalStub(16)
	codeBase := seedCodeBase(t, branchDir, embedder)

	kgStore := kg.New(branchDir)
	require.NoError(t, kgStore.ReplaceAll(
		[]model.KgNode{
			{ID: "file:auth.go", Kind: "file", Label: "auth.go"},
			{ID: "symbol:Login", Kind: "symbol", Label: "Login"},
		},
		[]model.KgEdge{
			{ID: "edge:auth-login", From: "file:auth.go", To: "symbol:Login", Kind: "declares"},
		},
	))

	bundle, err := Ask(context.Background(), Config{
		Provider: "local",
		Embedder: embedder,
		KG:       kgStore,
		Bases:    map[model.Base]*basestore.Base{model.BaseCode: codeBase},
	}, Options{
		Branch:   "main",
		Question: "how does auth.go handle login",
		TopK:     5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, bundle.RagChunks)
	require.NotEmpty(t, bundle.KgResults)
	require.Contains(t, bundle.KgResults[0].Roots, "file:auth.go")
}

func TestBfsKeepsSubgraphsDisjointAcrossRoots(t *testing.T) {
	nodeByID := map[string]model.KgNode{
		"file:a.go":  {ID: "file:a.go", Kind: "file", Label: "a.go"},
		"file:b.go":  {ID: "file:b.go", Kind: "file", Label: "b.go"},
		"file:c.go":  {ID: "file:c.go", Kind: "file", Label: "c.go"},
		"sym:shared": {ID: "sym:shared", Kind: "function", Label: "shared"},
	}
	adjacency := map[string][]model.KgEdge{
		"file:a.go": {
			{ID: "edge:a-shared", From: "file:a.go", To: "sym:shared", Kind: "defines"},
		},
		"sym:shared": {
			{ID: "edge:a-shared", From: "file:a.go", To: "sym:shared", Kind: "defines"},
			{ID: "edge:b-shared", From: "file:b.go", To: "sym:shared", Kind: "defines"},
		},
		"file:b.go": {
			{ID: "edge:b-shared", From: "file:b.go", To: "sym:shared", Kind: "defines"},
		},
		"file:c.go": nil,
	}

	globalUsed := make(map[string]bool)
	nodesA, _ := bfs("file:a.go", adjacency, nodeByID, globalUsed, 2, 10, 10)
	require.Len(t, nodesA, 2) // file:a.go, sym:shared

	nodesB, edgesB := bfs("file:b.go", adjacency, nodeByID, globalUsed, 2, 10, 10)
	require.Len(t, nodesB, 1) // file:b.go only: sym:shared already claimed by subgraph A
	require.Equal(t, "file:b.go", nodesB[0].ID)
	for _, e := range edgesB {
		require.NotEqual(t, "sym:shared", e.To)
	}
}

func TestAskAppendsAskLogEntry(t *testing.T) {
	branchDir := t.TempDir()
	embedder := embedding.NewLocalStub(16)
	codeBase := seedCodeBase(t, branchDir, embedder)
	logPath := branchDir + "/ask-log.jsonl"

	_, err := Ask(context.Background(), Config{
		Provider:   "local",
		Embedder:   embedder,
		Bases:      map[model.Base]*basestore.Base{model.BaseCode: codeBase},
		AskLogPath: logPath,
	}, Options{
		Branch:   "main",
		Question: "login",
		TopK:     5,
	})
	require.NoError(t, err)

	entries, err := jsonl.ReadAll[model.AskLogEntry](logPath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "login", entries[0].Question)
	require.Equal(t, "main", entries[0].Branch)
}
