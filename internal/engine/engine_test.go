package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/gik/internal/config"
	"github.com/standardbeagle/gik/internal/model"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	workspace := t.TempDir()
	cfg, err := config.Load(workspace)
	require.NoError(t, err)
	cfg.Embeddings.Default.Dimension = 16

	e, err := Open(workspace, "main", cfg)
	require.NoError(t, err)
	return e
}

func writeFile(t *testing.T, workspace, rel, content string) string {
	t.Helper()
	path := filepath.Join(workspace, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInitIsIdempotent(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.Init()
	require.NoError(t, err)
	require.False(t, result.AlreadyExisted)

	again, err := e.Init()
	require.NoError(t, err)
	require.True(t, again.AlreadyExisted)
}

func TestAddCommitAskRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Init()
	require.NoError(t, err)

	path := writeFile(t, e.Workspace, "main.go", "package main\n\nfunc main() {}\n")

	addResult, err := e.Add(context.Background(), []string{path}, AddOptions{Base: string(model.BaseCode)})
	require.NoError(t, err)
	require.Len(t, addResult.Added, 1)
	require.Equal(t, 1, addResult.Summary.PendingCount)

	commitResult, err := e.Commit(context.Background(), "feat(core): index main.go")
	require.NoError(t, err)
	require.Equal(t, 1, commitResult.SourceCount)
	require.Equal(t, "feat(core): index main.go", commitResult.Revision.Message)

	bundle, err := e.Ask(context.Background(), AskOptions{Question: "main function", Bases: []string{"code"}, TopK: 5})
	require.NoError(t, err)
	require.NotEmpty(t, bundle.RagChunks)
	require.Equal(t, commitResult.Revision.ID, bundle.RevisionID)
}

func TestMemoryIngestAndPrune(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Init()
	require.NoError(t, err)

	ingest, err := e.AddMemory(context.Background(), model.ScopeProject, model.SourceManualNote, "remember to rotate keys", "rotate keys", []string{"ops"})
	require.NoError(t, err)
	require.Equal(t, 1, ingest.IngestedCount)
	require.Equal(t, 1, ingest.VectorCount)

	metrics, err := e.MemoryMetrics()
	require.NoError(t, err)
	require.Equal(t, 1, metrics.EntryCount)

	maxEntries := 0
	require.NoError(t, e.Memory.SetPolicy(model.MemoryPruningPolicy{MaxEntries: &maxEntries, Mode: model.PruneDelete}))

	pruneResult, err := e.MemoryPrune(context.Background())
	require.NoError(t, err)
	require.True(t, pruneResult.Pruned)
	require.Equal(t, 1, pruneResult.DeletedCount)

	metrics, err = e.MemoryMetrics()
	require.NoError(t, err)
	require.Equal(t, 0, metrics.EntryCount)
}

func TestStatusReportsBaseHealth(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Init()
	require.NoError(t, err)

	report, err := e.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, "main", report.Branch)
	require.Len(t, report.Bases, 3)
	for _, b := range report.Bases {
		require.Equal(t, "IndexMissing", b.Health)
	}
}

func TestShowResolvesHeadAfterInit(t *testing.T) {
	e := newTestEngine(t)
	initResult, err := e.Init()
	require.NoError(t, err)

	view, err := e.Show("HEAD", ShowOptions{})
	require.NoError(t, err)
	require.Equal(t, initResult.Revision.ID, view.Revision.ID)
}

func TestReleaseGroupsConventionalCommits(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Init()
	require.NoError(t, err)
	path := writeFile(t, e.Workspace, "a.go", "package a\n")
	_, err = e.Add(context.Background(), []string{path}, AddOptions{Base: string(model.BaseCode)})
	require.NoError(t, err)
	_, err = e.Commit(context.Background(), "feat(core): add a.go")
	require.NoError(t, err)

	result, err := e.Release(ReleaseOptions{DryRun: true})
	require.NoError(t, err)
	require.Len(t, result.Groups, 1)
	require.Equal(t, "feat", result.Groups[0].Type)
}

func TestResolveBranchFallsBackToMain(t *testing.T) {
	workspace := t.TempDir()
	branch, err := ResolveBranch(workspace)
	require.NoError(t, err)
	require.Equal(t, "main", branch)
}

func TestResolveBranchHonorsOverrideFile(t *testing.T) {
	workspace := t.TempDir()
	require.NoError(t, SetBranchOverride(workspace, "feature/x"))
	branch, err := ResolveBranch(workspace)
	require.NoError(t, err)
	require.Equal(t, "feature/x", branch)
}

func TestValidateBranchNameRejectsBadNames(t *testing.T) {
	require.True(t, ValidateBranchName("main"))
	require.True(t, ValidateBranchName("feature/x-1.2"))
	require.False(t, ValidateBranchName("/leading"))
	require.False(t, ValidateBranchName("trailing/"))
	require.False(t, ValidateBranchName("a//b"))
	require.False(t, ValidateBranchName(""))
}
