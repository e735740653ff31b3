package commit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/gik/internal/basestore"
	"github.com/standardbeagle/gik/internal/embedding"
	gikerrors "github.com/standardbeagle/gik/internal/errors"
	"github.com/standardbeagle/gik/internal/ignore"
	"github.com/standardbeagle/gik/internal/kg"
	"github.com/standardbeagle/gik/internal/model"
	"github.com/standardbeagle/gik/internal/staging"
	"github.com/standardbeagle/gik/internal/timeline"
	"github.com/standardbeagle/gik/internal/vectorindex/backends/memvec"
)

type harness struct {
	workspace string
	branchDir string
	stg       *staging.Store
	tl        *timeline.Timeline
	kg        *kg.Store
	bases     map[model.Base]*basestore.Base
	embedder  *embedding.LocalStub
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	workspace := t.TempDir()
	branchDir := t.TempDir()

	tl := timeline.New(branchDir)
	require.NoError(t, tl.Append(model.Revision{ID: uuid.NewString(), Branch: "main", Message: "init", Operations: []model.Operation{{Kind: model.OpInit}}}))

	return &harness{
		workspace: workspace,
		branchDir: branchDir,
		stg:       staging.New(branchDir),
		tl:        tl,
		kg:        kg.New(branchDir),
		bases: map[model.Base]*basestore.Base{
			model.BaseCode: basestore.Open(branchDir, model.BaseCode, memvec.New()),
			model.BaseDocs: basestore.Open(branchDir, model.BaseDocs, memvec.New()),
		},
		embedder: embedding.NewLocalStub(16),
	}
}

func (h *harness) config(t *testing.T) Config {
	t.Helper()
	matcher, err := ignore.Load(h.workspace)
	require.NoError(t, err)
	return Config{
		Workspace: h.workspace,
		Branch:    "main",
		Matcher:   matcher,
		Embedder:  h.embedder,
		Provider:  "local",
		Metric:    model.MetricCosine,
		Bases:     h.bases,
		KG:        h.kg,
	}
}

func writeWorkspaceFile(t *testing.T, workspace, rel, content string) {
	t.Helper()
	path := filepath.Join(workspace, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRunIndexesAFileAndEmitsACommitRevision(t *testing.T) {
	h := newHarness(t)
	writeWorkspaceFile(t, h.workspace, "main.go", "package main\n\nfunc main() {}\n")

	_, err := h.stg.AddPending("main", string(model.BaseCode), filepath.Join(h.workspace, "main.go"), model.KindFilePath)
	require.NoError(t, err)

	result, err := Run(context.Background(), h.config(t), h.stg, h.tl)
	require.NoError(t, err)
	require.Equal(t, 1, result.SourceCount)
	require.Empty(t, result.Failures)
	require.Equal(t, []string{"code"}, result.Bases)

	sources, err := h.bases[model.BaseCode].Sources()
	require.NoError(t, err)
	require.Len(t, sources, 1)
	require.Equal(t, "main.go", sources[0].Path)

	count, err := h.bases[model.BaseCode].Vector.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, count)

	idx, err := h.bases[model.BaseCode].BM25()
	require.NoError(t, err)
	require.Equal(t, 1, idx.Count())

	head, err := h.tl.Head()
	require.NoError(t, err)
	require.Equal(t, result.Revision.ID, head)
}

func TestRunMarksOversizeFileFailed(t *testing.T) {
	h := newHarness(t)
	huge := make([]byte, 2<<20)
	for i := range huge {
		huge[i] = 'a'
	}
	writeWorkspaceFile(t, h.workspace, "big.txt", string(huge))

	_, err := h.stg.AddPending("main", string(model.BaseDocs), filepath.Join(h.workspace, "big.txt"), model.KindFilePath)
	require.NoError(t, err)

	result, err := Run(context.Background(), h.config(t), h.stg, h.tl)
	require.NoError(t, err)
	require.Equal(t, 0, result.SourceCount)
	require.Len(t, result.Failures, 1)

	pending, err := h.stg.List(staging.Filter{Branch: "main"})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, model.StatusFailed, pending[0].Status)
}

func TestRunAbortsOnEmbeddingModelMismatch(t *testing.T) {
	h := newHarness(t)
	writeWorkspaceFile(t, h.workspace, "a.go", "package a\n")

	_, err := h.stg.AddPending("main", string(model.BaseCode), filepath.Join(h.workspace, "a.go"), model.KindFilePath)
	require.NoError(t, err)
	_, err = Run(context.Background(), h.config(t), h.stg, h.tl)
	require.NoError(t, err)

	writeWorkspaceFile(t, h.workspace, "b.go", "package b\n")
	_, err = h.stg.AddPending("main", string(model.BaseCode), filepath.Join(h.workspace, "b.go"), model.KindFilePath)
	require.NoError(t, err)

	cfg := h.config(t)
	cfg.Embedder = embedding.NewLocalStub(32) // different dimension than the first commit
	_, err = Run(context.Background(), cfg, h.stg, h.tl)
	require.Error(t, err)
	var gikErr *gikerrors.GikError
	require.ErrorAs(t, err, &gikErr)
	require.Equal(t, gikerrors.EmbeddingModelMismatch, gikErr.Code)

	sources, err := h.bases[model.BaseCode].Sources()
	require.NoError(t, err)
	require.Len(t, sources, 1) // second commit never touched the base
}

func TestRunSkipsIgnoredFilesInDirectorySource(t *testing.T) {
	h := newHarness(t)
	writeWorkspaceFile(t, h.workspace, "keep.go", "package main\n")
	writeWorkspaceFile(t, h.workspace, "vendor/skip.go", "package vendor\n")
	writeWorkspaceFile(t, h.workspace, ".gitignore", "vendor/\n")

	_, err := h.stg.AddPending("main", string(model.BaseCode), h.workspace, model.KindDirectory)
	require.NoError(t, err)

	result, err := Run(context.Background(), h.config(t), h.stg, h.tl)
	require.NoError(t, err)
	require.Equal(t, 2, result.SourceCount) // keep.go + .gitignore itself

	sources, err := h.bases[model.BaseCode].Sources()
	require.NoError(t, err)
	for _, s := range sources {
		require.NotContains(t, s.Path, "vendor")
	}
}

func TestRunUsesSuppliedMessageOverAutoSummary(t *testing.T) {
	h := newHarness(t)
	writeWorkspaceFile(t, h.workspace, "a.go", "package a\n")
	_, err := h.stg.AddPending("main", string(model.BaseCode), filepath.Join(h.workspace, "a.go"), model.KindFilePath)
	require.NoError(t, err)

	cfg := h.config(t)
	cfg.Message = "feat(commit): index the first file"
	result, err := Run(context.Background(), cfg, h.stg, h.tl)
	require.NoError(t, err)
	require.Equal(t, "feat(commit): index the first file", result.Revision.Message)
}
