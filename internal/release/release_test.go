package release

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/gik/internal/model"
	"github.com/standardbeagle/gik/internal/timeline"
)

func appendCommit(t *testing.T, tl *timeline.Timeline, message string) model.Revision {
	t.Helper()
	head, err := tl.Head()
	require.NoError(t, err)
	rev := model.Revision{
		ID:       uuid.NewString(),
		ParentID: head,
		Branch:   "main",
		Message:  message,
		Operations: []model.Operation{{
			Kind: model.OpCommit,
		}},
	}
	require.NoError(t, tl.Append(rev))
	return rev
}

func TestRunGroupsByCanonicalTypeAndOrder(t *testing.T) {
	branchDir := t.TempDir()
	tl := timeline.New(branchDir)
	require.NoError(t, tl.Append(model.Revision{ID: uuid.NewString(), Branch: "main", Operations: []model.Operation{{Kind: model.OpInit}}}))

	appendCommit(t, tl, "fix(commit): propagate MarkStatus errors")
	appendCommit(t, tl, "feat(retrieval): add reciprocal rank fusion")
	appendCommit(t, tl, "chore: tidy imports")

	result, err := Run(Config{DryRun: true}, tl)
	require.NoError(t, err)
	require.Len(t, result.Groups, 3)
	require.Equal(t, "feat", result.Groups[0].Type)
	require.Equal(t, "fix", result.Groups[1].Type)
	require.Equal(t, "chore", result.Groups[2].Type)
	require.Contains(t, result.Markdown, "## Features")
	require.Contains(t, result.Markdown, "reciprocal rank fusion")
}

func TestRunRendersBreakingChangePrefix(t *testing.T) {
	branchDir := t.TempDir()
	tl := timeline.New(branchDir)
	require.NoError(t, tl.Append(model.Revision{ID: uuid.NewString(), Branch: "main", Operations: []model.Operation{{Kind: model.OpInit}}}))

	appendCommit(t, tl, "feat(engine)!: drop legacy status codes")

	result, err := Run(Config{DryRun: true}, tl)
	require.NoError(t, err)
	require.Len(t, result.Groups, 1)
	require.True(t, result.Groups[0].Entries[0].Breaking)
	require.Contains(t, result.Markdown, "BREAKING: ")
}

func TestRunSkipsNonConventionalMessages(t *testing.T) {
	branchDir := t.TempDir()
	tl := timeline.New(branchDir)
	require.NoError(t, tl.Append(model.Revision{ID: uuid.NewString(), Branch: "main", Operations: []model.Operation{{Kind: model.OpInit}}}))

	appendCommit(t, tl, "commit: 3 source(s) across 1 base(s)")

	result, err := Run(Config{DryRun: true}, tl)
	require.NoError(t, err)
	require.Empty(t, result.Groups)
	require.Equal(t, 1, result.Skipped)
	require.Contains(t, result.Markdown, "No changes in this range")
}

func TestRunDryRunDoesNotWriteOrAppendRevision(t *testing.T) {
	branchDir := t.TempDir()
	tl := timeline.New(branchDir)
	require.NoError(t, tl.Append(model.Revision{ID: uuid.NewString(), Branch: "main", Operations: []model.Operation{{Kind: model.OpInit}}}))
	appendCommit(t, tl, "feat: add X")

	headBefore, err := tl.Head()
	require.NoError(t, err)

	changelogPath := filepath.Join(branchDir, "CHANGELOG.md")
	result, err := Run(Config{DryRun: true, ChangelogPath: changelogPath}, tl)
	require.NoError(t, err)
	require.True(t, result.DryRun)
	require.NoFileExists(t, changelogPath)

	headAfter, err := tl.Head()
	require.NoError(t, err)
	require.Equal(t, headBefore, headAfter)
}

func TestRunWritesChangelogFile(t *testing.T) {
	branchDir := t.TempDir()
	tl := timeline.New(branchDir)
	require.NoError(t, tl.Append(model.Revision{ID: uuid.NewString(), Branch: "main", Operations: []model.Operation{{Kind: model.OpInit}}}))
	appendCommit(t, tl, "feat: add X")

	changelogPath := filepath.Join(branchDir, "CHANGELOG.md")
	_, err := Run(Config{ChangelogPath: changelogPath}, tl)
	require.NoError(t, err)
	require.FileExists(t, changelogPath)
}

func TestRunRespectsFromExclusiveBound(t *testing.T) {
	branchDir := t.TempDir()
	tl := timeline.New(branchDir)
	require.NoError(t, tl.Append(model.Revision{ID: uuid.NewString(), Branch: "main", Operations: []model.Operation{{Kind: model.OpInit}}}))

	first := appendCommit(t, tl, "feat: included before the range")
	appendCommit(t, tl, "feat: inside the range")

	result, err := Run(Config{From: first.ID, DryRun: true}, tl)
	require.NoError(t, err)
	require.Len(t, result.Groups, 1)
	require.Len(t, result.Groups[0].Entries, 1)
	require.Equal(t, "inside the range", result.Groups[0].Entries[0].Description)
}
