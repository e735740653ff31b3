package staging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/gik/internal/model"
)

func TestAddPendingInfersKindAndBase(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))

	store := New(t.TempDir())
	entry, err := store.AddPending("main", "", srcDir, "")
	require.NoError(t, err)
	require.Equal(t, model.KindDirectory, entry.Kind)
	require.Equal(t, string(model.BaseCode), entry.Base)
}

func TestAddPendingTwiceDeduplicates(t *testing.T) {
	store := New(t.TempDir())
	file := filepath.Join(t.TempDir(), "README.md")
	require.NoError(t, os.WriteFile(file, []byte("# hi"), 0o644))

	_, err := store.AddPending("main", "", file, "")
	require.NoError(t, err)
	_, err = store.AddPending("main", "", file, "")
	require.Error(t, err)

	all, err := store.List(Filter{Branch: "main"})
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestMarkStatusRefusesToReopenTerminal(t *testing.T) {
	store := New(t.TempDir())
	file := filepath.Join(t.TempDir(), "a.go")
	require.NoError(t, os.WriteFile(file, []byte("package a"), 0o644))
	entry, err := store.AddPending("main", "", file, "")
	require.NoError(t, err)

	require.NoError(t, store.MarkStatus(entry.ID, model.StatusIndexed, ""))
	err = store.MarkStatus(entry.ID, model.StatusPending, "")
	require.Error(t, err)
}

func TestSummaryMatchesRecomputation(t *testing.T) {
	store := New(t.TempDir())
	for i := 0; i < 3; i++ {
		file := filepath.Join(t.TempDir(), "f.go")
		require.NoError(t, os.WriteFile(file, []byte("package a"), 0o644))
		_, err := store.AddPending("main", "", file, "")
		require.NoError(t, err)
	}
	all, err := store.List(Filter{})
	require.NoError(t, err)
	want := summarize(all)

	got, err := store.Summary()
	require.NoError(t, err)
	require.Equal(t, want.PendingCount, got.PendingCount)
	require.Equal(t, want.ByBase, got.ByBase)
}

func TestRemoveLeavesTerminalEntriesForAudit(t *testing.T) {
	store := New(t.TempDir())
	file := filepath.Join(t.TempDir(), "a.go")
	require.NoError(t, os.WriteFile(file, []byte("package a"), 0o644))
	entry, err := store.AddPending("main", "", file, "")
	require.NoError(t, err)
	require.NoError(t, store.MarkStatus(entry.ID, model.StatusIndexed, ""))

	n, err := store.Remove("main", []string{file})
	require.NoError(t, err)
	require.Equal(t, 0, n, "terminal entries are never removed")

	all, err := store.List(Filter{Branch: "main"})
	require.NoError(t, err)
	require.Len(t, all, 1)
}
