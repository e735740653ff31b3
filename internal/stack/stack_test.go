package stack

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/standardbeagle/gik/internal/ignore"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRescanClassifiesLanguagesAndParsesGoMod(t *testing.T) {
	workspace := t.TempDir()
	writeFile(t, workspace, "main.go", "package main\n")
	writeFile(t, workspace, "go.mod", "module example.com/foo\n\ngo 1.24\n\nrequire (\n\tgithub.com/google/uuid v1.6.0\n)\n")

	matcher, err := ignore.Load(workspace)
	require.NoError(t, err)

	store := New(t.TempDir())
	stats, err := Rescan(context.Background(), workspace, matcher, store)
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalFiles)
	require.Equal(t, 1, stats.Languages["go"])

	deps, err := store.Dependencies()
	require.NoError(t, err)
	require.Len(t, deps, 1)
	require.Equal(t, "github.com/google/uuid", deps[0].Name)
	require.Contains(t, stats.Managers, "go")
}

func TestRescanSkipsIgnoredPaths(t *testing.T) {
	workspace := t.TempDir()
	writeFile(t, workspace, "keep.go", "package main\n")
	writeFile(t, workspace, "vendor/skip.go", "package vendor\n")
	writeFile(t, workspace, ".gitignore", "vendor/\n")

	matcher, err := ignore.Load(workspace)
	require.NoError(t, err)

	store := New(t.TempDir())
	stats, err := Rescan(context.Background(), workspace, matcher, store)
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalFiles) // keep.go + .gitignore itself

	files, err := store.Files()
	require.NoError(t, err)
	for _, f := range files {
		require.NotContains(t, f.Path, "vendor")
	}
}
