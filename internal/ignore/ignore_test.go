package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestProjectFileWinsOnNegationConflict(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "*.log\n")
	writeFile(t, filepath.Join(root, ".gikignore"), "!keep.log\n")

	m, err := Load(root)
	require.NoError(t, err)

	require.True(t, m.Match("debug.log", false), "debug.log should stay ignored via source-control rule")
	require.False(t, m.Match("keep.log", false), "gikignore negation should win over gitignore")
}

func TestDirOnlyPatternRequiresDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gikignore"), "build/\n")

	m, err := Load(root)
	require.NoError(t, err)

	require.True(t, m.Match("build", true))
	require.False(t, m.Match("build", false))
}

func TestMissingIgnoreFilesMatchNothing(t *testing.T) {
	root := t.TempDir()
	m, err := Load(root)
	require.NoError(t, err)
	require.False(t, m.Match("anything.go", false))
}
