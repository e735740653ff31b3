package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesBuiltInDefaultsWithNoFileOrEnv(t *testing.T) {
	workspace := t.TempDir()
	cfg, err := Load(workspace)
	require.NoError(t, err)
	require.Equal(t, DeviceAuto, cfg.Device)
	require.Equal(t, "memory", cfg.VectorBackend)
	require.Equal(t, 32, cfg.BatchSize)
	require.Equal(t, "local", cfg.Embeddings.Default.Provider)
	require.Equal(t, 384, cfg.Embeddings.Default.Dimension)
}

func TestLoadReadsConfigFileOverDefaults(t *testing.T) {
	workspace := t.TempDir()
	path := Path(workspace)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("batchSize: 64\nvectorBackend: sqlite-vec\n"), 0o644))

	cfg, err := Load(workspace)
	require.NoError(t, err)
	require.Equal(t, 64, cfg.BatchSize)
	require.Equal(t, "sqlite-vec", cfg.VectorBackend)
}

func TestLoadEnvVarOverridesConfigFile(t *testing.T) {
	workspace := t.TempDir()
	path := Path(workspace)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("device: cpu\n"), 0o644))

	t.Setenv("GIK_DEVICE", "gpu")
	cfg, err := Load(workspace)
	require.NoError(t, err)
	require.Equal(t, Device("gpu"), cfg.Device)
}

func TestGikConfigEnvVarOverridesConfigPath(t *testing.T) {
	workspace := t.TempDir()
	custom := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(custom, []byte("batchSize: 99\n"), 0o644))

	t.Setenv("GIK_CONFIG", custom)
	cfg, err := Load(workspace)
	require.NoError(t, err)
	require.Equal(t, 99, cfg.BatchSize)
}

func TestWriteThenLoadRoundTrips(t *testing.T) {
	workspace := t.TempDir()
	cfg, err := Load(workspace)
	require.NoError(t, err)
	cfg.BatchSize = 7
	cfg.Embeddings.Default.Dimension = 512

	require.NoError(t, Write(workspace, cfg))

	reloaded, err := Load(workspace)
	require.NoError(t, err)
	require.Equal(t, 7, reloaded.BatchSize)
	require.Equal(t, 512, reloaded.Embeddings.Default.Dimension)
}

func TestProfileForFallsBackToDefault(t *testing.T) {
	cfg := &Config{Embeddings: Embeddings{
		Default: EmbeddingProfile{Provider: "local", ModelID: "local-hash-stub", Dimension: 256},
		Bases:   map[string]EmbeddingProfile{"docs": {Provider: "local", ModelID: "local-hash-stub", Dimension: 128}},
	}}
	require.Equal(t, 128, cfg.ProfileFor("docs").Dimension)
	require.Equal(t, 256, cfg.ProfileFor("code").Dimension)
}

func TestNewVectorBackendRejectsUnknownName(t *testing.T) {
	_, err := NewVectorBackend("made-up", t.TempDir())
	require.Error(t, err)
}

func TestNewVectorBackendMemoryDefault(t *testing.T) {
	b, err := NewVectorBackend("", t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "memory", b.Name())
}
