// Package config loads engine configuration from config.yaml, environment
// variables, and built-in defaults (spec §6): github.com/spf13/viper's
// native SetDefault/AutomaticEnv/config-file stack implements the
// "env var > config file > built-in default" half of the precedence table
// directly, the same way the teacher's internal/config layers a base
// config under a project config, except sourced from viper instead of
// hand-rolled KDL merge logic. CLI-option precedence (the top of the
// table) is applied by cmd/gik, which overrides the returned Config's
// fields from cobra flags the user actually set.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/standardbeagle/gik/internal/model"
	"github.com/standardbeagle/gik/internal/vectorindex"
	"github.com/standardbeagle/gik/internal/vectorindex/backends/memvec"
	"github.com/standardbeagle/gik/internal/vectorindex/backends/sqlitevec"
)

// EnvPrefix is the prefix spec §6 names for recognized environment
// variables: GIK_CONFIG, GIK_DEVICE, GIK_MODELS_DIR, GIK_HOME, GIK_VERBOSE.
const EnvPrefix = "GIK"

// Device selects the compute device an embedding/reranker provider should
// prefer (spec §6: GIK_DEVICE ∈ {auto, gpu, cpu}). The engine itself never
// dispatches on this value — provider implementations are out of scope
// per spec §1 — it is only carried through so a real provider can read it.
type Device string

const (
	DeviceAuto Device = "auto"
	DeviceGPU  Device = "gpu"
	DeviceCPU  Device = "cpu"
)

// EmbeddingProfile mirrors spec §6's per-user gik config
// (embeddings.default{provider, modelId, dimension, maxTokens?, localPath?}
// and embeddings.bases.<name>{...}).
type EmbeddingProfile struct {
	Provider  string `mapstructure:"provider" yaml:"provider"`
	ModelID   string `mapstructure:"modelId" yaml:"modelId"`
	Dimension int    `mapstructure:"dimension" yaml:"dimension"`
	MaxTokens int    `mapstructure:"maxTokens" yaml:"maxTokens,omitempty"`
	LocalPath string `mapstructure:"localPath" yaml:"localPath,omitempty"`
}

// RetrievalTuning carries the pool-size/topK knobs internal/retrieval
// otherwise defaults internally (spec §4.6 is silent on exact pool sizes;
// this exposes them as config rather than hardcoding).
type RetrievalTuning struct {
	DensePoolSize  int `mapstructure:"densePoolSize" yaml:"densePoolSize"`
	SparsePoolSize int `mapstructure:"sparsePoolSize" yaml:"sparsePoolSize"`
	RerankPoolSize int `mapstructure:"rerankPoolSize" yaml:"rerankPoolSize"`
	FinalK         int `mapstructure:"finalK" yaml:"finalK"`
}

// Embeddings groups the default and per-base embedding profiles.
type Embeddings struct {
	Default EmbeddingProfile            `mapstructure:"default" yaml:"default"`
	Bases   map[string]EmbeddingProfile `mapstructure:"bases" yaml:"bases,omitempty"`
}

// Config is the full set of tunables the engine façade reads before
// dispatching a pipeline.
type Config struct {
	Device        Device `mapstructure:"device" yaml:"device"`
	ModelsDir     string `mapstructure:"modelsDir" yaml:"modelsDir"`
	Home          string `mapstructure:"home" yaml:"home"`
	Verbose       bool   `mapstructure:"verbose" yaml:"verbose"`
	VectorBackend string `mapstructure:"vectorBackend" yaml:"vectorBackend"` // "memory" | "sqlite-vec"

	BatchSize    int   `mapstructure:"batchSize" yaml:"batchSize"`
	MaxFileBytes int64 `mapstructure:"maxFileBytes" yaml:"maxFileBytes"`
	MaxFileLines int   `mapstructure:"maxFileLines" yaml:"maxFileLines"`

	Retrieval RetrievalTuning `mapstructure:"retrieval" yaml:"retrieval"`

	Embeddings Embeddings `mapstructure:"embeddings" yaml:"embeddings"`

	PruningPolicy *model.MemoryPruningPolicy `mapstructure:"pruningPolicy" yaml:"pruningPolicy,omitempty"`
}

// Path returns config.yaml's fixed location under the knowledge root
// (spec §6 on-disk layout), honoring GIK_CONFIG if set.
func Path(workspace string) string {
	if override := os.Getenv(EnvPrefix + "_CONFIG"); override != "" {
		return override
	}
	return filepath.Join(KnowledgeRoot(workspace), "config.yaml")
}

// KnowledgeRoot returns <workspace>/.guided/knowledge.
func KnowledgeRoot(workspace string) string {
	return filepath.Join(workspace, ".guided", "knowledge")
}

// BranchDir returns <workspace>/.guided/knowledge/<branch>.
func BranchDir(workspace, branch string) string {
	return filepath.Join(KnowledgeRoot(workspace), branch)
}

// AskLogPath returns the branch-agnostic ask log path (spec §6).
func AskLogPath(workspace string) string {
	return filepath.Join(KnowledgeRoot(workspace), "asks", "ask.log.jsonl")
}

// Load applies the env-var/config-file/default layers of spec §6's
// precedence table for workspace. cmd/gik applies the remaining (highest)
// layer — CLI options — by overriding fields on the returned Config from
// flags the user actually set.
func Load(workspace string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	v.SetConfigFile(Path(workspace))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", Path(workspace), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if home := os.Getenv(EnvPrefix + "_HOME"); home != "" {
		cfg.Home = home
	}
	if cfg.Home == "" {
		if dir, err := os.UserHomeDir(); err == nil {
			cfg.Home = filepath.Join(dir, ".gik")
		}
	}
	if modelsDir := os.Getenv(EnvPrefix + "_MODELS_DIR"); modelsDir != "" {
		cfg.ModelsDir = modelsDir
	}
	if cfg.ModelsDir == "" {
		cfg.ModelsDir = filepath.Join(cfg.Home, "models")
	}
	if device := os.Getenv(EnvPrefix + "_DEVICE"); device != "" {
		cfg.Device = Device(device)
	}
	if verbose := os.Getenv(EnvPrefix + "_VERBOSE"); verbose != "" {
		cfg.Verbose = verbose == "1" || verbose == "true"
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("device", string(DeviceAuto))
	v.SetDefault("vectorBackend", "memory")
	v.SetDefault("batchSize", 32)
	v.SetDefault("maxFileBytes", int64(1<<20))
	v.SetDefault("maxFileLines", 10000)
	v.SetDefault("retrieval.densePoolSize", 30)
	v.SetDefault("retrieval.sparsePoolSize", 30)
	v.SetDefault("retrieval.rerankPoolSize", 30)
	v.SetDefault("retrieval.finalK", 5)
	v.SetDefault("embeddings.default.provider", "local")
	v.SetDefault("embeddings.default.modelId", "local-hash-stub")
	v.SetDefault("embeddings.default.dimension", 384)
}

// Write persists cfg to workspace's config.yaml via write-to-temp-then-
// rename (spec §5 crash-safety rule for files whose atomic replacement
// matters — config.yaml is read at the start of every operation, so a
// torn write would corrupt every subsequent command).
func Write(workspace string, cfg *Config) error {
	path := Path(workspace)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: mkdir %s: %w", dir, err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("config: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// ProfileFor returns the embedding profile for base, falling back to the
// default profile when no per-base override is configured.
func (c *Config) ProfileFor(base model.Base) EmbeddingProfile {
	if p, ok := c.Embeddings.Bases[string(base)]; ok {
		return p
	}
	return c.Embeddings.Default
}

// NewVectorBackend constructs the backend named by cfg.VectorBackend,
// pointed at dir (spec §4.8: backend choice is switched on the persisted
// "backend" string, never converted between backends in place).
func NewVectorBackend(backendName, dir string) (vectorindex.Backend, error) {
	switch backendName {
	case "", "memory":
		return memvec.New(), nil
	case "sqlite-vec":
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("config: mkdir %s: %w", dir, err)
		}
		return sqlitevec.Open(dir)
	default:
		return nil, fmt.Errorf("config: unknown vectorBackend %q", backendName)
	}
}
