// Package engine is the single façade spec §4.1 names: it resolves
// workspace/branch/config, owns the collaborator handles every pipeline
// needs, and dispatches init/add/remove/commit/reindex/ask/status/show/
// release/memory operations against them. cmd/gik and internal/mcpserver
// are both thin front-ends over this package — neither talks to
// internal/commit, internal/retrieval, etc. directly.
package engine

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/standardbeagle/gik/internal/basestore"
	"github.com/standardbeagle/gik/internal/config"
	"github.com/standardbeagle/gik/internal/embedding"
	gikerrors "github.com/standardbeagle/gik/internal/errors"
	"github.com/standardbeagle/gik/internal/ignore"
	"github.com/standardbeagle/gik/internal/kg"
	"github.com/standardbeagle/gik/internal/memory"
	"github.com/standardbeagle/gik/internal/model"
	"github.com/standardbeagle/gik/internal/stack"
	"github.com/standardbeagle/gik/internal/staging"
	"github.com/standardbeagle/gik/internal/timeline"
	"github.com/standardbeagle/gik/internal/vcs"
)

// branchOverrideFile is the file spec §3 Branch resolution priority 1
// names only as "a branch-override file under the knowledge root"; this
// repo fixes its name to BRANCH, matching the HEAD file's bare-word
// convention one directory up.
const branchOverrideFile = "BRANCH"

// branchNamePattern enforces spec §3's Branch grammar: letters, digits,
// -, _, ., /, with no leading/trailing/consecutive slash.
var branchNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+(/[A-Za-z0-9._-]+)*$`)

// ValidateBranchName reports whether name is a filesystem-safe branch
// identifier per spec §3.
func ValidateBranchName(name string) bool {
	return name != "" && branchNamePattern.MatchString(name)
}

// Engine bundles one workspace/branch's collaborator handles. A fresh
// Engine is cheap to construct (no model warm-up happens in New) and is
// not safe for concurrent use from more than one goroutine, matching the
// single-process/request-at-a-time model spec §5 describes.
type Engine struct {
	Workspace string
	Branch    string
	BranchDir string
	Config    *config.Config

	Timeline *timeline.Timeline
	Staging  *staging.Store
	KG       *kg.Store
	Stack    *stack.Store
	Memory   *memory.Store
	Bases    map[model.Base]*basestore.Base

	Embedder embedding.Embedder
	Reranker embedding.Reranker
	Matcher  *ignore.Matcher
}

// New resolves workspace (walking up from dir via vcs.FindRoot; falls
// back to dir itself when no .git marker is found, since a gik workspace
// need not be a git repository) and branch (spec §3 priority: override
// file, then source-control HEAD, then "main"), loads config, and wires
// every collaborator at <knowledgeRoot>/<branch>.
func New(dir string) (*Engine, error) {
	workspace := vcs.FindRoot(dir)
	if workspace == "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, gikerrors.New(gikerrors.WorkspaceNotFound, "engine.New", dir, "pass an existing directory", err)
		}
		workspace = abs
	}

	branch, err := ResolveBranch(workspace)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, err
	}

	return Open(workspace, branch, cfg)
}

// Open wires an Engine for an already-resolved workspace/branch/config,
// the constructor path tests and internal/mcpserver use when they want to
// bypass vcs/branch-file resolution.
func Open(workspace, branch string, cfg *config.Config) (*Engine, error) {
	if !ValidateBranchName(branch) {
		return nil, gikerrors.New(gikerrors.InvalidBranchName, "engine.Open", branch, "branch names use letters, digits, -, _, ., / only", nil)
	}

	branchDir := config.BranchDir(workspace, branch)
	matcher, err := ignore.Load(workspace)
	if err != nil {
		return nil, err
	}

	embedder := embedding.NewLocalStub(cfg.ProfileFor(model.BaseCode).Dimension)

	e := &Engine{
		Workspace: workspace,
		Branch:    branch,
		BranchDir: branchDir,
		Config:    cfg,
		Timeline:  timeline.New(branchDir),
		Staging:   staging.New(branchDir),
		KG:        kg.New(branchDir),
		Stack:     stack.New(branchDir),
		Memory:    memory.New(branchDir),
		Bases:     make(map[model.Base]*basestore.Base, 3),
		Embedder:  embedder,
		Reranker:  embedder,
		Matcher:   matcher,
	}

	for _, base := range []model.Base{model.BaseCode, model.BaseDocs, model.BaseMemory} {
		dir := filepath.Join(branchDir, string(base))
		backend, err := config.NewVectorBackend(cfg.VectorBackend, filepath.Join(dir, "index"))
		if err != nil {
			return nil, err
		}
		e.Bases[base] = basestore.Open(branchDir, base, backend)
	}

	return e, nil
}

// ResolveBranch applies spec §3's three-tier Branch resolution priority.
func ResolveBranch(workspace string) (string, error) {
	overridePath := filepath.Join(config.KnowledgeRoot(workspace), branchOverrideFile)
	if data, err := os.ReadFile(overridePath); err == nil {
		name := sanitizeBranchLine(string(data))
		if name != "" {
			return name, nil
		}
	} else if !os.IsNotExist(err) {
		return "", gikerrors.New(gikerrors.IoFailed, "engine.ResolveBranch", overridePath, "check file permissions", err)
	}

	if root := vcs.FindRoot(workspace); root != "" {
		if name, ok := vcs.Branch(root); ok {
			return name, nil
		}
	}

	return "main", nil
}

// SetBranchOverride writes the branch-override file, pinning future
// New()/ResolveBranch() calls against workspace to name regardless of
// source-control HEAD.
func SetBranchOverride(workspace, name string) error {
	if !ValidateBranchName(name) {
		return gikerrors.New(gikerrors.InvalidBranchName, "engine.SetBranchOverride", name, "branch names use letters, digits, -, _, ., / only", nil)
	}
	root := config.KnowledgeRoot(workspace)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return gikerrors.New(gikerrors.IoFailed, "engine.SetBranchOverride", root, "check directory permissions", err)
	}
	return os.WriteFile(filepath.Join(root, branchOverrideFile), []byte(name), 0o644)
}

func sanitizeBranchLine(s string) string {
	for i, r := range s {
		if r == '\n' || r == '\r' {
			return s[:i]
		}
	}
	return s
}
