// Package stack scans a workspace for its file tree, dependency
// manifests, and detected technologies, persisting the result under
// <branch>/stack/ (spec §3 directory layout). Per-file language
// classification runs in a bounded worker pool via
// golang.org/x/sync/errgroup, the same pattern theRebelliousNerd-codenerd/internal/perception/semantic_classifier.go
// uses for concurrent I/O fan-out.
package stack

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	gikerrors "github.com/standardbeagle/gik/internal/errors"
	"github.com/standardbeagle/gik/internal/ignore"
	"github.com/standardbeagle/gik/internal/jsonl"
	"github.com/standardbeagle/gik/internal/model"
)

// Store is the per-branch stack scan output:
// <branch>/stack/{files.jsonl, dependencies.jsonl, tech.jsonl, stats.json}.
type Store struct {
	dir string
}

func New(branchDir string) *Store {
	return &Store{dir: filepath.Join(branchDir, "stack")}
}

func (s *Store) filesPath() string        { return filepath.Join(s.dir, "files.jsonl") }
func (s *Store) dependenciesPath() string { return filepath.Join(s.dir, "dependencies.jsonl") }
func (s *Store) techPath() string         { return filepath.Join(s.dir, "tech.jsonl") }
func (s *Store) statsPath() string        { return filepath.Join(s.dir, "stats.json") }

func (s *Store) Files() ([]model.StackFileEntry, error) {
	return jsonl.ReadAll[model.StackFileEntry](s.filesPath())
}

func (s *Store) Dependencies() ([]model.StackDependencyEntry, error) {
	return jsonl.ReadAll[model.StackDependencyEntry](s.dependenciesPath())
}

func (s *Store) Tech() ([]model.StackTechEntry, error) {
	return jsonl.ReadAll[model.StackTechEntry](s.techPath())
}

func (s *Store) Stats() (model.StackStats, error) {
	var stats model.StackStats
	if err := jsonl.ReadAtomic(s.statsPath(), &stats); err != nil {
		if os.IsNotExist(err) {
			return model.StackStats{}, nil
		}
		return model.StackStats{}, gikerrors.New(gikerrors.IoFailed, "stack.Stats", s.statsPath(), "check file permissions", err)
	}
	return stats, nil
}

// Rescan walks workspace, classifies every non-ignored path, parses known
// dependency manifests, and rewrites all four stack files. Languages are
// detected per file extension; that per-file classification runs
// concurrently bounded by GOMAXPROCS, the "worker pool bounded by
// available cores" spec §5 names for stack scans. Manifests at the
// workspace root are parsed sequentially afterwards.
func Rescan(ctx context.Context, workspace string, matcher *ignore.Matcher, store *Store) (model.StackStats, error) {
	var paths []string
	err := filepath.Walk(workspace, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == workspace {
			return nil
		}
		rel, relErr := filepath.Rel(workspace, path)
		if relErr != nil {
			return relErr
		}
		if matcher != nil && matcher.Match(rel, info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return model.StackStats{}, gikerrors.New(gikerrors.IoFailed, "stack.Rescan", workspace, "check workspace permissions", err)
	}

	entries := make([]model.StackFileEntry, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			entries[i] = model.StackFileEntry{
				Path:      p,
				Kind:      model.StackFile,
				Languages: languagesFor(p),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.StackStats{}, gikerrors.New(gikerrors.IoFailed, "stack.Rescan", workspace, "the scan was canceled", err)
	}

	deps, managers := scanManifests(workspace, paths)
	tech := detectTech(entries, deps)

	langCounts := make(map[string]int)
	for _, e := range entries {
		for _, lang := range e.Languages {
			langCounts[lang]++
		}
	}
	stats := model.StackStats{
		TotalFiles:  len(entries),
		Languages:   langCounts,
		Managers:    managers,
		GeneratedAt: time.Now().UTC(),
	}

	if err := os.MkdirAll(store.dir, 0o755); err != nil {
		return model.StackStats{}, gikerrors.New(gikerrors.IoFailed, "stack.Rescan", store.dir, "check directory permissions", err)
	}
	if err := writeAll(store.filesPath(), entries); err != nil {
		return model.StackStats{}, err
	}
	if err := writeAll(store.dependenciesPath(), deps); err != nil {
		return model.StackStats{}, err
	}
	if err := writeAll(store.techPath(), tech); err != nil {
		return model.StackStats{}, err
	}
	if err := jsonl.WriteAtomic(store.statsPath(), stats); err != nil {
		return model.StackStats{}, gikerrors.New(gikerrors.IoFailed, "stack.Rescan", store.statsPath(), "check disk space", err)
	}
	return stats, nil
}
