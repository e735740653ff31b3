// Package basestore wraps the four things a base "owns" per spec §3 — an
// entry log, aggregate stats, embedding/index metadata, and a vector index
// directory — behind one handle shared by the commit, reindex, retrieval,
// and status code paths, the same way the teacher centralizes a cache's
// on-disk layout behind a single struct in internal/cache rather than
// scattering filepath.Join calls across callers.
package basestore

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"

	gikerrors "github.com/standardbeagle/gik/internal/errors"
	"github.com/standardbeagle/gik/internal/bm25"
	"github.com/standardbeagle/gik/internal/jsonl"
	"github.com/standardbeagle/gik/internal/model"
	"github.com/standardbeagle/gik/internal/vectorindex"
)

// Base is the on-disk handle for one (branch, base-name) pair:
// <branch>/<base>/{sources.jsonl, stats.json, model.json, index/, bm25.bin}.
type Base struct {
	Name   model.Base
	Vector *vectorindex.Adapter

	dir      string
	bm25Path string

	mu        sync.Mutex
	bm25Index *bm25.Index
}

// Open wires a Base around branchDir/name, with backend already constructed
// and pointed at its own storage (the adapter only owns meta.json there,
// same convention vectorindex.New documents).
func Open(branchDir string, name model.Base, backend vectorindex.Backend) *Base {
	dir := filepath.Join(branchDir, string(name))
	return &Base{
		Name:     name,
		dir:      dir,
		Vector:   vectorindex.New(backend, filepath.Join(dir, "index")),
		bm25Path: filepath.Join(dir, "bm25.bin"),
	}
}

func (b *Base) Dir() string           { return b.dir }
func (b *Base) SourcesPath() string   { return filepath.Join(b.dir, "sources.jsonl") }
func (b *Base) StatsPath() string     { return filepath.Join(b.dir, "stats.json") }
func (b *Base) ModelInfoPath() string { return filepath.Join(b.dir, "model.json") }
func (b *Base) BM25Path() string      { return b.bm25Path }

// ModelInfo loads the persisted ModelInfo, or (false, nil) if this base has
// never been written to (spec §4.11 "missing" embeddingStatus).
func (b *Base) ModelInfo() (model.ModelInfo, bool, error) {
	var info model.ModelInfo
	err := jsonl.ReadAtomic(b.ModelInfoPath(), &info)
	if err != nil {
		if os.IsNotExist(err) {
			return model.ModelInfo{}, false, nil
		}
		return model.ModelInfo{}, false, gikerrors.New(gikerrors.IoFailed, "basestore.ModelInfo", b.ModelInfoPath(), "check file permissions", err)
	}
	return info, true, nil
}

func (b *Base) SetModelInfo(info model.ModelInfo) error {
	if err := jsonl.WriteAtomic(b.ModelInfoPath(), info); err != nil {
		return gikerrors.New(gikerrors.IoFailed, "basestore.SetModelInfo", b.ModelInfoPath(), "check disk space", err)
	}
	return nil
}

// Sources returns every chunk currently logged for this base, latest
// version per id (sources.jsonl is append-only; a later line for the same
// id supersedes an earlier one, the same "log is the source of truth, last
// write wins" rule staging.go uses for pending sources).
func (b *Base) Sources() ([]model.BaseSourceEntry, error) {
	all, err := jsonl.ReadAll[model.BaseSourceEntry](b.SourcesPath())
	if err != nil {
		return nil, gikerrors.New(gikerrors.IoFailed, "basestore.Sources", b.SourcesPath(), "the entry log may be corrupt", err)
	}
	byID := make(map[string]model.BaseSourceEntry, len(all))
	order := make([]string, 0, len(all))
	for _, e := range all {
		if _, seen := byID[e.ID]; !seen {
			order = append(order, e.ID)
		}
		byID[e.ID] = e
	}
	out := make([]model.BaseSourceEntry, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out, nil
}

func (b *Base) AppendSource(e model.BaseSourceEntry) error {
	if err := jsonl.Append(b.SourcesPath(), e); err != nil {
		return gikerrors.New(gikerrors.IoFailed, "basestore.AppendSource", b.SourcesPath(), "check disk space", err)
	}
	return nil
}

func (b *Base) Stats() (model.BaseStats, error) {
	var stats model.BaseStats
	if err := jsonl.ReadAtomic(b.StatsPath(), &stats); err != nil {
		if os.IsNotExist(err) {
			return model.BaseStats{}, nil
		}
		return model.BaseStats{}, gikerrors.New(gikerrors.IoFailed, "basestore.Stats", b.StatsPath(), "check file permissions", err)
	}
	return stats, nil
}

func (b *Base) SetStats(stats model.BaseStats) error {
	if err := jsonl.WriteAtomic(b.StatsPath(), stats); err != nil {
		return gikerrors.New(gikerrors.IoFailed, "basestore.SetStats", b.StatsPath(), "check disk space", err)
	}
	return nil
}

// BM25 lazily loads this base's index snapshot, caching it for the life of
// the handle (spec §4.7: "Load on first query per process").
func (b *Base) BM25() (*bm25.Index, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bm25Index == nil {
		idx, err := bm25.Load(b.bm25Path)
		if err != nil {
			return nil, err
		}
		b.bm25Index = idx
	}
	return b.bm25Index, nil
}

// SaveBM25 persists the current in-memory index as a full rewrite.
func (b *Base) SaveBM25() error {
	idx, err := b.BM25()
	if err != nil {
		return err
	}
	return bm25.Save(idx, b.bm25Path)
}

// ReplaceBM25 swaps in idx as the cached index and persists it, used by
// reindex's full rebuild (spec §4.5 step 3: "rewrite BM25 storage").
func (b *Base) ReplaceBM25(idx *bm25.Index) error {
	b.mu.Lock()
	b.bm25Index = idx
	b.mu.Unlock()
	return bm25.Save(idx, b.bm25Path)
}

// ChunkVectorID derives the vector backend's uint64 record id from a
// BaseSourceEntry's string id, the same xxhash bridge memory.VectorID uses
// for its own string-id-to-uint64 mapping.
func ChunkVectorID(chunkID string) uint64 {
	return xxhash.Sum64String(chunkID)
}
