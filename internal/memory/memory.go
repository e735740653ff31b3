// Package memory implements the memory base (spec §4.10): ingestion,
// metrics, and the pruning policy read from memory/config.json.
package memory

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	gikerrors "github.com/standardbeagle/gik/internal/errors"
	"github.com/standardbeagle/gik/internal/jsonl"
	"github.com/standardbeagle/gik/internal/model"
)

func writeLine(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

// Store is the memory base for one branch:
// <branch>/memory/{sources.jsonl, archive.jsonl, config.json} — the same
// <branch>/<base>/ convention internal/basestore uses for code/docs, so
// the memory base's vector index and BM25 snapshot (owned by
// internal/basestore, wired in by the engine façade) live alongside this
// store's log under the one directory.
type Store struct {
	dir string
}

func New(branchDir string) *Store {
	return &Store{dir: filepath.Join(branchDir, string(model.BaseMemory))}
}

// Dir returns the memory base's directory, so callers constructing a
// basestore.Base for this base's vector/BM25 indices can point it at the
// same location this Store's log lives in.
func (s *Store) Dir() string { return s.dir }

func (s *Store) sourcesPath() string { return filepath.Join(s.dir, "sources.jsonl") }
func (s *Store) archivePath() string { return filepath.Join(s.dir, "archive.jsonl") }
func (s *Store) configPath() string  { return filepath.Join(s.dir, "config.json") }

// VectorID derives the vector backend's uint64 record id for an entry,
// since MemoryEntry.ID is a uuid string but model.VectorRecord.ID is a
// u64 — the same "fast deterministic fingerprint" choice as
// internal/embedding's local stub.
func VectorID(entryID string) uint64 {
	return xxhash.Sum64String(entryID)
}

// Ingest appends a new MemoryEntry to sources.jsonl. The caller is
// responsible for embedding the text and upserting to the vector index;
// Ingest only owns the durable log (spec §4.10: "appends to
// memory/sources.jsonl").
func (s *Store) Ingest(scope model.MemoryScope, source model.MemorySource, text, title string, tags []string, branch, originRevision string) (model.MemoryEntry, error) {
	now := time.Now().UTC()
	entry := model.MemoryEntry{
		ID:             uuid.NewString(),
		CreatedAt:      now,
		UpdatedAt:      now,
		Scope:          scope,
		Source:         source,
		Title:          title,
		Text:           text,
		Tags:           tags,
		Branch:         branch,
		OriginRevision: originRevision,
	}
	if err := jsonl.Append(s.sourcesPath(), entry); err != nil {
		return model.MemoryEntry{}, gikerrors.New(gikerrors.IoFailed, "memory.Ingest", s.dir, "check disk space", err)
	}
	return entry, nil
}

// All returns every live (non-archived) entry.
func (s *Store) All() ([]model.MemoryEntry, error) {
	entries, err := jsonl.ReadAll[model.MemoryEntry](s.sourcesPath())
	if err != nil {
		return nil, gikerrors.New(gikerrors.IoFailed, "memory.All", s.sourcesPath(), "the log may be corrupt", err)
	}
	return entries, nil
}

// Metrics computes {entryCount, estimatedTokenCount, totalChars} over the
// live entries (spec §4.10).
type Metrics struct {
	EntryCount          int `json:"entryCount"`
	EstimatedTokenCount int `json:"estimatedTokenCount"`
	TotalChars          int `json:"totalChars"`
}

func (s *Store) Metrics() (Metrics, error) {
	entries, err := s.All()
	if err != nil {
		return Metrics{}, err
	}
	var totalChars int
	for _, e := range entries {
		totalChars += len(e.Text)
	}
	return Metrics{
		EntryCount:          len(entries),
		EstimatedTokenCount: totalChars / 4,
		TotalChars:          totalChars,
	}, nil
}

// Policy loads memory/config.json's pruningPolicy, or (false, nil) if no
// policy has been configured yet.
func (s *Store) Policy() (model.MemoryPruningPolicy, bool, error) {
	var policy model.MemoryPruningPolicy
	err := jsonl.ReadAtomic(s.configPath(), &policy)
	if err != nil {
		if os.IsNotExist(err) {
			return model.MemoryPruningPolicy{}, false, nil
		}
		return model.MemoryPruningPolicy{}, false, gikerrors.New(gikerrors.IoFailed, "memory.Policy", s.configPath(), "check file permissions", err)
	}
	return policy, true, nil
}

// SetPolicy writes memory/config.json.
func (s *Store) SetPolicy(policy model.MemoryPruningPolicy) error {
	if err := jsonl.WriteAtomic(s.configPath(), policy); err != nil {
		return gikerrors.New(gikerrors.IoFailed, "memory.SetPolicy", s.configPath(), "check disk space", err)
	}
	return nil
}

// archive moves entries to archive.jsonl and rewrites sources.jsonl
// without them.
func (s *Store) archive(ids []string) error {
	entries, err := s.All()
	if err != nil {
		return err
	}
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	var kept, removed []model.MemoryEntry
	for _, e := range entries {
		if idSet[e.ID] {
			removed = append(removed, e)
		} else {
			kept = append(kept, e)
		}
	}

	if err := rewriteJSONL(s.sourcesPath(), kept); err != nil {
		return err
	}
	existingArchive, err := jsonl.ReadAll[model.MemoryEntry](s.archivePath())
	if err != nil {
		return err
	}
	return rewriteJSONL(s.archivePath(), append(existingArchive, removed...))
}

// delete removes entries from sources.jsonl permanently (delete mode).
func (s *Store) delete(ids []string) error {
	entries, err := s.All()
	if err != nil {
		return err
	}
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}
	var kept []model.MemoryEntry
	for _, e := range entries {
		if !idSet[e.ID] {
			kept = append(kept, e)
		}
	}
	return rewriteJSONL(s.sourcesPath(), kept)
}

func rewriteJSONL[T any](path string, items []T) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".memory-tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	for _, item := range items {
		if err := writeLine(tmp, item); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return err
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// sortOldestFirst orders entries ascending by CreatedAt, used by the
// pruning eviction order (spec §4.10: "add oldest-first").
func sortOldestFirst(entries []model.MemoryEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })
}
