// Package kg is the knowledge graph: a store with unique-id upsert
// semantics plus a set of regex-driven (not parser-based) per-language
// extractors, matching spec §4.9's explicit choice of regex over a real
// parser. The store itself follows the same jsonl-log-plus-lazy-directory
// shape as internal/staging.
package kg

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/standardbeagle/gik/internal/jsonl"
	"github.com/standardbeagle/gik/internal/model"
)

func marshalLine(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Store is the per-branch KG persisted as nodes.jsonl/edges.jsonl under
// <branch>/kg/. The directory is created lazily on first write.
type Store struct {
	dir string
	mu  sync.Mutex
}

func New(branchDir string) *Store {
	return &Store{dir: filepath.Join(branchDir, "kg")}
}

func (s *Store) nodesPath() string { return filepath.Join(s.dir, "nodes.jsonl") }
func (s *Store) edgesPath() string { return filepath.Join(s.dir, "edges.jsonl") }

// Nodes returns every node currently in the store, empty (not an error) if
// the file is absent.
func (s *Store) Nodes() ([]model.KgNode, error) {
	return jsonl.ReadAll[model.KgNode](s.nodesPath())
}

// Edges returns every edge currently in the store, empty if absent.
func (s *Store) Edges() ([]model.KgEdge, error) {
	return jsonl.ReadAll[model.KgEdge](s.edgesPath())
}

// Reset clears both logs, used before a full KG rebuild (spec §4.9: "full
// rebuild of a branch's KG from the current base contents" is the current
// sync strategy).
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	if err := jsonl.WriteAtomic(s.nodesPath(), []model.KgNode{}); err != nil {
		return err
	}
	return jsonl.WriteAtomic(s.edgesPath(), []model.KgEdge{})
}

// ReplaceAll atomically rewrites both logs with the given nodes/edges,
// deduplicating by id (last write wins, bumping UpdatedAt) the way the
// store's "on conflict, update props and bump updatedAt" rule requires.
func (s *Store) ReplaceAll(nodes []model.KgNode, edges []model.KgEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	byID := make(map[string]model.KgNode, len(nodes))
	order := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if existing, ok := byID[n.ID]; ok {
			n.CreatedAt = existing.CreatedAt
		} else {
			order = append(order, n.ID)
			if n.CreatedAt.IsZero() {
				n.CreatedAt = now
			}
		}
		n.UpdatedAt = now
		byID[n.ID] = n
	}
	dedupedNodes := make([]model.KgNode, 0, len(order))
	for _, id := range order {
		dedupedNodes = append(dedupedNodes, byID[id])
	}

	edgeByID := make(map[string]model.KgEdge, len(edges))
	edgeOrder := make([]string, 0, len(edges))
	for _, e := range edges {
		if existing, ok := edgeByID[e.ID]; ok {
			e.CreatedAt = existing.CreatedAt
		} else {
			edgeOrder = append(edgeOrder, e.ID)
			if e.CreatedAt.IsZero() {
				e.CreatedAt = now
			}
		}
		e.UpdatedAt = now
		edgeByID[e.ID] = e
	}
	dedupedEdges := make([]model.KgEdge, 0, len(edgeOrder))
	for _, id := range edgeOrder {
		dedupedEdges = append(dedupedEdges, edgeByID[id])
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	if err := writeJSONLines(s.nodesPath(), dedupedNodes); err != nil {
		return err
	}
	return writeJSONLines(s.edgesPath(), dedupedEdges)
}

// writeJSONLines rewrites path as a fresh append-only jsonl file via
// temp-then-rename, matching spec §5's crash-safety rule for whole-file
// rewrites of what is normally an append log.
func writeJSONLines[T any](path string, items []T) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".kg-tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	for _, item := range items {
		b, err := marshalLine(item)
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return err
		}
		if _, err := tmp.Write(b); err != nil {
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
