// Package reindex implements the full-base-rebuild pipeline (spec §4.5):
// re-embed every chunk already logged for a base under a new embedding
// configuration, rebuild the vector index and BM25 snapshot from scratch,
// and emit a Reindex revision.
package reindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/standardbeagle/gik/internal/basestore"
	"github.com/standardbeagle/gik/internal/bm25"
	"github.com/standardbeagle/gik/internal/embedding"
	gikerrors "github.com/standardbeagle/gik/internal/errors"
	"github.com/standardbeagle/gik/internal/model"
	"github.com/standardbeagle/gik/internal/timeline"
)

// Config wires one reindex invocation.
type Config struct {
	Workspace string
	Branch    string
	Base      *basestore.Base

	Embedder embedding.Embedder
	Provider string
	Metric   model.VectorMetric

	BatchSize int

	// Force re-runs the pipeline even if the active embedding already
	// matches the base's stored ModelInfo (spec §4.5 guard).
	Force bool
	// DryRun rebuilds nothing and emits no revision; it only reports what
	// a real run would do.
	DryRun bool
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.BatchSize <= 0 {
		out.BatchSize = 32
	}
	if out.Metric == "" {
		out.Metric = model.MetricCosine
	}
	return out
}

// Result summarizes one reindex invocation.
type Result struct {
	Revision     model.Revision
	FromModelID  string
	ToModelID    string
	ChunkCount   int
	ReadFailures []string
	DryRun       bool
}

// Run rebuilds cfg.Base's vector index and BM25 snapshot under the active
// embedding configuration. If force is false and the active embedding
// already matches the stored ModelInfo, it returns NotReindexed without
// touching storage.
func Run(ctx context.Context, cfg Config, tl *timeline.Timeline) (Result, error) {
	cfg = cfg.withDefaults()
	base := cfg.Base

	info, exists, err := base.ModelInfo()
	if err != nil {
		return Result{}, err
	}
	fromModelID := ""
	if exists {
		fromModelID = info.ModelID
		if !cfg.Force && info.Provider == cfg.Provider && info.ModelID == cfg.Embedder.ModelID() && info.Dimension == cfg.Embedder.Dimensions() {
			return Result{}, gikerrors.New(gikerrors.NotReindexed, "reindex", string(base.Name), "the active embedding already matches this base", nil)
		}
	}

	entries, err := base.Sources()
	if err != nil {
		return Result{}, err
	}

	// Step 1: resolve chunk text, re-reading from disk when the entry log
	// didn't carry it.
	type resolved struct {
		entry model.BaseSourceEntry
		text  string
	}
	resolvedChunks := make([]resolved, 0, len(entries))
	var readFailures []string
	for _, e := range entries {
		text := e.Text
		if text == "" {
			var rerr error
			text, rerr = rereadRange(cfg.Workspace, e.Path, e.StartLine, e.EndLine)
			if rerr != nil {
				readFailures = append(readFailures, fmt.Sprintf("%s: %v", e.Path, rerr))
				continue
			}
		}
		resolvedChunks = append(resolvedChunks, resolved{entry: e, text: text})
	}

	if cfg.DryRun {
		return Result{
			FromModelID:  fromModelID,
			ToModelID:    cfg.Embedder.ModelID(),
			ChunkCount:   len(resolvedChunks),
			ReadFailures: readFailures,
			DryRun:       true,
		}, nil
	}

	// Step 2: embed in batches with the new configuration.
	vectors := make(map[string][]float32, len(resolvedChunks))
	texts := make([]string, len(resolvedChunks))
	for i, r := range resolvedChunks {
		texts[i] = r.text
	}
	for start := 0; start < len(texts); start += cfg.BatchSize {
		end := start + cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := cfg.Embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return Result{}, gikerrors.New(gikerrors.EmbeddingProviderUnavailable, "reindex", string(base.Name), "check the embedding provider configuration", err)
		}
		if len(batch) != end-start {
			return Result{}, gikerrors.New(gikerrors.EmbeddingProviderUnavailable, "reindex", string(base.Name), "embedding provider returned the wrong number of vectors", nil)
		}
		for i, vec := range batch {
			if len(vec) != cfg.Embedder.Dimensions() {
				return Result{}, gikerrors.New(gikerrors.EmbeddingDimensionMismatch, "reindex", string(base.Name), "embedding provider violated its declared dimension", nil)
			}
			vectors[resolvedChunks[start+i].entry.ID] = vec
		}
	}

	// Step 3: rebuild the vector index from scratch, then the BM25
	// snapshot, sharing this one atomic-substitution point (spec §4.5
	// step 3).
	if _, err := base.Vector.Reset(ctx, cfg.Provider, cfg.Embedder.ModelID(), cfg.Embedder.Dimensions(), cfg.Metric, string(base.Name)); err != nil {
		return Result{}, err
	}
	records := make([]model.VectorRecord, len(resolvedChunks))
	for i, r := range resolvedChunks {
		records[i] = model.VectorRecord{
			ID:        basestore.ChunkVectorID(r.entry.ID),
			Embedding: vectors[r.entry.ID],
			Payload: map[string]any{
				"chunkId":   r.entry.ID,
				"path":      r.entry.Path,
				"base":      string(base.Name),
				"startLine": r.entry.StartLine,
				"endLine":   r.entry.EndLine,
			},
		}
	}
	if _, err := base.Vector.Upsert(ctx, records); err != nil {
		return Result{}, err
	}

	freshBM25 := bm25.NewIndex()
	for _, r := range resolvedChunks {
		freshBM25.AddDocument(r.entry.ID, r.text)
	}
	if err := base.ReplaceBM25(freshBM25); err != nil {
		return Result{}, err
	}

	now := time.Now().UTC()
	newInfo := model.ModelInfo{
		Provider:        cfg.Provider,
		ModelID:         cfg.Embedder.ModelID(),
		Dimension:       cfg.Embedder.Dimensions(),
		CreatedAt:       now,
		LastReindexedAt: &now,
	}
	if exists {
		newInfo.CreatedAt = info.CreatedAt
	}
	if err := base.SetModelInfo(newInfo); err != nil {
		return Result{}, err
	}

	if err := base.SetStats(model.BaseStats{
		LastUpdated: now,
		SourceCount: len(entries),
		ChunkCount:  len(resolvedChunks),
	}); err != nil {
		return Result{}, err
	}

	// Step 4: emit the Reindex revision.
	head, err := tl.Head()
	if err != nil {
		return Result{}, err
	}
	rev := model.Revision{
		ID:        uuid.NewString(),
		ParentID:  head,
		Branch:    cfg.Branch,
		Timestamp: now,
		Message:   fmt.Sprintf("reindex: %s (%s -> %s)", base.Name, displayModelID(fromModelID), cfg.Embedder.ModelID()),
		Operations: []model.Operation{{
			Kind:        model.OpReindex,
			Base:        string(base.Name),
			FromModelID: fromModelID,
			ToModelID:   cfg.Embedder.ModelID(),
		}},
	}
	if err := tl.Append(rev); err != nil {
		return Result{}, err
	}

	return Result{
		Revision:     rev,
		FromModelID:  fromModelID,
		ToModelID:    cfg.Embedder.ModelID(),
		ChunkCount:   len(resolvedChunks),
		ReadFailures: readFailures,
	}, nil
}

func displayModelID(id string) string {
	if id == "" {
		return "(none)"
	}
	return id
}

// rereadRange re-reads lines [startLine, endLine] (1-based, inclusive)
// from path, used when a chunk's entry log text was elided.
func rereadRange(workspace, relPath string, startLine, endLine int) (string, error) {
	abs := filepath.Join(workspace, relPath)
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	lines := strings.Split(string(data), "\n")
	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(lines) || endLine < startLine {
		endLine = len(lines)
	}
	selected := lines[startLine-1 : endLine]
	return strings.Join(selected, "\n"), nil
}
