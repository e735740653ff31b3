// Package commit implements the ten-step commit pipeline (spec §4.4):
// compatibility guard, ignore rules, classify & read, chunking, batched
// embedding, vector upsert, BM25 update, entry-log/stats update, KG sync,
// revision emission.
package commit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/standardbeagle/gik/internal/basestore"
	gikerrors "github.com/standardbeagle/gik/internal/errors"
	"github.com/standardbeagle/gik/internal/embedding"
	"github.com/standardbeagle/gik/internal/ignore"
	"github.com/standardbeagle/gik/internal/kg"
	"github.com/standardbeagle/gik/internal/model"
	"github.com/standardbeagle/gik/internal/staging"
	"github.com/standardbeagle/gik/internal/timeline"
)

// Config wires the pipeline's tunables and collaborators. Bases must
// contain a handle for every base name that appears among the pending
// sources being committed.
type Config struct {
	Workspace string
	Branch    string
	Matcher   *ignore.Matcher

	Embedder embedding.Embedder
	Provider string
	Metric   model.VectorMetric

	BatchSize    int
	MaxFileBytes int64
	MaxFileLines int

	Bases map[model.Base]*basestore.Base
	KG    *kg.Store

	// Message is an optional caller-supplied commit message (spec §6's
	// CommitOptions); release (spec §4.12) only groups revisions whose
	// message parses as Conventional Commits, so a caller that wants this
	// commit in the changelog supplies one. Falls back to an
	// auto-generated summary when empty.
	Message string
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.BatchSize <= 0 {
		out.BatchSize = 32
	}
	if out.MaxFileBytes <= 0 {
		out.MaxFileBytes = defaultMaxFileBytes
	}
	if out.MaxFileLines <= 0 {
		out.MaxFileLines = defaultMaxFileLines
	}
	if out.Metric == "" {
		out.Metric = model.MetricCosine
	}
	return out
}

// Result summarizes one commit invocation.
type Result struct {
	Revision    model.Revision
	Bases       []string
	SourceCount int
	// Failures maps each pending source id that ended up `failed` to its
	// aggregated reason (spec §4.4 "per-source failures are captured in
	// lastError").
	Failures map[string]string
}

// chunkAttempt is one file read out of a pending source, successful or not.
type chunkAttempt struct {
	sourceID string
	base     model.Base
	entry    model.BaseSourceEntry // zero-value ID means this attempt failed
	failure  string
}

// Run executes the pipeline over every pending source currently staged for
// cfg.Branch. Per-file and per-source failures are captured in the
// returned Result and do not abort the commit; the named global failures —
// compatibility mismatch and embedding-provider unavailability — are
// checked before any base storage is touched, so a commit that fails for
// either reason leaves HEAD and every base's on-disk state exactly as they
// were (spec §4.4 "Failure semantics").
func Run(ctx context.Context, cfg Config, stg *staging.Store, tl *timeline.Timeline) (Result, error) {
	cfg = cfg.withDefaults()

	pending, err := stg.List(staging.Filter{Branch: cfg.Branch, Status: model.StatusPending})
	if err != nil {
		return Result{}, err
	}
	if len(pending) == 0 {
		return Result{}, gikerrors.New(gikerrors.NothingToCommit, "commit", cfg.Branch, "add a source before committing", nil)
	}

	byBase := make(map[model.Base][]model.PendingSource)
	for _, p := range pending {
		byBase[model.Base(p.Base)] = append(byBase[model.Base(p.Base)], p)
	}

	// Step 1: compatibility guard, checked for every affected base before
	// any writes happen anywhere.
	for baseName := range byBase {
		base, ok := cfg.Bases[baseName]
		if !ok {
			return Result{}, gikerrors.New(gikerrors.UnsupportedSourceKind, "commit", string(baseName), "no base handle configured for this base", nil)
		}
		info, exists, err := base.ModelInfo()
		if err != nil {
			return Result{}, err
		}
		if !exists {
			continue // fresh base, nothing to compare against
		}
		if info.Provider != cfg.Provider || info.ModelID != cfg.Embedder.ModelID() || info.Dimension != cfg.Embedder.Dimensions() {
			return Result{}, gikerrors.New(gikerrors.EmbeddingModelMismatch, "commit", string(baseName),
				"run reindex for this base before committing with a different embedding model", nil)
		}
	}

	// Steps 2-4: ignore rules, classify & read, chunk (one per file).
	var attempts []chunkAttempt
	for baseName, sources := range byBase {
		for _, src := range sources {
			attempts = append(attempts, classifySource(cfg, baseName, src)...)
		}
	}

	var readable []chunkAttempt
	for _, a := range attempts {
		if a.entry.ID != "" {
			readable = append(readable, a)
		}
	}

	// Step 5: embed in batches, per base (a provider outage here is the
	// "global failure" spec §4.4 names — abort before any base write).
	vectors := make(map[string][]float32, len(readable))
	byBaseReadable := make(map[model.Base][]chunkAttempt)
	for _, a := range readable {
		byBaseReadable[a.base] = append(byBaseReadable[a.base], a)
	}
	for baseName, attemptsForBase := range byBaseReadable {
		texts := make([]string, len(attemptsForBase))
		for i, a := range attemptsForBase {
			texts[i] = a.entry.Text
		}
		for start := 0; start < len(texts); start += cfg.BatchSize {
			end := start + cfg.BatchSize
			if end > len(texts) {
				end = len(texts)
			}
			batch, err := cfg.Embedder.EmbedBatch(ctx, texts[start:end])
			if err != nil {
				return Result{}, gikerrors.New(gikerrors.EmbeddingProviderUnavailable, "commit", string(baseName), "check the embedding provider configuration", err)
			}
			if len(batch) != end-start {
				return Result{}, gikerrors.New(gikerrors.EmbeddingProviderUnavailable, "commit", string(baseName), "embedding provider returned the wrong number of vectors", nil)
			}
			for i, vec := range batch {
				if len(vec) != cfg.Embedder.Dimensions() {
					return Result{}, gikerrors.New(gikerrors.EmbeddingDimensionMismatch, "commit", string(baseName), "embedding provider violated its declared dimension", nil)
				}
				vectors[attemptsForBase[start+i].entry.ID] = vec
			}
		}
	}

	// Everything above either aborts outright or has already succeeded;
	// from here on only per-base bookkeeping remains (steps 6-9).
	head, err := tl.Head()
	if err != nil {
		return Result{}, err
	}

	affected := make(map[model.Base]bool)
	totalSourceCount := 0
	for baseName, attemptsForBase := range byBaseReadable {
		base := cfg.Bases[baseName]

		if _, exists, err := base.ModelInfo(); err != nil {
			return Result{}, err
		} else if !exists {
			info := model.ModelInfo{
				Provider:  cfg.Provider,
				ModelID:   cfg.Embedder.ModelID(),
				Dimension: cfg.Embedder.Dimensions(),
				CreatedAt: time.Now().UTC(),
			}
			if err := base.SetModelInfo(info); err != nil {
				return Result{}, err
			}
		}

		if _, err := base.Vector.EnsureCreated(ctx, cfg.Provider, cfg.Embedder.ModelID(), cfg.Embedder.Dimensions(), cfg.Metric, string(baseName)); err != nil {
			return Result{}, err
		}

		records := make([]model.VectorRecord, len(attemptsForBase))
		for i, a := range attemptsForBase {
			records[i] = model.VectorRecord{
				ID:        basestore.ChunkVectorID(a.entry.ID),
				Embedding: vectors[a.entry.ID],
				Payload: map[string]any{
					"chunkId":   a.entry.ID,
					"path":      a.entry.Path,
					"base":      string(baseName),
					"startLine": a.entry.StartLine,
					"endLine":   a.entry.EndLine,
				},
			}
		}
		if _, err := base.Vector.Upsert(ctx, records); err != nil {
			return Result{}, err
		}

		bmIdx, err := base.BM25()
		if err != nil {
			return Result{}, err
		}
		for _, a := range attemptsForBase {
			bmIdx.AddDocument(a.entry.ID, a.entry.Text)
		}
		if err := base.SaveBM25(); err != nil {
			return Result{}, err
		}

		for _, a := range attemptsForBase {
			if err := base.AppendSource(a.entry); err != nil {
				return Result{}, err
			}
		}

		allSources, err := base.Sources()
		if err != nil {
			return Result{}, err
		}
		if err := base.SetStats(model.BaseStats{
			LastUpdated: time.Now().UTC(),
			SourceCount: len(allSources),
			ChunkCount:  len(allSources),
		}); err != nil {
			return Result{}, err
		}

		affected[baseName] = true
		totalSourceCount += len(attemptsForBase)
	}

	// Step 9: KG full rebuild from current code/docs contents.
	if cfg.KG != nil {
		codeFiles, docsFiles, err := collectKgSources(cfg.Bases)
		if err != nil {
			return Result{}, err
		}
		if err := kg.Sync(cfg.KG, codeFiles, docsFiles); err != nil {
			return Result{}, err
		}
	}

	// Step 10: emit revision, advance HEAD, settle pending statuses.
	bases := make([]string, 0, len(affected))
	for b := range affected {
		bases = append(bases, string(b))
	}
	message := cfg.Message
	if message == "" {
		message = fmt.Sprintf("commit: %d source(s) across %d base(s)", totalSourceCount, len(bases))
	}
	rev := model.Revision{
		ID:        uuid.NewString(),
		ParentID:  head,
		Branch:    cfg.Branch,
		Timestamp: time.Now().UTC(),
		Message:   message,
		Operations: []model.Operation{{
			Kind:        model.OpCommit,
			Bases:       bases,
			SourceCount: totalSourceCount,
		}},
	}
	if err := tl.Append(rev); err != nil {
		return Result{}, err
	}

	failures, err := settleStatuses(stg, attempts)
	if err != nil {
		return Result{}, err
	}

	return Result{Revision: rev, Bases: bases, SourceCount: totalSourceCount, Failures: failures}, nil
}

// settleStatuses marks every pending source terminal: indexed if at least
// one of its attempts produced a chunk, failed (with an aggregated reason
// built from its failed attempts) otherwise. This runs after the revision
// has already been appended, so a failure here never leaves HEAD
// inconsistent with the entry logs — it only leaves a PendingSource
// reporting a stale (but safe, since terminal states never regress)
// status, corrected on the next status-recomputing read.
func settleStatuses(stg *staging.Store, attempts []chunkAttempt) (map[string]string, error) {
	succeeded := make(map[string]bool)
	reasons := make(map[string][]string)
	order := make([]string, 0)
	for _, a := range attempts {
		if _, seen := reasons[a.sourceID]; !seen {
			order = append(order, a.sourceID)
		}
		if a.entry.ID != "" {
			succeeded[a.sourceID] = true
			continue
		}
		reasons[a.sourceID] = append(reasons[a.sourceID], a.failure)
	}

	failures := make(map[string]string)
	for _, id := range order {
		if succeeded[id] {
			if err := stg.MarkStatus(id, model.StatusIndexed, ""); err != nil {
				return nil, err
			}
			continue
		}
		reason := "no files indexed"
		if msgs := reasons[id]; len(msgs) > 0 {
			reason = msgs[0]
			if len(msgs) > 1 {
				reason = fmt.Sprintf("%s (and %d more)", reason, len(msgs)-1)
			}
		}
		if err := stg.MarkStatus(id, model.StatusFailed, reason); err != nil {
			return nil, err
		}
		failures[id] = reason
	}
	return failures, nil
}

func collectKgSources(bases map[model.Base]*basestore.Base) (code, docs []kg.SourceFile, err error) {
	if b, ok := bases[model.BaseCode]; ok {
		entries, e := b.Sources()
		if e != nil {
			return nil, nil, e
		}
		for _, entry := range entries {
			code = append(code, kg.SourceFile{Path: entry.Path, Text: entry.Text})
		}
	}
	if b, ok := bases[model.BaseDocs]; ok {
		entries, e := b.Sources()
		if e != nil {
			return nil, nil, e
		}
		for _, entry := range entries {
			docs = append(docs, kg.SourceFile{Path: entry.Path, Text: entry.Text})
		}
	}
	return code, docs, nil
}
