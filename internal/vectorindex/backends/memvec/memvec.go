// Package memvec is a pure in-memory vectorindex.Backend with brute-force
// cosine search — no cgo, used by engine/package tests so suites don't need
// the sqlite-vec backend's shared library loaded (spec §4.8 names the
// backend boundary as pluggable precisely so alternatives like this can
// exist).
package memvec

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/standardbeagle/gik/internal/model"
	"github.com/standardbeagle/gik/internal/vectorindex"
)

type row struct {
	embedding []float32
	payload   map[string]any
}

// Backend implements vectorindex.Backend over an in-memory map.
type Backend struct {
	mu   sync.RWMutex
	meta model.VectorIndexMeta
	rows map[uint64]row
}

// New returns an empty in-memory backend. Create must be called before use.
func New() *Backend {
	return &Backend{rows: make(map[uint64]row)}
}

func (b *Backend) Name() string { return "memory" }

func (b *Backend) Create(ctx context.Context, meta model.VectorIndexMeta) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meta = meta
	b.rows = make(map[uint64]row)
	return nil
}

func (b *Backend) Upsert(ctx context.Context, records []model.VectorRecord) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range records {
		b.rows[r.ID] = row{embedding: r.Embedding, payload: r.Payload}
	}
	return len(records), nil
}

func (b *Backend) Query(ctx context.Context, embedding []float32, topK int, filter map[string]any) ([]vectorindex.SearchHit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	hits := make([]vectorindex.SearchHit, 0, len(b.rows))
	for id, r := range b.rows {
		if !matchesFilter(r.payload, filter) {
			continue
		}
		hits = append(hits, vectorindex.SearchHit{
			ID:      id,
			Score:   similarity(b.meta.Metric, embedding, r.embedding),
			Payload: r.payload,
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (b *Backend) Delete(ctx context.Context, ids []uint64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := b.rows[id]; ok {
			delete(b.rows, id)
			n++
		}
	}
	return n, nil
}

func (b *Backend) Count(ctx context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rows), nil
}

func (b *Backend) Exists(ctx context.Context) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.meta.Backend != "", nil
}

func matchesFilter(payload map[string]any, filter map[string]any) bool {
	for k, v := range filter {
		if payload[k] != v {
			return false
		}
	}
	return true
}

func similarity(metric model.VectorMetric, a, c []float32) float64 {
	switch metric {
	case model.MetricL2:
		var sum float64
		for i := range a {
			if i >= len(c) {
				break
			}
			d := float64(a[i] - c[i])
			sum += d * d
		}
		return -math.Sqrt(sum)
	case model.MetricDot:
		return dot(a, c)
	default: // cosine
		d := dot(a, c)
		na, nc := norm(a), norm(c)
		if na == 0 || nc == 0 {
			return 0
		}
		return d / (na * nc)
	}
}

func dot(a, c []float32) float64 {
	var sum float64
	n := len(a)
	if len(c) < n {
		n = len(c)
	}
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(c[i])
	}
	return sum
}

func norm(a []float32) float64 {
	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
