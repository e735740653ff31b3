package memvec

import (
	"context"
	"testing"

	"github.com/standardbeagle/gik/internal/model"
	"github.com/stretchr/testify/require"
)

func TestQueryRanksClosestVectorFirst(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.Create(ctx, model.VectorIndexMeta{Metric: model.MetricCosine}))

	_, err := b.Upsert(ctx, []model.VectorRecord{
		{ID: 1, Embedding: []float32{1, 0, 0}, Payload: map[string]any{"path": "a.go"}},
		{ID: 2, Embedding: []float32{0, 1, 0}, Payload: map[string]any{"path": "b.go"}},
	})
	require.NoError(t, err)

	hits, err := b.Query(ctx, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, uint64(1), hits[0].ID)
}

func TestQueryHonorsPayloadFilter(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.Create(ctx, model.VectorIndexMeta{Metric: model.MetricCosine}))
	_, err := b.Upsert(ctx, []model.VectorRecord{
		{ID: 1, Embedding: []float32{1, 0}, Payload: map[string]any{"base": "code"}},
		{ID: 2, Embedding: []float32{1, 0}, Payload: map[string]any{"base": "memory"}},
	})
	require.NoError(t, err)

	hits, err := b.Query(ctx, []float32{1, 0}, 10, map[string]any{"base": "memory"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, uint64(2), hits[0].ID)
}

func TestDeleteRemovesRecords(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.Create(ctx, model.VectorIndexMeta{}))
	_, err := b.Upsert(ctx, []model.VectorRecord{{ID: 1, Embedding: []float32{1}}})
	require.NoError(t, err)

	n, err := b.Delete(ctx, []uint64{1, 99})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	count, err := b.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}
