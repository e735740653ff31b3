package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbedBatchProducesConfiguredDimension(t *testing.T) {
	stub := NewLocalStub(16)
	vecs, err := stub.EmbedBatch(context.Background(), []string{"database connection pooling", "unrelated text"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	for _, v := range vecs {
		require.Len(t, v, 16)
	}
}

func TestEmbedBatchIsDeterministic(t *testing.T) {
	stub := NewLocalStub(32)
	a, err := stub.EmbedBatch(context.Background(), []string{"same text every time"})
	require.NoError(t, err)
	b, err := stub.EmbedBatch(context.Background(), []string{"same text every time"})
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestRerankScoresExactOverlapHigher(t *testing.T) {
	stub := NewLocalStub(8)
	scores, err := stub.Rerank(context.Background(), "database connection", []string{
		"a database connection pool",
		"completely unrelated gardening text",
	})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	require.Greater(t, scores[0], scores[1])
}
