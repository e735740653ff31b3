package memory

import (
	"testing"
	"time"

	"github.com/standardbeagle/gik/internal/model"
	"github.com/stretchr/testify/require"
)

func TestIngestAppendsAndMetricsReflectText(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Ingest(model.ScopeProject, model.SourceManualNote, "hello world", "note", nil, "main", "")
	require.NoError(t, err)

	metrics, err := s.Metrics()
	require.NoError(t, err)
	require.Equal(t, 1, metrics.EntryCount)
	require.Equal(t, len("hello world"), metrics.TotalChars)
	require.Equal(t, len("hello world")/4, metrics.EstimatedTokenCount)
}

func TestPruneFailsWithoutPolicy(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Prune(time.Now())
	require.Error(t, err)
}

func TestPruneDeletesOldestFirstUntilUnderThreshold(t *testing.T) {
	s := New(t.TempDir())
	maxEntries := 1
	require.NoError(t, s.SetPolicy(model.MemoryPruningPolicy{MaxEntries: &maxEntries, Mode: model.PruneDelete}))

	base := time.Now().UTC().Add(-time.Hour)
	e1, err := s.Ingest(model.ScopeProject, model.SourceManualNote, "first", "", nil, "main", "")
	require.NoError(t, err)
	_ = e1
	e2, err := s.Ingest(model.ScopeProject, model.SourceManualNote, "second", "", nil, "main", "")
	require.NoError(t, err)
	_ = e2
	_ = base

	result, err := s.Prune(time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, result.Count)
	require.Len(t, result.DeletedIDs, 1)

	remaining, err := s.All()
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestPruneArchiveModeMovesEntriesToArchiveLog(t *testing.T) {
	s := New(t.TempDir())
	maxEntries := 0
	require.NoError(t, s.SetPolicy(model.MemoryPruningPolicy{MaxEntries: &maxEntries, Mode: model.PruneArchive}))
	_, err := s.Ingest(model.ScopeProject, model.SourceManualNote, "archive me", "", nil, "main", "")
	require.NoError(t, err)

	result, err := s.Prune(time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, result.Count)
	require.Len(t, result.ArchivedIDs, 1)

	remaining, err := s.All()
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestPruneReturnsNothingWhenUnderThreshold(t *testing.T) {
	s := New(t.TempDir())
	maxEntries := 10
	require.NoError(t, s.SetPolicy(model.MemoryPruningPolicy{MaxEntries: &maxEntries, Mode: model.PruneDelete}))
	_, err := s.Ingest(model.ScopeProject, model.SourceManualNote, "keep", "", nil, "main", "")
	require.NoError(t, err)

	result, err := s.Prune(time.Now())
	require.NoError(t, err)
	require.Equal(t, 0, result.Count)
}

func TestVectorIDIsDeterministic(t *testing.T) {
	require.Equal(t, VectorID("abc"), VectorID("abc"))
	require.NotEqual(t, VectorID("abc"), VectorID("def"))
}
