package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/gik/internal/model"
)

func initRevision(branch string) model.Revision {
	return model.Revision{
		ID:         "00000000-0000-4000-8000-000000000001",
		Branch:     branch,
		Timestamp:  time.Now().UTC(),
		Message:    "init",
		Operations: []model.Operation{{Kind: model.OpInit}},
	}
}

func TestAppendAdvancesHeadAndEnforcesParentLinkage(t *testing.T) {
	tl := New(t.TempDir())
	init := initRevision("main")
	require.NoError(t, tl.Append(init))

	head, err := tl.Head()
	require.NoError(t, err)
	require.Equal(t, init.ID, head)

	second := model.Revision{
		ID:         "00000000-0000-4000-8000-000000000002",
		ParentID:   init.ID,
		Branch:     "main",
		Timestamp:  time.Now().UTC(),
		Operations: []model.Operation{{Kind: model.OpCommit, Bases: []string{"code"}, SourceCount: 1}},
	}
	require.NoError(t, tl.Append(second))

	head, err = tl.Head()
	require.NoError(t, err)
	require.Equal(t, second.ID, head)

	orphan := model.Revision{ID: "orphan", ParentID: "does-not-exist", Branch: "main"}
	require.Error(t, tl.Append(orphan))
}

func TestResolveHeadTildeAndPrefix(t *testing.T) {
	tl := New(t.TempDir())
	init := initRevision("main")
	require.NoError(t, tl.Append(init))
	second := model.Revision{ID: "11111111-2222-4000-8000-000000000002", ParentID: init.ID, Branch: "main"}
	require.NoError(t, tl.Append(second))

	id, err := tl.Resolve("HEAD")
	require.NoError(t, err)
	require.Equal(t, second.ID, id)

	id, err = tl.Resolve("HEAD~1")
	require.NoError(t, err)
	require.Equal(t, init.ID, id)

	id, err = tl.Resolve("1111111")
	require.NoError(t, err)
	require.Equal(t, second.ID, id)

	_, err = tl.Resolve("deadbeef")
	require.Error(t, err)
}

func TestResolveAmbiguousPrefix(t *testing.T) {
	tl := New(t.TempDir())
	a := model.Revision{ID: "aaaaaaa1-0000-4000-8000-000000000000", Branch: "main"}
	b := model.Revision{ID: "aaaaaaa2-0000-4000-8000-000000000000", ParentID: a.ID, Branch: "main"}
	require.NoError(t, tl.Append(a))
	require.NoError(t, tl.Append(b))

	_, err := tl.Resolve("aaaaaaa")
	require.Error(t, err)
}

func TestBetweenIsExclusiveFromInclusiveTo(t *testing.T) {
	tl := New(t.TempDir())
	a := model.Revision{ID: "a0000000-0000-4000-8000-000000000000", Branch: "main"}
	b := model.Revision{ID: "b0000000-0000-4000-8000-000000000000", ParentID: a.ID, Branch: "main"}
	c := model.Revision{ID: "c0000000-0000-4000-8000-000000000000", ParentID: b.ID, Branch: "main"}
	require.NoError(t, tl.Append(a))
	require.NoError(t, tl.Append(b))
	require.NoError(t, tl.Append(c))

	revs, err := tl.Between(a.ID, "")
	require.NoError(t, err)
	require.Len(t, revs, 2)
	require.Equal(t, b.ID, revs[0].ID)
	require.Equal(t, c.ID, revs[1].ID)
}
