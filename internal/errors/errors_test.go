package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGikErrorMessageAndUnwrap(t *testing.T) {
	underlying := stderrors.New("disk full")
	err := New(SourceTooLarge, "commit", "src/big.bin", "split the file or raise the cap", underlying).
		WithRecoverable(true)

	require.True(t, err.IsRecoverable())
	assert.ErrorIs(t, err, underlying)
	assert.Contains(t, err.Error(), "commit failed")
	assert.Contains(t, err.Error(), "src/big.bin")
	assert.Contains(t, err.Error(), "split the file or raise the cap")
}

func TestGikErrorIsMatchesByCode(t *testing.T) {
	err := New(RevisionNotFound, "show", "HEAD~9", "check the revision ref", nil)

	assert.ErrorIs(t, err, &GikError{Code: RevisionNotFound})
	assert.False(t, stderrors.Is(err, &GikError{Code: AmbiguousRevision}))
}

func TestMultiErrorFiltersNilAndCounts(t *testing.T) {
	me := NewMultiError([]error{nil, stderrors.New("a"), nil, stderrors.New("b")})
	require.Len(t, me.Errors, 2)
	assert.Contains(t, me.Error(), "2 errors")
}

func TestMultiErrorSingleUnwrapsToItsMessage(t *testing.T) {
	me := NewMultiError([]error{stderrors.New("only one")})
	assert.Equal(t, "only one", me.Error())
}
