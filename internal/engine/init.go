package engine

import (
	"time"

	"github.com/google/uuid"

	gikerrors "github.com/standardbeagle/gik/internal/errors"
	"github.com/standardbeagle/gik/internal/model"
)

// InitResult is init's typed result (spec §4.1).
type InitResult struct {
	Revision       model.Revision
	AlreadyExisted bool
}

// Init creates the branch directory skeleton, writes a single Init
// revision, and sets HEAD. Idempotent: if HEAD already exists, returns
// AlreadyExisted without duplicating the Init revision.
func (e *Engine) Init() (InitResult, error) {
	if _, err := e.Timeline.Head(); err == nil {
		return InitResult{AlreadyExisted: true}, nil
	} else if gerr, ok := asGikError(err); !ok || gerr.Code != gikerrors.NotInitialized {
		return InitResult{}, err
	}

	rev := model.Revision{
		ID:         uuid.NewString(),
		Branch:     e.Branch,
		Timestamp:  time.Now().UTC(),
		Message:    "init",
		Operations: []model.Operation{{Kind: model.OpInit}},
	}
	if err := e.Timeline.Append(rev); err != nil {
		return InitResult{}, err
	}
	return InitResult{Revision: rev}, nil
}

func asGikError(err error) (*gikerrors.GikError, bool) {
	gerr, ok := err.(*gikerrors.GikError)
	return gerr, ok
}
