package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	gikerrors "github.com/standardbeagle/gik/internal/errors"
	"github.com/standardbeagle/gik/internal/model"
	"github.com/standardbeagle/gik/internal/stack"
	"github.com/standardbeagle/gik/internal/staging"
)

// AddOptions parameterizes one add invocation (spec §4.1 add options).
type AddOptions struct {
	Base string // "" lets staging.InferBase decide
}

// AddResult summarizes one add invocation.
type AddResult struct {
	Added   []model.PendingSource
	Skipped []string // targets that were already pending/processing
	Summary model.StagingSummary
	Stack   model.StackStats
}

// Add appends targets to the staging log, rescans the stack, and
// recomputes the staging summary (spec §4.1 add). Memory targets go
// through AddMemory's short-circuit path instead — see §4.10.
func (e *Engine) Add(ctx context.Context, targets []string, opts AddOptions) (AddResult, error) {
	var result AddResult
	for _, target := range targets {
		kind := staging.InferKind(target)
		base := opts.Base
		if base == "" {
			base = string(staging.InferBase(kind, target))
		}
		pending, err := e.Staging.AddPending(e.Branch, base, target, kind)
		if err != nil {
			if gerr, ok := asGikError(err); ok && gerr.Code == gikerrors.DuplicatePending {
				result.Skipped = append(result.Skipped, target)
				continue
			}
			return AddResult{}, err
		}
		result.Added = append(result.Added, pending)
	}

	stats, err := stack.Rescan(ctx, e.Workspace, e.Matcher, e.Stack)
	if err != nil {
		return AddResult{}, err
	}
	result.Stack = stats

	summary, err := e.Staging.Summary()
	if err != nil {
		return AddResult{}, err
	}
	result.Summary = summary
	return result, nil
}

// AddMemory ingests text directly into the memory base, bypassing
// staging entirely: embed, upsert, append to the log, emit one
// MemoryIngest revision per call (spec §4.10).
func (e *Engine) AddMemory(ctx context.Context, scope model.MemoryScope, source model.MemorySource, text, title string, tags []string) (MemoryIngestResult, error) {
	return e.memoryIngest(ctx, scope, source, text, title, tags, uuid.NewString, time.Now)
}
