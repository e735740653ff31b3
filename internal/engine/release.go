package engine

import (
	"path/filepath"

	"github.com/standardbeagle/gik/internal/release"
)

// ReleaseOptions parameterizes one release invocation (spec §4.1 release,
// §4.12). Tag is accepted for interface parity with the façade operation
// spec §4.1 names but release itself never emits a revision, so it has no
// effect on the generated changelog beyond being echoed back by callers
// that want to label it.
type ReleaseOptions struct {
	Tag    string
	From   string
	To     string
	DryRun bool
}

// Release generates the changelog between two timeline points (spec
// §4.12); it is read-only and never appends a revision.
func (e *Engine) Release(opts ReleaseOptions) (release.Result, error) {
	cfg := release.Config{
		From:          opts.From,
		To:            opts.To,
		DryRun:        opts.DryRun,
		ChangelogPath: filepath.Join(e.Workspace, "CHANGELOG.md"),
	}
	return release.Run(cfg, e.Timeline)
}
