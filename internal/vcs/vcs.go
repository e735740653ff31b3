// Package vcs resolves the source-control facts the engine needs for
// workspace/branch resolution (spec §3): the marker directory that
// signals "this is a project root", and HEAD's branch name or commit
// sentinel. It reads `.git` plumbing files directly rather than shelling
// out — the engine only needs one fact (HEAD's symbolic-ref target or
// raw hash), not the history-mining the teacher's own internal/git
// package exists for.
package vcs

import (
	"os"
	"path/filepath"
	"strings"
)

// MarkerDir is the source-control marker directory named in spec §3's
// workspace-resolution walk.
const MarkerDir = ".git"

// HeadSentinel is returned as the branch name when HEAD is a detached,
// raw commit hash (spec §3 Branch resolution priority 2).
const HeadSentinel = "HEAD"

// FindRoot walks upward from dir looking for MarkerDir, returning the
// first ancestor that has one. Returns "" if none is found.
func FindRoot(dir string) string {
	cur, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		if info, err := os.Stat(filepath.Join(cur, MarkerDir)); err == nil && info.IsDir() {
			return cur
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return ""
		}
		cur = parent
	}
}

// Branch reads <root>/.git/HEAD and returns the branch name for a
// symbolic ref, or HeadSentinel for a detached HEAD pointing at a raw
// commit. Returns "", false if root has no readable .git/HEAD.
func Branch(root string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(root, MarkerDir, "HEAD"))
	if err != nil {
		return "", false
	}
	line := strings.TrimSpace(string(data))
	const refPrefix = "ref: "
	if strings.HasPrefix(line, refPrefix) {
		ref := strings.TrimPrefix(line, refPrefix)
		// refs/heads/<branch>
		parts := strings.SplitN(ref, "/", 3)
		if len(parts) == 3 && parts[0] == "refs" && parts[1] == "heads" {
			return parts[2], true
		}
		return filepath.Base(ref), true
	}
	// Detached HEAD: line is a raw commit hash.
	if line != "" {
		return HeadSentinel, true
	}
	return "", false
}
