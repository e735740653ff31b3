// Package timeline implements the per-branch append-only revision log,
// HEAD pointer, and ref resolution (spec §4.2).
package timeline

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gikerrors "github.com/standardbeagle/gik/internal/errors"
	"github.com/standardbeagle/gik/internal/jsonl"
	"github.com/standardbeagle/gik/internal/model"
)

// Timeline is the log for one branch directory, e.g.
// <knowledge-root>/<branch>/{HEAD,timeline.jsonl}.
type Timeline struct {
	dir string
	mu  sync.Mutex // serializes appenders within this process (spec §5)
}

func New(branchDir string) *Timeline {
	return &Timeline{dir: branchDir}
}

func (t *Timeline) logPath() string  { return filepath.Join(t.dir, "timeline.jsonl") }
func (t *Timeline) headPath() string { return filepath.Join(t.dir, "HEAD") }

// Append atomically appends revision to the log and advances HEAD. The
// mutex is the "exclusive lock on the log file" spec §5 requires —
// sufficient given §5's single-process usage model, so no OS-level flock
// is taken.
func (t *Timeline) Append(rev model.Revision) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return gikerrors.New(gikerrors.IoFailed, "append", t.dir, "check directory permissions", err)
	}

	if !rev.IsInit() {
		if _, ok, err := t.findByID(rev.ParentID); err != nil {
			return err
		} else if !ok {
			return gikerrors.New(gikerrors.TimelineCorrupt, "append", rev.ParentID, "parent revision must already be in the log", nil)
		}
	}

	if err := jsonl.Append(t.logPath(), rev); err != nil {
		return gikerrors.New(gikerrors.IoFailed, "append", t.logPath(), "check disk space", err)
	}
	if err := t.setHead(rev.ID); err != nil {
		return err
	}
	return nil
}

func (t *Timeline) setHead(id string) error {
	dir := filepath.Dir(t.headPath())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".head-tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(id); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, t.headPath())
}

// Head returns the current HEAD revision id. Returns gikerrors with code
// NotInitialized if HEAD hasn't been written yet.
func (t *Timeline) Head() (string, error) {
	data, err := os.ReadFile(t.headPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", gikerrors.New(gikerrors.NotInitialized, "head", t.dir, "run init first", nil)
		}
		return "", gikerrors.New(gikerrors.IoFailed, "head", t.headPath(), "check file permissions", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// All returns every revision in append order.
func (t *Timeline) All() ([]model.Revision, error) {
	revs, err := jsonl.ReadAll[model.Revision](t.logPath())
	if err != nil {
		return nil, gikerrors.New(gikerrors.TimelineCorrupt, "all", t.logPath(), "the log may be corrupt", err)
	}
	return revs, nil
}

func (t *Timeline) findByID(id string) (model.Revision, bool, error) {
	revs, err := t.All()
	if err != nil {
		return model.Revision{}, false, err
	}
	for _, r := range revs {
		if r.ID == id {
			return r, true, nil
		}
	}
	return model.Revision{}, false, nil
}

// Resolve implements spec §4.2's ref grammar: "HEAD", "HEAD~N" (walks N
// parents), an exact id, or a 7+ hex char prefix. Ambiguous prefixes and
// unmatched refs return the matching error codes.
func (t *Timeline) Resolve(ref string) (string, error) {
	revs, err := t.All()
	if err != nil {
		return "", err
	}
	byID := make(map[string]model.Revision, len(revs))
	for _, r := range revs {
		byID[r.ID] = r
	}

	if ref == "HEAD" {
		return t.Head()
	}

	if strings.HasPrefix(ref, "HEAD~") {
		n := 0
		if _, err := fmt.Sscanf(ref, "HEAD~%d", &n); err != nil {
			return "", gikerrors.New(gikerrors.RevisionNotFound, "resolve", ref, "use HEAD, HEAD~N, an id, or an unambiguous prefix", err)
		}
		cur, err := t.Head()
		if err != nil {
			return "", err
		}
		for i := 0; i < n; i++ {
			rev, ok := byID[cur]
			if !ok || rev.ParentID == "" {
				return "", gikerrors.New(gikerrors.RevisionNotFound, "resolve", ref, "fewer than N ancestors exist", nil)
			}
			cur = rev.ParentID
		}
		return cur, nil
	}

	if rev, ok := byID[ref]; ok {
		return rev.ID, nil
	}

	if len(ref) >= 7 && isHexPrefix(ref) {
		var matches []string
		for id := range byID {
			if strings.HasPrefix(id, ref) {
				matches = append(matches, id)
			}
		}
		switch len(matches) {
		case 0:
			return "", gikerrors.New(gikerrors.RevisionNotFound, "resolve", ref, "no revision matches this prefix", nil)
		case 1:
			return matches[0], nil
		default:
			return "", gikerrors.New(gikerrors.AmbiguousRevision, "resolve", ref, "use more characters to disambiguate", nil)
		}
	}

	return "", gikerrors.New(gikerrors.RevisionNotFound, "resolve", ref, "use HEAD, HEAD~N, an id, or an unambiguous prefix", nil)
}

// Between returns revisions strictly after fromExclusive up to and
// including toInclusive (default HEAD), in append order (spec §4.2, used
// by release).
func (t *Timeline) Between(fromExclusive, toInclusive string) ([]model.Revision, error) {
	revs, err := t.All()
	if err != nil {
		return nil, err
	}
	if toInclusive == "" {
		toInclusive, err = t.Head()
		if err != nil {
			return nil, err
		}
	}
	toInclusive, err = t.Resolve(toInclusive)
	if err != nil {
		return nil, err
	}
	if fromExclusive != "" {
		fromExclusive, err = t.Resolve(fromExclusive)
		if err != nil {
			return nil, err
		}
	}

	var out []model.Revision
	started := fromExclusive == ""
	for _, r := range revs {
		if started {
			out = append(out, r)
		} else if r.ID == fromExclusive {
			started = true
		}
		if r.ID == toInclusive {
			break
		}
	}
	return out, nil
}

func isHexPrefix(s string) bool {
	_, err := hex.DecodeString(padEven(s))
	return err == nil
}

func padEven(s string) string {
	if len(s)%2 == 1 {
		return s + "0"
	}
	return s
}
