// Package staging implements the pending-source lifecycle and its
// recomputable summary (spec §4.3).
package staging

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	gikerrors "github.com/standardbeagle/gik/internal/errors"
	"github.com/standardbeagle/gik/internal/jsonl"
	"github.com/standardbeagle/gik/internal/model"
)

var sourceCodeExt = map[string]bool{
	".go": true, ".ts": true, ".tsx": true, ".js": true, ".jsx": true,
	".py": true, ".rs": true, ".java": true, ".c": true, ".h": true,
	".cpp": true, ".hpp": true, ".cs": true, ".rb": true, ".php": true,
	".swift": true, ".kt": true, ".scala": true, ".sh": true,
}

var docExt = map[string]bool{
	".md": true, ".mdx": true, ".txt": true, ".rst": true, ".adoc": true,
}

var archiveExt = map[string]bool{
	".zip": true, ".tar": true, ".tgz": true,
}

// Store is the staging log for one branch:
// <branch>/staging/{pending.jsonl,summary.json}.
type Store struct {
	dir string
}

func New(branchDir string) *Store {
	return &Store{dir: filepath.Join(branchDir, "staging")}
}

func (s *Store) pendingPath() string { return filepath.Join(s.dir, "pending.jsonl") }
func (s *Store) summaryPath() string { return filepath.Join(s.dir, "summary.json") }

// InferKind classifies a target URI per spec §4.3: http(s) scheme → url;
// an archive extension → archive; an existing directory → directory; an
// existing file → filePath; otherwise other.
func InferKind(uri string) model.PendingSourceKind {
	if u, err := url.Parse(uri); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return model.KindURL
	}
	ext := strings.ToLower(filepath.Ext(uri))
	if strings.HasSuffix(strings.ToLower(uri), ".tar.gz") || archiveExt[ext] {
		return model.KindArchive
	}
	if info, err := os.Stat(uri); err == nil {
		if info.IsDir() {
			return model.KindDirectory
		}
		return model.KindFilePath
	}
	return model.KindOther
}

// InferBase assigns a default base per spec §4.3 when the caller didn't
// specify one: url → docs; directory → code; file → by extension map.
func InferBase(kind model.PendingSourceKind, uri string) model.Base {
	switch kind {
	case model.KindURL:
		return model.BaseDocs
	case model.KindDirectory:
		return model.BaseCode
	case model.KindFilePath:
		ext := strings.ToLower(filepath.Ext(uri))
		if docExt[ext] {
			return model.BaseDocs
		}
		return model.BaseCode
	default:
		return model.BaseCode
	}
}

// normalize is the URI normalization used for the dedupe key (spec §3):
// absolute local paths, scheme-preserved URLs.
func normalize(uri string) string {
	if u, err := url.Parse(uri); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return u.String()
	}
	if abs, err := filepath.Abs(uri); err == nil {
		return filepath.ToSlash(abs)
	}
	return uri
}

// AddPending appends a new pending source, applying kind/base inference
// and deduplicating against any existing pending or processing entry with
// the same (branch, base, normalized-uri) key (spec §4.3). Returns the
// created entry, or gikerrors.DuplicatePending if one already exists.
func (s *Store) AddPending(branch, base, uri string, kind model.PendingSourceKind) (model.PendingSource, error) {
	normURI := normalize(uri)
	if kind == "" {
		kind = InferKind(uri)
	}
	if base == "" {
		base = string(InferBase(kind, uri))
	}

	existing, err := s.list(nil)
	if err != nil {
		return model.PendingSource{}, err
	}
	for _, e := range existing {
		if e.Branch == branch && e.Base == base && normalize(e.URI) == normURI &&
			(e.Status == model.StatusPending || e.Status == model.StatusProcessing) {
			return model.PendingSource{}, gikerrors.New(gikerrors.DuplicatePending, "add", uri, "remove the existing pending source first or wait for commit", nil)
		}
	}

	entry := model.PendingSource{
		ID:      uuid.NewString(),
		Branch:  branch,
		Base:    base,
		Kind:    kind,
		URI:     uri,
		AddedAt: time.Now().UTC(),
		Status:  model.StatusPending,
	}
	if err := jsonl.Append(s.pendingPath(), entry); err != nil {
		return model.PendingSource{}, gikerrors.New(gikerrors.IoFailed, "add", s.pendingPath(), "check disk space", err)
	}
	if err := s.recomputeSummary(); err != nil {
		return entry, err
	}
	return entry, nil
}

// Filter narrows List/MarkStatus queries.
type Filter struct {
	Branch string
	Base   string
	Status model.PendingSourceStatus
}

func (s *Store) list(filter *Filter) ([]model.PendingSource, error) {
	all, err := jsonl.ReadAll[model.PendingSource](s.pendingPath())
	if err != nil {
		return nil, gikerrors.New(gikerrors.IoFailed, "list", s.pendingPath(), "the pending log may be corrupt", err)
	}
	// Later entries for the same id (status transitions) must supersede
	// earlier ones since the log is append-only.
	byID := make(map[string]model.PendingSource, len(all))
	order := make([]string, 0, len(all))
	for _, e := range all {
		if _, seen := byID[e.ID]; !seen {
			order = append(order, e.ID)
		}
		byID[e.ID] = e
	}
	out := make([]model.PendingSource, 0, len(order))
	for _, id := range order {
		e := byID[id]
		if filter != nil {
			if filter.Branch != "" && e.Branch != filter.Branch {
				continue
			}
			if filter.Base != "" && e.Base != filter.Base {
				continue
			}
			if filter.Status != "" && e.Status != filter.Status {
				continue
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// List returns pending sources matching filter, latest status per id.
func (s *Store) List(filter Filter) ([]model.PendingSource, error) {
	return s.list(&filter)
}

// MarkStatus appends a status transition record for id. It refuses to
// move a terminal entry back to a non-terminal status (spec invariant 5).
func (s *Store) MarkStatus(id string, status model.PendingSourceStatus, lastErr string) error {
	all, err := s.list(nil)
	if err != nil {
		return err
	}
	var cur *model.PendingSource
	for i := range all {
		if all[i].ID == id {
			cur = &all[i]
			break
		}
	}
	if cur == nil {
		return gikerrors.New(gikerrors.SourceNotFound, "markStatus", id, "check the pending source id", nil)
	}
	if cur.Status.IsTerminal() && !status.IsTerminal() {
		return gikerrors.New(gikerrors.SourceNotFound, "markStatus", id, "a terminal pending source cannot be reopened", nil)
	}
	next := *cur
	next.Status = status
	next.LastError = lastErr
	if err := jsonl.Append(s.pendingPath(), next); err != nil {
		return gikerrors.New(gikerrors.IoFailed, "markStatus", s.pendingPath(), "check disk space", err)
	}
	return s.recomputeSummary()
}

// Remove marks matching non-terminal pending sources as failed with
// lastError "removed by user", so they no longer count as pending; List
// and Summary still include them under that status. Per spec §4.1 `remove`
// never touches committed content, so this only targets pending/processing
// entries; terminal entries remain for audit (spec §9 open-question
// decision) and are not affected.
func (s *Store) Remove(branch string, uris []string) (int, error) {
	targets := make(map[string]bool, len(uris))
	for _, u := range uris {
		targets[normalize(u)] = true
	}
	all, err := s.list(&Filter{Branch: branch})
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range all {
		if e.Status.IsTerminal() {
			continue
		}
		if targets[normalize(e.URI)] {
			if err := s.MarkStatus(e.ID, model.StatusFailed, "removed by user"); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// Summary recomputes the aggregate over the full pending log (spec §3
// StagingSummary invariant 4: recomputable by scanning the pending log).
func (s *Store) Summary() (model.StagingSummary, error) {
	all, err := s.list(nil)
	if err != nil {
		return model.StagingSummary{}, err
	}
	return summarize(all), nil
}

func summarize(all []model.PendingSource) model.StagingSummary {
	sum := model.StagingSummary{ByBase: map[string]int{}}
	for _, e := range all {
		switch e.Status {
		case model.StatusPending, model.StatusProcessing:
			sum.PendingCount++
			sum.ByBase[e.Base]++
		case model.StatusIndexed:
			sum.IndexedCount++
		case model.StatusFailed:
			sum.FailedCount++
		}
		if e.AddedAt.After(sum.LastUpdatedAt) {
			sum.LastUpdatedAt = e.AddedAt
		}
	}
	return sum
}

func (s *Store) recomputeSummary() error {
	sum, err := s.Summary()
	if err != nil {
		return err
	}
	sum.LastUpdatedAt = time.Now().UTC()
	if err := jsonl.WriteAtomic(s.summaryPath(), sum); err != nil {
		return gikerrors.New(gikerrors.IoFailed, "recomputeSummary", s.summaryPath(), "check disk space", err)
	}
	return nil
}
