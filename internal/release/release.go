// Package release implements the changelog pipeline (spec §4.12):
// read-only, regenerated-Markdown grouping of Conventional-Commits-style
// revision messages between two points in the timeline.
package release

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/standardbeagle/gik/internal/model"
	"github.com/standardbeagle/gik/internal/timeline"
)

// Config wires one release invocation.
type Config struct {
	From string // exclusive; "" means from the branch's root
	To   string // inclusive; "" means HEAD

	// DryRun returns the summary without writing changelogPath.
	DryRun bool

	// ChangelogPath is the Markdown file rewritten in full (not merged).
	ChangelogPath string
}

// Entry is one parsed Conventional Commits revision.
type Entry struct {
	RevisionID  string
	Type        string
	Scope       string
	Breaking    bool
	Description string
}

// Result summarizes one release invocation.
type Result struct {
	Groups   []Group
	Skipped  int // Commit revisions that didn't parse as Conventional Commits
	Markdown string
	DryRun   bool
}

// Group is every entry of one canonical commit type, in timeline order.
type Group struct {
	Type    string
	Entries []Entry
}

// canonicalOrder is the fixed group ordering spec §4.12 names.
var canonicalOrder = []string{
	"feat", "fix", "perf", "refactor", "docs", "style",
	"test", "build", "ci", "chore", "revert", "other",
}

// conventionalCommit matches "type(scope)!?: description", e.g.
// "feat(retrieval)!: add reciprocal rank fusion".
var conventionalCommit = regexp.MustCompile(`^([a-zA-Z]+)(\(([^)]+)\))?(!)?:\s*(.+)$`)

// Run walks the timeline between cfg.From (exclusive) and cfg.To
// (inclusive, default HEAD), groups every Commit revision whose message
// parses as Conventional Commits, and renders a fully-regenerated
// Markdown changelog. It never appends a revision — Release stays a
// reserved, unemitted operation kind.
func Run(cfg Config, tl *timeline.Timeline) (Result, error) {
	revs, err := tl.Between(cfg.From, cfg.To)
	if err != nil {
		return Result{}, err
	}

	byType := make(map[string][]Entry)
	var skipped int
	for _, rev := range revs {
		if !isCommitRevision(rev) {
			continue
		}
		entry, ok := parseConventional(rev)
		if !ok {
			skipped++
			continue
		}
		byType[entry.Type] = append(byType[entry.Type], entry)
	}

	var groups []Group
	for _, t := range canonicalOrder {
		entries := byType[t]
		if len(entries) == 0 {
			continue
		}
		groups = append(groups, Group{Type: t, Entries: entries})
	}

	markdown := render(groups)

	result := Result{Groups: groups, Skipped: skipped, Markdown: markdown, DryRun: cfg.DryRun}
	if cfg.DryRun {
		return result, nil
	}
	if err := writeFile(cfg.ChangelogPath, markdown); err != nil {
		return Result{}, err
	}
	return result, nil
}

func isCommitRevision(rev model.Revision) bool {
	for _, op := range rev.Operations {
		if op.Kind == model.OpCommit {
			return true
		}
	}
	return false
}

// parseConventional parses rev.Message as "type(scope)!?: description",
// normalizing any type outside the canonical list to "other" rather than
// dropping the entry.
func parseConventional(rev model.Revision) (Entry, bool) {
	m := conventionalCommit.FindStringSubmatch(strings.TrimSpace(rev.Message))
	if m == nil {
		return Entry{}, false
	}
	typ := normalizeType(strings.ToLower(m[1]))
	return Entry{
		RevisionID:  rev.ID,
		Type:        typ,
		Scope:       m[3],
		Breaking:    m[4] == "!",
		Description: strings.TrimSpace(m[5]),
	}, true
}

func normalizeType(t string) string {
	for _, known := range canonicalOrder {
		if t == known {
			return t
		}
	}
	return "other"
}

var typeHeadings = map[string]string{
	"feat":     "Features",
	"fix":      "Bug Fixes",
	"perf":     "Performance",
	"refactor": "Refactors",
	"docs":     "Documentation",
	"style":    "Styling",
	"test":     "Tests",
	"build":    "Build",
	"ci":       "CI",
	"chore":    "Chores",
	"revert":   "Reverts",
	"other":    "Other",
}

// render builds the full Markdown document, rewritten from scratch on
// every call (spec §4.12: "fully regenerated, not merged").
func render(groups []Group) string {
	var b strings.Builder
	b.WriteString("# Changelog\n\n")
	if len(groups) == 0 {
		b.WriteString("_No changes in this range._\n")
		return b.String()
	}
	for _, g := range groups {
		heading := typeHeadings[g.Type]
		if heading == "" {
			heading = capitalize(g.Type)
		}
		fmt.Fprintf(&b, "## %s\n\n", heading)
		for _, e := range g.Entries {
			scope := ""
			if e.Scope != "" {
				scope = fmt.Sprintf("**%s:** ", e.Scope)
			}
			prefix := ""
			if e.Breaking {
				prefix = "BREAKING: "
			}
			fmt.Fprintf(&b, "- %s%s%s\n", prefix, scope, e.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// writeFile rewrites path in full via temp-then-rename, the same
// crash-safety rule internal/kg and internal/jsonl use for whole-file
// rewrites of what is elsewhere an append log.
func writeFile(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".changelog-tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
