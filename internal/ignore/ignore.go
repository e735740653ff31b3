// Package ignore implements the two-layer ignore-rule matcher spec §4.4
// step 2 and §9 require: a project-specific `.gikignore` file layered over
// source-control ignore patterns, with the project file winning on
// conflict. Patterns use gitignore syntax (a trailing `/` anchors to
// directories, a leading `!` negates) matched with
// github.com/bmatcuk/doublestar/v4, the glob engine already in the
// teacher's dependency family.
package ignore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// rule is one parsed ignore-file line.
type rule struct {
	pattern string
	negate  bool
	dirOnly bool
}

// Matcher layers project rules over source-control rules. Project rules
// are checked last so a negation in .gikignore can override a
// source-control ignore pattern — the deterministic "project file wins on
// conflict" spec §9 calls out, with a negation-pattern test locking the
// semantics (see ignore_test.go).
type Matcher struct {
	scRules      []rule
	projectRules []rule
}

// Load reads `<root>/.gikignore` and `<root>/.gitignore` (best-effort —
// a missing file yields no rules from that layer, never an error).
func Load(root string) (*Matcher, error) {
	m := &Matcher{}
	var err error
	m.scRules, err = readRules(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil, err
	}
	m.projectRules, err = readRules(filepath.Join(root, ".gikignore"))
	if err != nil {
		return nil, err
	}
	return m, nil
}

func readRules(path string) ([]rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var rules []rule
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		r := rule{pattern: trimmed}
		if strings.HasPrefix(r.pattern, "!") {
			r.negate = true
			r.pattern = r.pattern[1:]
		}
		if strings.HasSuffix(r.pattern, "/") {
			r.dirOnly = true
			r.pattern = strings.TrimSuffix(r.pattern, "/")
		}
		r.pattern = strings.TrimPrefix(r.pattern, "/")
		if !strings.Contains(r.pattern, "/") {
			r.pattern = "**/" + r.pattern
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Match reports whether relPath (slash-separated, relative to the
// workspace root) should be ignored. isDir lets directory-only patterns
// (a trailing `/` in the source file) match correctly.
func (m *Matcher) Match(relPath string, isDir bool) bool {
	if m == nil {
		return false
	}
	relPath = filepath.ToSlash(relPath)
	ignored := matchLayer(m.scRules, relPath, isDir, false)
	ignored = matchLayer(m.projectRules, relPath, isDir, ignored)
	return ignored
}

func matchLayer(rules []rule, relPath string, isDir bool, seed bool) bool {
	result := seed
	for _, r := range rules {
		if r.dirOnly && !isDir {
			continue
		}
		ok, _ := doublestar.Match(r.pattern, relPath)
		if !ok {
			// Also allow the pattern to match any ancestor directory
			// component, matching gitignore's "pattern matches at any
			// depth" behavior for simple basename patterns.
			ok, _ = doublestar.Match(r.pattern+"/**", relPath)
		}
		if ok {
			result = !r.negate
		}
	}
	return result
}
