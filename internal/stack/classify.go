package stack

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/standardbeagle/gik/internal/model"
)

var extLanguages = map[string]string{
	".go":   "go",
	".ts":   "typescript",
	".tsx":  "typescript",
	".js":   "javascript",
	".jsx":  "javascript",
	".py":   "python",
	".rs":   "rust",
	".java": "java",
	".cs":   "csharp",
	".rb":   "ruby",
	".php":  "php",
	".swift": "swift",
	".kt":   "kotlin",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".hpp":  "cpp",
	".css":  "css",
	".html": "html",
	".md":   "markdown",
}

func languagesFor(path string) []string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := extLanguages[ext]; ok {
		return []string{lang}
	}
	return nil
}

// manifestParser reads one dependency manifest file found at the
// workspace root and returns its entries.
type manifestParser struct {
	filename string
	manager  string
	parse    func(path string) ([]model.StackDependencyEntry, error)
}

var manifestParsers = []manifestParser{
	{"package.json", "npm", parsePackageJSON},
	{"go.mod", "go", parseGoMod},
	{"requirements.txt", "pip", parseRequirementsTxt},
	{"Cargo.toml", "cargo", parseCargoToml},
}

func scanManifests(workspace string, relPaths []string) ([]model.StackDependencyEntry, []string) {
	present := make(map[string]bool, len(relPaths))
	for _, p := range relPaths {
		present[p] = true
	}

	var deps []model.StackDependencyEntry
	var managers []string
	for _, mp := range manifestParsers {
		if !present[mp.filename] {
			continue
		}
		entries, err := mp.parse(filepath.Join(workspace, mp.filename))
		if err != nil {
			continue
		}
		if len(entries) > 0 {
			managers = append(managers, mp.manager)
		}
		deps = append(deps, entries...)
	}
	return deps, managers
}

func parsePackageJSON(path string) ([]model.StackDependencyEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	var out []model.StackDependencyEntry
	for name, version := range doc.Dependencies {
		out = append(out, model.StackDependencyEntry{Manager: "npm", Name: name, Version: version, Scope: "runtime", ManifestPath: "package.json"})
	}
	for name, version := range doc.DevDependencies {
		out = append(out, model.StackDependencyEntry{Manager: "npm", Name: name, Version: version, Scope: "dev", ManifestPath: "package.json"})
	}
	return out, nil
}

var goModRequireRe = regexp.MustCompile(`^\s*([\w.\-/]+)\s+(v[\w.\-+]+)`)

func parseGoMod(path string) ([]model.StackDependencyEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []model.StackDependencyEntry
	inRequireBlock := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "require ("):
			inRequireBlock = true
			continue
		case line == ")":
			inRequireBlock = false
			continue
		case strings.HasPrefix(line, "require "):
			line = strings.TrimPrefix(line, "require ")
		case !inRequireBlock:
			continue
		}
		if m := goModRequireRe.FindStringSubmatch(line); m != nil {
			scope := "runtime"
			if strings.Contains(line, "// indirect") {
				scope = "indirect"
			}
			out = append(out, model.StackDependencyEntry{Manager: "go", Name: m[1], Version: m[2], Scope: scope, ManifestPath: "go.mod"})
		}
	}
	return out, scanner.Err()
}

var requirementsLineRe = regexp.MustCompile(`^([A-Za-z0-9_.\-]+)\s*(==|>=|~=)?\s*([\w.\-]*)`)

func parseRequirementsTxt(path string) ([]model.StackDependencyEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []model.StackDependencyEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if m := requirementsLineRe.FindStringSubmatch(line); m != nil {
			out = append(out, model.StackDependencyEntry{Manager: "pip", Name: m[1], Version: m[3], Scope: "runtime", ManifestPath: "requirements.txt"})
		}
	}
	return out, scanner.Err()
}

var cargoDepLineRe = regexp.MustCompile(`^([\w\-]+)\s*=\s*"([^"]+)"`)

func parseCargoToml(path string) ([]model.StackDependencyEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []model.StackDependencyEntry
	inDeps := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[dependencies") {
			inDeps = true
			continue
		}
		if strings.HasPrefix(line, "[") {
			inDeps = false
			continue
		}
		if !inDeps {
			continue
		}
		if m := cargoDepLineRe.FindStringSubmatch(line); m != nil {
			out = append(out, model.StackDependencyEntry{Manager: "cargo", Name: m[1], Version: m[2], Scope: "runtime", ManifestPath: "Cargo.toml"})
		}
	}
	return out, scanner.Err()
}

// detectTech annotates well-known frameworks from manifest dependency
// names and file presence, each with a confidence in [0,1].
func detectTech(files []model.StackFileEntry, deps []model.StackDependencyEntry) []model.StackTechEntry {
	var out []model.StackTechEntry
	depNames := make(map[string]bool, len(deps))
	for _, d := range deps {
		depNames[d.Name] = true
	}

	frameworkDeps := map[string]string{
		"react":   "frontend",
		"next":    "frontend",
		"vue":     "frontend",
		"express": "backend",
		"fastapi": "backend",
		"django":  "backend",
		"flask":   "backend",
		"gin":     "backend",
	}
	for name, kind := range frameworkDeps {
		if depNames[name] {
			out = append(out, model.StackTechEntry{Kind: kind, Name: name, Source: "manifest", Confidence: 0.9})
		}
	}

	var hasGoFiles, hasTSFiles bool
	for _, f := range files {
		for _, lang := range f.Languages {
			if lang == "go" {
				hasGoFiles = true
			}
			if lang == "typescript" {
				hasTSFiles = true
			}
		}
	}
	if hasGoFiles {
		out = append(out, model.StackTechEntry{Kind: "language", Name: "go", Source: "file-scan", Confidence: 1.0})
	}
	if hasTSFiles {
		out = append(out, model.StackTechEntry{Kind: "language", Name: "typescript", Source: "file-scan", Confidence: 1.0})
	}
	return out
}

func writeAll[T any](path string, items []T) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".stack-tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	enc := json.NewEncoder(tmp)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return err
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
