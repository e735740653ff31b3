package kg

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/standardbeagle/gik/internal/model"
)

// SourceFile is one code/docs entry handed to the extractors: enough of a
// BaseSourceEntry to regex over without importing the commit pipeline.
type SourceFile struct {
	Path string
	Text string
}

var (
	jsImportRe  = regexp.MustCompile(`import\s+(?:[\w*{}\s,]+\s+from\s+)?['"]([^'"]+)['"]`)
	jsRequireRe = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
	rustUseRe   = regexp.MustCompile(`\buse\s+(crate::[\w:]+|super::[\w:]+)`)
	rustModRe   = regexp.MustCompile(`\bmod\s+(\w+)\s*;`)
	pyImportRe  = regexp.MustCompile(`^\s*import\s+([\w.]+)`)
	pyFromRe    = regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import\s+`)
)

// symbolPatternsFor maps a language family to (kind, regex-with-one-name-group)
// pairs used by ExtractFile. This is deliberately regex-driven rather
// than parser-driven (spec §4.9).
type symbolPattern struct {
	kind string
	re   *regexp.Regexp
}

func symbolPatternsFor(lang string) []symbolPattern {
	switch lang {
	case "go":
		return []symbolPattern{
			{"function", regexp.MustCompile(`^func\s+(?:\([^)]*\)\s*)?(\w+)`)},
			{"type", regexp.MustCompile(`^type\s+(\w+)\s+struct\b`)},
			{"interface", regexp.MustCompile(`^type\s+(\w+)\s+interface\b`)},
			{"const", regexp.MustCompile(`^const\s+(\w+)\s*=`)},
		}
	case "javascript", "typescript":
		return []symbolPattern{
			{"function", regexp.MustCompile(`^(?:export\s+)?(?:async\s+)?function\s+(\w+)`)},
			{"class", regexp.MustCompile(`^(?:export\s+)?class\s+(\w+)`)},
			{"interface", regexp.MustCompile(`^(?:export\s+)?interface\s+(\w+)`)},
			{"reactComponent", regexp.MustCompile(`^(?:export\s+)?(?:default\s+)?function\s+([A-Z]\w+)\s*\(`)},
			{"type", regexp.MustCompile(`^(?:export\s+)?type\s+(\w+)\s*=`)},
		}
	case "python":
		return []symbolPattern{
			{"function", regexp.MustCompile(`^def\s+(\w+)\s*\(`)},
			{"class", regexp.MustCompile(`^class\s+(\w+)`)},
		}
	case "rust":
		return []symbolPattern{
			{"function", regexp.MustCompile(`^(?:pub\s+)?fn\s+(\w+)`)},
			{"struct", regexp.MustCompile(`^(?:pub\s+)?struct\s+(\w+)`)},
			{"trait", regexp.MustCompile(`^(?:pub\s+)?trait\s+(\w+)`)},
			{"module", regexp.MustCompile(`^(?:pub\s+)?mod\s+(\w+)`)},
		}
	case "java", "csharp":
		return []symbolPattern{
			{"class", regexp.MustCompile(`\bclass\s+(\w+)`)},
			{"interface", regexp.MustCompile(`\binterface\s+(\w+)`)},
		}
	case "angular":
		return []symbolPattern{
			{"ngComponent", regexp.MustCompile(`@Component\([\s\S]{0,200}?\)\s*(?:export\s+)?class\s+(\w+)`)},
			{"ngModule", ngModuleClassRe},
			{"ngService", regexp.MustCompile(`@Injectable\([\s\S]{0,200}?\)\s*(?:export\s+)?class\s+(\w+)`)},
			{"ngRoute", regexp.MustCompile(`path:\s*['"]([\w\-/:]*)['"]`)},
			{"uiComponent", regexp.MustCompile(`selector:\s*['"]([\w-]+)['"]`)},
			{"htmlTemplate", regexp.MustCompile(`templateUrl:\s*['"]([^'"]+)['"]`)},
		}
	case "css":
		return []symbolPattern{
			{"styleClass", regexp.MustCompile(`\.([\w-]+)\s*\{`)},
			{"styleId", regexp.MustCompile(`#([\w-]+)\s*\{`)},
			{"cssVariable", regexp.MustCompile(`--([\w-]+)\s*:`)},
			{"tailwindDirective", regexp.MustCompile(`@(tailwind|apply)\s+([\w-]+)`)},
		}
	case "html":
		return []symbolPattern{
			{"htmlSection", regexp.MustCompile(`<(section|header|footer|main|nav)[^>]*id=["']([\w-]+)["']`)},
			{"htmlAnchor", regexp.MustCompile(`<a[^>]*name=["']([\w-]+)["']`)},
		}
	default:
		return nil
	}
}

// angularDecoratorRe matches the three decorators that mark a .ts file as
// Angular source (spec §4.9): LanguageOf alone can't tell Angular TypeScript
// apart from plain TypeScript, since both share the same extension.
var angularDecoratorRe = regexp.MustCompile(`@(?:Component|NgModule|Injectable)\(`)

func isAngularSource(text string) bool {
	return angularDecoratorRe.MatchString(text)
}

// LanguageOf maps a file extension to the language family used for symbol
// id namespacing and pattern selection.
func LanguageOf(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".go":
		return "go"
	case ".ts", ".tsx", ".mts", ".cts":
		return "typescript"
	case ".js", ".jsx", ".mjs", ".cjs":
		return "javascript"
	case ".py":
		return "python"
	case ".rs":
		return "rust"
	case ".java":
		return "java"
	case ".cs":
		return "csharp"
	case ".css", ".scss":
		return "css"
	case ".html", ".htm":
		return "html"
	default:
		return "text"
	}
}

// ExtractFile produces the file node, import edges, endpoint nodes/edges,
// and symbol nodes for one source file.
func ExtractFile(f SourceFile, fileSet map[string]bool) ([]model.KgNode, []model.KgEdge) {
	var nodes []model.KgNode
	var edges []model.KgEdge

	fileID := "file:" + f.Path
	nodes = append(nodes, model.KgNode{ID: fileID, Kind: "file", Label: f.Path})

	lang := LanguageOf(f.Path)

	for _, imp := range extractImports(lang, f.Text) {
		target := resolveImport(f.Path, imp, fileSet)
		if target == "" {
			continue
		}
		targetID := "file:" + target
		edges = append(edges, model.KgEdge{
			ID:   fmt.Sprintf("edge:imports:%s->%s", fileID, targetID),
			From: fileID,
			To:   targetID,
			Kind: model.EdgeImports,
		})
	}

	if route, ok := routeForPath(f.Path); ok {
		endpointID := "endpoint:" + route
		nodes = append(nodes, model.KgNode{ID: endpointID, Kind: "endpoint", Label: route})
		edges = append(edges, model.KgEdge{
			ID:   fmt.Sprintf("edge:definesEndpoint:%s->%s", fileID, endpointID),
			From: fileID,
			To:   endpointID,
			Kind: model.EdgeDefinesEndpoint,
		})
	}

	patterns := symbolPatternsFor(lang)
	if lang == "typescript" && isAngularSource(f.Text) {
		patterns = append(patterns, symbolPatternsFor("angular")...)
	}

	symCounts := make(map[string]int)
	lines := strings.Split(f.Text, "\n")
	for _, pattern := range patterns {
		targets := lines
		switch pattern.kind {
		case "ngComponent", "ngModule", "ngService":
			// Decorator patterns span several lines, so they run over the whole text.
			targets = []string{f.Text}
		}
		for _, line := range targets {
			m := pattern.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name := m[len(m)-1]
			if name == "" {
				continue
			}
			id := fmt.Sprintf("sym:%s:%s:%s:%s", lang, f.Path, pattern.kind, name)
			if n := symCounts[id]; n > 0 {
				id = fmt.Sprintf("%s#%d", id, n)
			}
			symCounts[fmt.Sprintf("sym:%s:%s:%s:%s", lang, f.Path, pattern.kind, name)]++
			nodes = append(nodes, model.KgNode{
				ID:    id,
				Kind:  pattern.kind,
				Label: name,
				Props: map[string]any{"framework": lang},
			})
			edges = append(edges, model.KgEdge{
				ID:   fmt.Sprintf("edge:defines:%s->%s", fileID, id),
				From: fileID,
				To:   id,
				Kind: model.EdgeDefines,
			})
		}
	}

	return nodes, edges
}

var (
	classAttrRe      = regexp.MustCompile(`\bclass(?:Name)?=["']([\w-]+)["']`)
	jsxTagRe         = regexp.MustCompile(`<([A-Z]\w+)[\s/>]`)
	ngSelectorTagRe  = regexp.MustCompile(`<(app-[\w-]+)[\s/>]`)
	ngDeclarationsRe = regexp.MustCompile(`declarations:\s*\[([^\]]*)\]`)
	ngModuleClassRe  = regexp.MustCompile(`@NgModule\([\s\S]{0,200}?\)\s*(?:export\s+)?class\s+(\w+)`)
)

// ExtractUsageEdges emits the cross-file reference edges ExtractFile can't:
// a CSS class used from markup, a UI component referenced from another
// file's template/JSX, and an Angular component's membership in its
// declaring module (spec §4.9). These need the whole repo's symbol ids
// up front, so Sync runs ExtractFile over every file first and passes the
// resulting index in here as a second pass. A reference that doesn't
// resolve against symbolIndex still gets an edge, flagged props.unresolved
// so callers can tell "references a real symbol extraction hasn't seen
// yet" from "dangling".
func ExtractUsageEdges(f SourceFile, symbolIndex map[string]string) []model.KgEdge {
	var edges []model.KgEdge
	fileID := "file:" + f.Path
	lang := LanguageOf(f.Path)

	emit := func(kind, targetKind, name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		targetID, resolved := symbolIndex[targetKind+"\x00"+name]
		var props map[string]any
		if !resolved {
			targetID = fmt.Sprintf("unresolved:%s:%s", targetKind, name)
			props = map[string]any{"unresolved": true}
		}
		edges = append(edges, model.KgEdge{
			ID:    fmt.Sprintf("edge:%s:%s->%s", kind, fileID, targetID),
			From:  fileID,
			To:    targetID,
			Kind:  kind,
			Props: props,
		})
	}

	if lang == "javascript" || lang == "typescript" {
		for _, m := range classAttrRe.FindAllStringSubmatch(f.Text, -1) {
			emit(model.EdgeUsesClass, "styleClass", m[1])
		}
		for _, m := range jsxTagRe.FindAllStringSubmatch(f.Text, -1) {
			emit(model.EdgeUsesUiComponent, "reactComponent", m[1])
		}
		for _, m := range ngSelectorTagRe.FindAllStringSubmatch(f.Text, -1) {
			emit(model.EdgeUsesUiComponent, "uiComponent", m[1])
		}
	}

	if lang == "typescript" && isAngularSource(f.Text) {
		mod := ngModuleClassRe.FindStringSubmatch(f.Text)
		decl := ngDeclarationsRe.FindStringSubmatch(f.Text)
		if mod != nil && decl != nil {
			moduleID := fmt.Sprintf("sym:%s:%s:%s:%s", lang, f.Path, "ngModule", mod[1])
			for _, name := range strings.Split(decl[1], ",") {
				name = strings.TrimSpace(name)
				if name == "" {
					continue
				}
				compID, resolved := symbolIndex["ngComponent\x00"+name]
				var props map[string]any
				if !resolved {
					compID = fmt.Sprintf("unresolved:ngComponent:%s", name)
					props = map[string]any{"unresolved": true}
				}
				edges = append(edges, model.KgEdge{
					ID:    fmt.Sprintf("edge:belongsToModule:%s->%s", compID, moduleID),
					From:  compID,
					To:    moduleID,
					Kind:  model.EdgeBelongsToModule,
					Props: props,
				})
			}
		}
	}

	return edges
}

func extractImports(lang, text string) []string {
	var out []string
	switch lang {
	case "javascript", "typescript":
		for _, m := range jsImportRe.FindAllStringSubmatch(text, -1) {
			out = append(out, m[1])
		}
		for _, m := range jsRequireRe.FindAllStringSubmatch(text, -1) {
			out = append(out, m[1])
		}
	case "rust":
		for _, m := range rustUseRe.FindAllStringSubmatch(text, -1) {
			out = append(out, m[1])
		}
		for _, m := range rustModRe.FindAllStringSubmatch(text, -1) {
			out = append(out, m[1])
		}
	case "python":
		for _, line := range strings.Split(text, "\n") {
			if m := pyImportRe.FindStringSubmatch(line); m != nil {
				out = append(out, m[1])
			}
			if m := pyFromRe.FindStringSubmatch(line); m != nil {
				out = append(out, m[1])
			}
		}
	}
	return out
}

// resolveImport maps a raw import specifier to a path in fileSet, or ""
// when it can't be resolved (e.g. a third-party package) — import edges
// are only emitted between known file nodes.
func resolveImport(fromPath, spec string, fileSet map[string]bool) string {
	if !strings.HasPrefix(spec, ".") && !strings.HasPrefix(spec, "crate::") && !strings.HasPrefix(spec, "super::") {
		return ""
	}
	dir := filepath.Dir(fromPath)
	var candidate string
	switch {
	case strings.HasPrefix(spec, "crate::"), strings.HasPrefix(spec, "super::"):
		rel := strings.NewReplacer("crate::", "", "super::", "", "::", "/").Replace(spec)
		candidate = rel + ".rs"
	default:
		candidate = path.Clean(path.Join(dir, spec))
	}
	for _, ext := range []string{"", ".ts", ".tsx", ".js", ".jsx", ".py", ".rs"} {
		if fileSet[candidate+ext] {
			return candidate + ext
		}
	}
	return ""
}

var (
	nextAppRouteRe   = regexp.MustCompile(`(?:^|/)app/api/(.+)/route\.tsx?$`)
	nextPagesRouteRe = regexp.MustCompile(`(?:^|/)pages/api/(.+)\.tsx?$`)
)

// routeForPath derives a Next.js API route string from a file path, per
// both the App-Router and Pages-Router conventions spec §4.9 names.
func routeForPath(p string) (string, bool) {
	if m := nextAppRouteRe.FindStringSubmatch(p); m != nil {
		return "/api/" + m[1], true
	}
	if m := nextPagesRouteRe.FindStringSubmatch(p); m != nil {
		return "/api/" + m[1], true
	}
	return "", false
}
