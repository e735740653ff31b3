package kg

import (
	"fmt"
	"sort"
	"strings"

	"github.com/standardbeagle/gik/internal/model"
)

// ExportDOT renders nodes/edges as a Graphviz DOT digraph. Node/edge
// order is sorted by id so the output is a deterministic function of the
// node/edge set (spec §4.9).
func ExportDOT(nodes []model.KgNode, edges []model.KgEdge) string {
	var sb strings.Builder
	sb.WriteString("digraph kg {\n")
	for _, n := range sortedNodes(nodes) {
		fmt.Fprintf(&sb, "  %q [label=%q, kind=%q];\n", n.ID, n.Label, n.Kind)
	}
	for _, e := range sortedEdges(edges) {
		fmt.Fprintf(&sb, "  %q -> %q [label=%q];\n", e.From, e.To, e.Kind)
	}
	sb.WriteString("}\n")
	return sb.String()
}

// ExportMermaid renders a Mermaid flowchart, used by `show --kg --kg-format mermaid`.
func ExportMermaid(nodes []model.KgNode, edges []model.KgEdge) string {
	var sb strings.Builder
	sb.WriteString("flowchart LR\n")
	for _, n := range sortedNodes(nodes) {
		fmt.Fprintf(&sb, "  %s[%q]\n", mermaidID(n.ID), n.Label)
	}
	for _, e := range sortedEdges(edges) {
		fmt.Fprintf(&sb, "  %s -->|%s| %s\n", mermaidID(e.From), e.Kind, mermaidID(e.To))
	}
	return sb.String()
}

// ExportBlockDiagram renders a plain-text block-diagram grouping nodes by
// kind with their outgoing edges listed underneath, the bounded text
// format spec §4.9 requires alongside DOT.
func ExportBlockDiagram(nodes []model.KgNode, edges []model.KgEdge) string {
	byKind := make(map[string][]model.KgNode)
	for _, n := range sortedNodes(nodes) {
		byKind[n.Kind] = append(byKind[n.Kind], n)
	}
	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	outgoing := make(map[string][]model.KgEdge)
	for _, e := range sortedEdges(edges) {
		outgoing[e.From] = append(outgoing[e.From], e)
	}

	var sb strings.Builder
	for _, kind := range kinds {
		fmt.Fprintf(&sb, "[%s]\n", kind)
		for _, n := range byKind[kind] {
			fmt.Fprintf(&sb, "  %s (%s)\n", n.Label, n.ID)
			for _, e := range outgoing[n.ID] {
				fmt.Fprintf(&sb, "    --%s--> %s\n", e.Kind, e.To)
			}
		}
	}
	return sb.String()
}

func sortedNodes(nodes []model.KgNode) []model.KgNode {
	out := append([]model.KgNode(nil), nodes...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedEdges(edges []model.KgEdge) []model.KgEdge {
	out := append([]model.KgEdge(nil), edges...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// mermaidID strips characters Mermaid node ids can't contain.
func mermaidID(id string) string {
	replacer := strings.NewReplacer(":", "_", "/", "_", ".", "_", "-", "_", "#", "_", " ", "_")
	return "n_" + replacer.Replace(id)
}
