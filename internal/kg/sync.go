package kg

import "github.com/standardbeagle/gik/internal/model"

// Sync performs a full rebuild of a branch's KG from the current contents
// of the code and docs bases (spec §4.9: "full rebuild... current
// contract"), replacing whatever was stored before.
func Sync(store *Store, codeFiles, docsFiles []SourceFile) error {
	all := make([]SourceFile, 0, len(codeFiles)+len(docsFiles))
	all = append(all, codeFiles...)
	all = append(all, docsFiles...)

	fileSet := make(map[string]bool, len(all))
	for _, f := range all {
		fileSet[f.Path] = true
	}

	var nodes []model.KgNode
	var edges []model.KgEdge
	for _, f := range all {
		n, e := ExtractFile(f, fileSet)
		nodes = append(nodes, n...)
		edges = append(edges, e...)
	}

	symbolIndex := make(map[string]string, len(nodes))
	for _, n := range nodes {
		key := n.Kind + "\x00" + n.Label
		if _, seen := symbolIndex[key]; !seen {
			symbolIndex[key] = n.ID
		}
	}
	for _, f := range all {
		edges = append(edges, ExtractUsageEdges(f, symbolIndex)...)
	}

	return store.ReplaceAll(nodes, edges)
}
