package engine

import (
	"github.com/standardbeagle/gik/internal/kg"
	"github.com/standardbeagle/gik/internal/model"
)

// ShowOptions parameterizes one show invocation (spec §4.1 show).
type ShowOptions struct {
	IncludeKGExport bool
	KGFormat        string // "dot" | "mermaid" | "blockdiagram"
}

// RevisionView is show's typed result.
type RevisionView struct {
	Revision model.Revision
	KGExport string
}

// Show resolves revRef ("HEAD", "HEAD~N", exact id, or unambiguous
// prefix) and returns its metadata, optionally rendering a KG export
// (spec §4.1 show, §4.2 resolve, §4.9 export).
func (e *Engine) Show(revRef string, opts ShowOptions) (RevisionView, error) {
	id, err := e.Timeline.Resolve(revRef)
	if err != nil {
		return RevisionView{}, err
	}

	revs, err := e.Timeline.All()
	if err != nil {
		return RevisionView{}, err
	}
	var rev model.Revision
	for _, r := range revs {
		if r.ID == id {
			rev = r
			break
		}
	}

	view := RevisionView{Revision: rev}
	if !opts.IncludeKGExport {
		return view, nil
	}

	nodes, err := e.KG.Nodes()
	if err != nil {
		return RevisionView{}, err
	}
	edges, err := e.KG.Edges()
	if err != nil {
		return RevisionView{}, err
	}

	switch opts.KGFormat {
	case "mermaid":
		view.KGExport = kg.ExportMermaid(nodes, edges)
	case "blockdiagram":
		view.KGExport = kg.ExportBlockDiagram(nodes, edges)
	default:
		view.KGExport = kg.ExportDOT(nodes, edges)
	}
	return view, nil
}
