package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/gik/internal/engine"
	"github.com/standardbeagle/gik/internal/model"
)

// unmarshalParams decodes req's arguments into v, manually (not via the
// go-sdk's generic typed-tool helper) so unknown fields are tolerated
// rather than rejected.
func unmarshalParams(req *mcp.CallToolRequest, v interface{}) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	return json.Unmarshal(req.Params.Arguments, v)
}

type workspaceBranchParams struct {
	Workspace string `json:"workspace"`
	Branch    string `json:"branch"`
}

func (s *Server) handleInit(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p workspaceBranchParams
	if err := unmarshalParams(req, &p); err != nil {
		return errorResponse("init", fmt.Errorf("invalid parameters: %w", err))
	}
	e, err := s.open(p.Workspace, p.Branch)
	if err != nil {
		return errorResponse("init", err)
	}
	result, err := e.Init()
	if err != nil {
		return errorResponse("init", err)
	}
	return jsonResponse(result)
}

type addParams struct {
	workspaceBranchParams
	Targets []string `json:"targets"`
	Base    string   `json:"base"`
}

func (s *Server) handleAdd(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p addParams
	if err := unmarshalParams(req, &p); err != nil {
		return errorResponse("add", fmt.Errorf("invalid parameters: %w", err))
	}
	e, err := s.open(p.Workspace, p.Branch)
	if err != nil {
		return errorResponse("add", err)
	}
	result, err := e.Add(ctx, p.Targets, engine.AddOptions{Base: p.Base})
	if err != nil {
		return errorResponse("add", err)
	}
	return jsonResponse(result)
}

type removeParams struct {
	workspaceBranchParams
	Targets []string `json:"targets"`
}

func (s *Server) handleRemove(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p removeParams
	if err := unmarshalParams(req, &p); err != nil {
		return errorResponse("remove", fmt.Errorf("invalid parameters: %w", err))
	}
	e, err := s.open(p.Workspace, p.Branch)
	if err != nil {
		return errorResponse("remove", err)
	}
	result, err := e.Remove(p.Targets)
	if err != nil {
		return errorResponse("remove", err)
	}
	return jsonResponse(result)
}

type commitParams struct {
	workspaceBranchParams
	Message string `json:"message"`
}

func (s *Server) handleCommit(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p commitParams
	if err := unmarshalParams(req, &p); err != nil {
		return errorResponse("commit", fmt.Errorf("invalid parameters: %w", err))
	}
	e, err := s.open(p.Workspace, p.Branch)
	if err != nil {
		return errorResponse("commit", err)
	}
	result, err := e.Commit(ctx, p.Message)
	if err != nil {
		return errorResponse("commit", err)
	}
	return jsonResponse(result)
}

type reindexParams struct {
	workspaceBranchParams
	Base   string `json:"base"`
	Force  bool   `json:"force"`
	DryRun bool   `json:"dryRun"`
}

func (s *Server) handleReindex(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p reindexParams
	if err := unmarshalParams(req, &p); err != nil {
		return errorResponse("reindex", fmt.Errorf("invalid parameters: %w", err))
	}
	e, err := s.open(p.Workspace, p.Branch)
	if err != nil {
		return errorResponse("reindex", err)
	}
	result, err := e.Reindex(ctx, model.Base(p.Base), engine.ReindexOptions{Force: p.Force, DryRun: p.DryRun})
	if err != nil {
		return errorResponse("reindex", err)
	}
	return jsonResponse(result)
}

type askParams struct {
	workspaceBranchParams
	Question      string   `json:"question"`
	Bases         []string `json:"bases"`
	TopK          int      `json:"topK"`
	IncludeMemory bool     `json:"includeMemory"`
	Rerank        bool     `json:"rerank"`
	QueryVariants []string `json:"queryVariants"`
}

func (s *Server) handleAsk(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p askParams
	if err := unmarshalParams(req, &p); err != nil {
		return errorResponse("ask", fmt.Errorf("invalid parameters: %w", err))
	}
	e, err := s.open(p.Workspace, p.Branch)
	if err != nil {
		return errorResponse("ask", err)
	}
	bundle, err := e.Ask(ctx, engine.AskOptions{
		Question:      p.Question,
		Bases:         p.Bases,
		TopK:          p.TopK,
		IncludeMemory: p.IncludeMemory,
		Rerank:        p.Rerank,
		QueryVariants: p.QueryVariants,
	})
	if err != nil {
		return errorResponse("ask", err)
	}
	return jsonResponse(bundle)
}

func (s *Server) handleStatus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p workspaceBranchParams
	if err := unmarshalParams(req, &p); err != nil {
		return errorResponse("status", fmt.Errorf("invalid parameters: %w", err))
	}
	e, err := s.open(p.Workspace, p.Branch)
	if err != nil {
		return errorResponse("status", err)
	}
	report, err := e.Status(ctx)
	if err != nil {
		return errorResponse("status", err)
	}
	return jsonResponse(report)
}

type showParams struct {
	workspaceBranchParams
	Rev             string `json:"rev"`
	IncludeKGExport bool   `json:"includeKGExport"`
	KGFormat        string `json:"kgFormat"`
}

func (s *Server) handleShow(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p showParams
	if err := unmarshalParams(req, &p); err != nil {
		return errorResponse("show", fmt.Errorf("invalid parameters: %w", err))
	}
	e, err := s.open(p.Workspace, p.Branch)
	if err != nil {
		return errorResponse("show", err)
	}
	rev := p.Rev
	if rev == "" {
		rev = "HEAD"
	}
	view, err := e.Show(rev, engine.ShowOptions{IncludeKGExport: p.IncludeKGExport, KGFormat: p.KGFormat})
	if err != nil {
		return errorResponse("show", err)
	}
	return jsonResponse(view)
}

type releaseParams struct {
	workspaceBranchParams
	From   string `json:"from"`
	To     string `json:"to"`
	DryRun bool   `json:"dryRun"`
}

func (s *Server) handleRelease(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p releaseParams
	if err := unmarshalParams(req, &p); err != nil {
		return errorResponse("release", fmt.Errorf("invalid parameters: %w", err))
	}
	e, err := s.open(p.Workspace, p.Branch)
	if err != nil {
		return errorResponse("release", err)
	}
	result, err := e.Release(engine.ReleaseOptions{From: p.From, To: p.To, DryRun: p.DryRun})
	if err != nil {
		return errorResponse("release", err)
	}
	return jsonResponse(result)
}

type memoryIngestParams struct {
	workspaceBranchParams
	Scope  string   `json:"scope"`
	Source string   `json:"source"`
	Text   string   `json:"text"`
	Title  string   `json:"title"`
	Tags   []string `json:"tags"`
}

func (s *Server) handleMemoryIngest(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p memoryIngestParams
	if err := unmarshalParams(req, &p); err != nil {
		return errorResponse("memory_ingest", fmt.Errorf("invalid parameters: %w", err))
	}
	e, err := s.open(p.Workspace, p.Branch)
	if err != nil {
		return errorResponse("memory_ingest", err)
	}
	result, err := e.AddMemory(ctx, model.MemoryScope(p.Scope), model.MemorySource(p.Source), p.Text, p.Title, p.Tags)
	if err != nil {
		return errorResponse("memory_ingest", err)
	}
	return jsonResponse(result)
}

func (s *Server) handleMemoryMetrics(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p workspaceBranchParams
	if err := unmarshalParams(req, &p); err != nil {
		return errorResponse("memory_metrics", fmt.Errorf("invalid parameters: %w", err))
	}
	e, err := s.open(p.Workspace, p.Branch)
	if err != nil {
		return errorResponse("memory_metrics", err)
	}
	metrics, err := e.MemoryMetrics()
	if err != nil {
		return errorResponse("memory_metrics", err)
	}
	return jsonResponse(metrics)
}

func (s *Server) handleMemoryPrune(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p workspaceBranchParams
	if err := unmarshalParams(req, &p); err != nil {
		return errorResponse("memory_prune", fmt.Errorf("invalid parameters: %w", err))
	}
	e, err := s.open(p.Workspace, p.Branch)
	if err != nil {
		return errorResponse("memory_prune", err)
	}
	result, err := e.MemoryPrune(ctx)
	if err != nil {
		return errorResponse("memory_prune", err)
	}
	return jsonResponse(result)
}
