// Package mcpserver exposes the internal/engine façade over the Model
// Context Protocol's stdio transport, so an assistant can call init, add,
// commit, ask, status, and the other façade operations as tools instead
// of shelling out to cmd/gik.
package mcpserver

import (
	"context"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/standardbeagle/gik/internal/config"
	"github.com/standardbeagle/gik/internal/engine"
	"github.com/standardbeagle/gik/internal/vcs"
)

// Server wires one MCP server's tool registrations over Root, the
// default workspace used when a tool call omits "workspace".
type Server struct {
	Root   string
	server *mcp.Server
}

// New builds a Server rooted at root with every façade tool registered.
func New(root string) *Server {
	s := &Server{
		Root:   root,
		server: mcp.NewServer(&mcp.Implementation{Name: "gik-mcp-server", Version: "0.1.0"}, nil),
	}
	s.registerTools()
	return s
}

// Start runs the server over stdio until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// open resolves one tool call's engine: workspace defaults to s.Root,
// and an explicit branch bypasses engine.New's own resolution so a
// caller can target a branch other than the one HEAD/BRANCH would pick.
func (s *Server) open(workspace, branch string) (*engine.Engine, error) {
	if workspace == "" {
		workspace = s.Root
	}
	if branch == "" {
		return engine.New(workspace)
	}

	root := vcs.FindRoot(workspace)
	if root == "" {
		abs, err := filepath.Abs(workspace)
		if err != nil {
			return nil, err
		}
		root = abs
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	return engine.Open(root, branch, cfg)
}

func schema(properties map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: properties, Required: required}
}

func stringProp(desc string) *jsonschema.Schema  { return &jsonschema.Schema{Type: "string", Description: desc} }
func boolProp(desc string) *jsonschema.Schema    { return &jsonschema.Schema{Type: "boolean", Description: desc} }
func intProp(desc string) *jsonschema.Schema     { return &jsonschema.Schema{Type: "integer", Description: desc} }
func stringArray(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: desc}
}

// workspaceBranchProps are the two parameters every tool below accepts.
func workspaceBranchProps(m map[string]*jsonschema.Schema) map[string]*jsonschema.Schema {
	m["workspace"] = stringProp("Workspace directory; defaults to the server's root")
	m["branch"] = stringProp("Branch name; defaults to the resolved HEAD/BRANCH branch")
	return m
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "init",
		Description: "Initialize a knowledge root for the current branch.",
		InputSchema: schema(workspaceBranchProps(map[string]*jsonschema.Schema{})),
	}, s.handleInit)

	s.server.AddTool(&mcp.Tool{
		Name:        "add",
		Description: "Stage files or directories for the next commit.",
		InputSchema: schema(workspaceBranchProps(map[string]*jsonschema.Schema{
			"targets": stringArray("Paths to stage"),
			"base":    stringProp("Base to stage into: code, docs, or memory; inferred when omitted"),
		}), "targets"),
	}, s.handleAdd)

	s.server.AddTool(&mcp.Tool{
		Name:        "remove",
		Description: "Remove matching pending sources from staging without touching committed content.",
		InputSchema: schema(workspaceBranchProps(map[string]*jsonschema.Schema{
			"targets": stringArray("Paths to unstage"),
		}), "targets"),
	}, s.handleRemove)

	s.server.AddTool(&mcp.Tool{
		Name:        "commit",
		Description: "Run the commit pipeline over everything currently staged and append a revision.",
		InputSchema: schema(workspaceBranchProps(map[string]*jsonschema.Schema{
			"message": stringProp("Commit message"),
		}), "message"),
	}, s.handleCommit)

	s.server.AddTool(&mcp.Tool{
		Name:        "reindex",
		Description: "Rebuild one base's vector index and BM25 snapshot under the active embedding configuration.",
		InputSchema: schema(workspaceBranchProps(map[string]*jsonschema.Schema{
			"base":   stringProp("Base to reindex: code, docs, or memory"),
			"force":  boolProp("Reindex even if the active embedding already matches what's stored"),
			"dryRun": boolProp("Report what would change without touching storage"),
		}), "base"),
	}, s.handleReindex)

	s.server.AddTool(&mcp.Tool{
		Name:        "ask",
		Description: "Run the hybrid retrieval pipeline and return a context bundle for a question.",
		InputSchema: schema(workspaceBranchProps(map[string]*jsonschema.Schema{
			"question":      stringProp("Question to answer"),
			"bases":         stringArray("Bases to search: code, docs, memory; all when omitted"),
			"topK":          intProp("Number of final chunks to return"),
			"includeMemory": boolProp("Include the memory base in retrieval"),
			"rerank":        boolProp("Apply the cross-encoder reranker"),
			"queryVariants": stringArray("Additional query rewrites to pool alongside question"),
		}), "question"),
	}, s.handleAsk)

	s.server.AddTool(&mcp.Tool{
		Name:        "status",
		Description: "Report HEAD, staging summary, stack stats, and per-base health.",
		InputSchema: schema(workspaceBranchProps(map[string]*jsonschema.Schema{})),
	}, s.handleStatus)

	s.server.AddTool(&mcp.Tool{
		Name:        "show",
		Description: "Resolve a revision reference (HEAD, HEAD~N, id, or prefix) and show its metadata.",
		InputSchema: schema(workspaceBranchProps(map[string]*jsonschema.Schema{
			"rev":             stringProp("Revision reference; defaults to HEAD"),
			"includeKGExport": boolProp("Include a knowledge-graph export"),
			"kgFormat":        stringProp("Export format: dot, mermaid, or blockdiagram"),
		})),
	}, s.handleShow)

	s.server.AddTool(&mcp.Tool{
		Name:        "release",
		Description: "Generate a Conventional Commits changelog between two timeline points.",
		InputSchema: schema(workspaceBranchProps(map[string]*jsonschema.Schema{
			"from":   stringProp("Starting revision reference, exclusive"),
			"to":     stringProp("Ending revision reference; defaults to HEAD"),
			"dryRun": boolProp("Compute the changelog without writing CHANGELOG.md"),
		})),
	}, s.handleRelease)

	s.server.AddTool(&mcp.Tool{
		Name:        "memory_ingest",
		Description: "Ingest a note directly into the memory base.",
		InputSchema: schema(workspaceBranchProps(map[string]*jsonschema.Schema{
			"scope":  stringProp("Memory scope: project, branch, or global"),
			"source": stringProp("Memory source kind, e.g. manualNote"),
			"text":   stringProp("Note text"),
			"title":  stringProp("Note title"),
			"tags":   stringArray("Tags"),
		}), "scope", "source", "text"),
	}, s.handleMemoryIngest)

	s.server.AddTool(&mcp.Tool{
		Name:        "memory_metrics",
		Description: "Report the memory base's entry, token, and character counters.",
		InputSchema: schema(workspaceBranchProps(map[string]*jsonschema.Schema{})),
	}, s.handleMemoryMetrics)

	s.server.AddTool(&mcp.Tool{
		Name:        "memory_prune",
		Description: "Evict memory entries per the configured pruning policy.",
		InputSchema: schema(workspaceBranchProps(map[string]*jsonschema.Schema{})),
	}, s.handleMemoryPrune)
}
