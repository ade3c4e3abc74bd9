// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Laguz tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/laguz/internal/docservice"
)

// Server wraps the MCP server with Laguz tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates a new MCP server with all Laguz tools registered.
func New(svc *docservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Laguz",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("scan_documents",
		mcp.WithDescription("List the markdown documents of a directory with their metadata."),
		mcp.WithString("root", mcp.Description("Directory relative to the base (empty for the base)")),
		mcp.WithBoolean("recursive", mcp.Description("Descend into subdirectories")),
	), s.scanDocuments)

	s.mcp.AddTool(mcp.NewTool("analyze_relevance",
		mcp.WithDescription("Score documents 0-100 by recency, quality, connectivity and uniqueness."),
		mcp.WithString("root", mcp.Description("Directory relative to the base")),
		mcp.WithBoolean("recursive", mcp.Description("Descend into subdirectories")),
	), s.analyzeRelevance)

	s.mcp.AddTool(mcp.NewTool("plan_consolidation",
		mcp.WithDescription("Preview how the root markdown files of a directory would be consolidated. "+
			"Nothing is written."),
		mcp.WithString("root", mcp.Description("Directory relative to the base")),
		mcp.WithNumber("max_output_files", mcp.Description("Maximum number of output files")),
	), s.planConsolidation)

	s.mcp.AddTool(mcp.NewTool("run_consolidation",
		mcp.WithDescription("Run the compress or document-archive workflow. "+
			"Defaults to a dry run; pass dry_run=false to change files. Read "+
			ConventionsURI+" first."),
		mcp.WithString("root", mcp.Required(), mcp.Description("Directory relative to the base")),
		mcp.WithString("mode", mcp.Description("compress or document-archive"),
			mcp.Enum("compress", "document-archive")),
		mcp.WithBoolean("dry_run", mcp.Description("Plan only (default true)")),
		mcp.WithBoolean("archive_stale", mcp.Description("Move documents judged stale into archive/")),
	), s.runConsolidation)

	s.mcp.AddTool(mcp.NewTool("navigation_hub",
		mcp.WithDescription("Render the DOCUMENTATION.md navigation hub for a directory."),
		mcp.WithString("root", mcp.Description("Directory relative to the base")),
		mcp.WithBoolean("write", mcp.Description("Write DOCUMENTATION.md instead of only returning it")),
	), s.navigationHub)

	s.mcp.AddTool(mcp.NewTool("list_backups",
		mcp.WithDescription("List backup manifests, newest first."),
	), s.listBackups)

	s.mcp.AddTool(mcp.NewTool("get_conventions",
		mcp.WithDescription("Returns the naming and safety conventions of consolidation runs."),
	), s.getConventions)

	s.mcp.AddResource(
		mcp.NewResource(ConventionsURI, "Output Conventions",
			mcp.WithResourceDescription("Files a consolidation run creates, moves, and removes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readConventionsResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) scanDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.ListDocuments(ctx, req.GetString("root", ""), req.GetBool("recursive", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(items), nil
}

func (s *Server) analyzeRelevance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scores, err := s.svc.Relevance(ctx, req.GetString("root", ""), req.GetBool("recursive", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(scores), nil
}

func (s *Server) planConsolidation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view, err := s.svc.Plan(ctx, req.GetString("root", ""), req.GetInt("max_output_files", 0))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(view), nil
}

func (s *Server) runConsolidation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, err := req.RequireString("root")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	run := docservice.RunRequest{
		Root:   root,
		Mode:   req.GetString("mode", ""),
		DryRun: req.GetBool("dry_run", true),
	}
	if v, ok := req.GetArguments()["archive_stale"].(bool); ok {
		run.ArchiveStale = &v
	}
	sum, err := s.svc.Run(ctx, run)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(sum), nil
}

func (s *Server) navigationHub(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root := req.GetString("root", "")
	if req.GetBool("write", false) {
		path, err := s.svc.WriteHub(ctx, root)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("written: %s", path)), nil
	}
	hub, err := s.svc.Hub(ctx, root)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(hub), nil
}

func (s *Server) listBackups(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	manifests, err := s.svc.Manifests(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(manifests) == 0 {
		return mcp.NewToolResultText("no backups found"), nil
	}
	return jsonResult(manifests), nil
}

func (s *Server) getConventions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(OutputConventions), nil
}

func (s *Server) readConventionsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ConventionsURI,
			MIMEType: "text/markdown",
			Text:     OutputConventions,
		},
	}, nil
}
