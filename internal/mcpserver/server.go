// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes zortex outline queries for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/apperr"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/docservice"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/index"
)

const formatURI = "zortex://format"

// Server wraps the MCP server with zortex tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates a new MCP server with all zortex tools registered.
func New(svc *docservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Zortex",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List indexed zortex documents with their titles, tags and task counts."),
		mcp.WithString("tag", mcp.Description("Only documents carrying this tag")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("get_outline",
		mcp.WithDescription("Return the section tree of a document with tasks attached to their sections. "+
			"Read the format contract first via get_format_contract or the "+formatURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the document (e.g. projects.zortex)")),
	), s.getOutline)

	s.mcp.AddTool(mcp.NewTool("get_section",
		mcp.WithDescription("Find a section by 1-based line (deepest enclosing section) or by slash-joined id."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the document")),
		mcp.WithNumber("line", mcp.Description("1-based line number")),
		mcp.WithString("id", mcp.Description("Section id such as launch/budget")),
	), s.getSection)

	s.mcp.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks of one document, or across the vault when path is omitted."),
		mcp.WithString("path", mcp.Description("Relative path to the document")),
		mcp.WithBoolean("completed", mcp.Description("Vault-wide only: filter by completion")),
		mcp.WithNumber("limit", mcp.Description("Vault-wide only: max results (default 100)")),
	), s.listTasks)

	s.mcp.AddTool(mcp.NewTool("search",
		mcp.WithDescription("Full-text search through section and task text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 20)")),
	), s.search)

	s.mcp.AddTool(mcp.NewTool("get_stats",
		mcp.WithDescription("Return section and task counters and the last parse of a document."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the document")),
	), s.getStats)

	s.mcp.AddTool(mcp.NewTool("get_format_contract",
		mcp.WithDescription("Returns the zortex outline format contract. "+
			"Call this before interpreting outlines or writing documents."),
	), s.getFormatContract)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Zortex Outline Format",
			mcp.WithResourceDescription("How zortex lines are classified into sections, tasks and attributes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
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

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, total, err := s.svc.ListDocuments(ctx, req.GetInt("limit", 0), 0, req.GetString("tag", ""))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{"documents": docs, "total": total})
}

func (s *Server) getOutline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view, err := s.svc.Outline(ctx, path)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(view)
}

func (s *Server) getSection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if id := req.GetString("id", ""); id != "" {
		sec, err := s.svc.SectionByID(ctx, path, id)
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(sec)
	}
	line := req.GetInt("line", 0)
	if line == 0 {
		return mcp.NewToolResultError("either line or id is required"), nil
	}
	sec, err := s.svc.SectionAtLine(ctx, path, line)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(sec)
}

func (s *Server) listTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if path := req.GetString("path", ""); path != "" {
		tasks, err := s.svc.Tasks(ctx, path)
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(tasks)
	}

	f := index.TaskFilter{Limit: req.GetInt("limit", 0)}
	if _, ok := req.GetArguments()["completed"]; ok {
		c := req.GetBool("completed", false)
		f.Completed = &c
	}
	rows, err := s.svc.VaultTasks(ctx, f)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(rows)
}

func (s *Server) search(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.Search(ctx, query, req.GetInt("limit", 0))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(hits)
}

func (s *Server) getStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	stats, err := s.svc.Stats(ctx, path)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(stats)
}

func (s *Server) getFormatContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(FormatContract), nil
}

func (s *Server) readFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     FormatContract,
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// toolError turns service errors into tool-level errors the model can read.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %v", err))
	case errors.Is(err, apperr.ErrOutOfRange):
		return mcp.NewToolResultError(fmt.Sprintf("out of range: %v", err))
	default:
		return mcp.NewToolResultError(err.Error())
	}
}
