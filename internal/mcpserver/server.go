// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes voxsync tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/voxsync/internal/apperr"
	"github.com/starford/voxsync/internal/notesvc"
	"github.com/starford/voxsync/internal/storage"
	"github.com/starford/voxsync/internal/syncer"
)

// Server wraps the MCP server with voxsync tools.
type Server struct {
	mcp   *server.MCPServer
	store storage.Provider
	svc   *notesvc.Service
	syn   *syncer.Syncer
}

// New creates a new MCP server with all voxsync tools registered.
func New(store storage.Provider, svc *notesvc.Service, syn *syncer.Syncer) *Server {
	s := &Server{store: store, svc: svc, syn: syn}

	s.mcp = server.NewMCPServer(
		"Voxsync",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("sync_now",
		mcp.WithDescription("Run a sync pass against the Voicenotes service and report counts."),
	), s.syncNow)

	s.mcp.AddTool(mcp.NewTool("search_recordings",
		mcp.WithDescription("Full-text search through synced voice note transcripts and titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchRecordings)

	s.mcp.AddTool(mcp.NewTool("todays_recordings",
		mcp.WithDescription("List voice notes recorded on a given day (defaults to today)."),
		mcp.WithString("day", mcp.Description("Day in YYYY-MM-DD form (empty for today)")),
	), s.todaysRecordings)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a synced Markdown document."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the document (e.g. voicenotes/note.md)")),
	), s.readNote)

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

func (s *Server) syncNow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.syn.Sync(ctx)
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return mcp.NewToolResultError("a sync pass is already running"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"sync complete: %d fetched, %d created, %d updated, %d excluded, %d failed",
		report.Fetched, report.Created, report.Updated, report.Excluded, report.Failed)), nil
}

func (s *Server) searchRecordings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) todaysRecordings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	day := ""
	if d, err := req.RequireString("day"); err == nil {
		day = d
	}
	if day == "" {
		day = time.Now().Format("2006-01-02")
	}
	items, err := s.svc.TodayRecordings(ctx, day)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no recordings on " + day), nil
	}
	var lines []string
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("%s (%s)", item.Title, item.Path))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
