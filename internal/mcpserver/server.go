// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the library and its highlights for LLM integration via
// stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/lectern/internal/bookservice"
)

const configFormatURI = "lectern://config-format"

// Server wraps the MCP server with lectern tools.
type Server struct {
	mcp *server.MCPServer
	svc *bookservice.Service
}

// New creates a new MCP server with all lectern tools registered.
func New(svc *bookservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Lectern",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_books",
		mcp.WithDescription("List the books in the library, most recent first. "+
			"Each line is '<hash>\\t<name>\\t<author>'."),
	), s.listBooks)

	s.mcp.AddTool(mcp.NewTool("search_highlights",
		mcp.WithDescription("Full-text search through highlight text, highlight notes and book titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 20)")),
	), s.searchHighlights)

	s.mcp.AddTool(mcp.NewTool("get_book_notes",
		mcp.WithDescription("Return the live highlights of a book as JSON, in reading order. "+
			"See the "+configFormatURI+" resource for the field meanings."),
		mcp.WithString("hash", mcp.Required(), mcp.Description("Book hash as returned by list_books")),
	), s.getBookNotes)

	s.mcp.AddTool(mcp.NewTool("sync_library",
		mcp.WithDescription("Synchronize the library manifest and changed books with the WebDAV remote."),
	), s.syncLibrary)

	s.mcp.AddTool(mcp.NewTool("sync_book",
		mcp.WithDescription("Merge one book's reading state (progress, highlights, bookmarks, shelf) with the remote."),
		mcp.WithString("hash", mcp.Required(), mcp.Description("Book hash as returned by list_books")),
	), s.syncBook)

	s.mcp.AddTool(mcp.NewTool("add_book",
		mcp.WithDescription("Add an EPUB to the library from an http(s) URL or a base64 data URI "+
			"(data:application/epub+zip;base64,...)."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data URI of the EPUB")),
	), s.addBook)

	// Resource: config.json format.
	s.mcp.AddResource(
		mcp.NewResource(configFormatURI, "Book Config Format",
			mcp.WithResourceDescription("Structure of a book's reading state: highlights, bookmarks, tombstones."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readConfigFormatResource,
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

func (s *Server) listBooks(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	books, err := s.svc.ListBooks(ctx, false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(books) == 0 {
		return mcp.NewToolResultText("library is empty"), nil
	}
	lines := make([]string, 0, len(books))
	for _, b := range books {
		lines = append(lines, b.Hash+"\t"+b.Name+"\t"+b.Author)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) searchHighlights(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no highlights found"), nil
	}
	return jsonResult(results), nil
}

func (s *Server) getBookNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hash, err := req.RequireString("hash")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes, err := s.svc.BookNotes(ctx, hash)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(notes), nil
}

func (s *Server) syncLibrary(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := s.svc.SyncLibrary(ctx, nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	msg := fmt.Sprintf("pulled %d, pushed %d, removed %d", rep.Pulled, rep.Pushed, rep.Removed)
	if rep.PushErr != nil {
		msg += "\nwarning: " + rep.PushErr.Error()
	}
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) syncBook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hash, err := req.RequireString("hash")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cfg, err := s.svc.SyncBook(ctx, hash)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	live := 0
	for _, n := range cfg.Notes {
		if n.Removed == 0 {
			live++
		}
	}
	return mcp.NewToolResultText(fmt.Sprintf("synced %s: %d highlights, %d bookmarks, progress %.1f%%",
		hash, live, len(cfg.Bookmarks), cfg.Progress*100)), nil
}

func (s *Server) readConfigFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      configFormatURI,
			MIMEType: "text/markdown",
			Text:     ConfigFormat,
		},
	}, nil
}
