// Package mcpserver exposes read-only graph queries as MCP (Model Context
// Protocol) tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/vaultgraph/internal/apperr"
	"github.com/starford/vaultgraph/internal/graph"
	"github.com/starford/vaultgraph/internal/noteservice"
)

const schemaURI = "vaultgraph://schema"

// Reader is the read side of the note service.
type Reader interface {
	Note(ctx context.Context, rel string) (*noteservice.NoteDetail, error)
	Backlinks(ctx context.Context, rel string) ([]noteservice.NoteSummary, error)
	NotesWithTag(ctx context.Context, tag string) ([]noteservice.NoteSummary, error)
	Stats(ctx context.Context) (*noteservice.GraphStats, error)
	Duplicates(ctx context.Context) ([]graph.DuplicateGroup, error)
}

// Server wraps the MCP server with the graph tools.
type Server struct {
	mcp    *server.MCPServer
	svc    Reader
	logger *slog.Logger
}

// New creates a Server with every tool registered.
func New(svc Reader, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{svc: svc, logger: logger}

	s.mcp = server.NewMCPServer(
		"vaultgraph",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("graph_stats",
		mcp.WithDescription("Count graph nodes by label and relationships by type."),
	), s.graphStats)

	s.mcp.AddTool(mcp.NewTool("get_note",
		mcp.WithDescription("Get a note with its tags, links, headers, detected entities and backlinks."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative note path (e.g. folder/note.md)")),
		mcp.WithBoolean("include_content", mcp.Description("Include the full note text (default false)")),
	), s.getNote)

	s.mcp.AddTool(mcp.NewTool("find_duplicates",
		mcp.WithDescription("List groups of notes whose content is byte-for-byte identical."),
	), s.findDuplicates)

	s.mcp.AddTool(mcp.NewTool("notes_with_tag",
		mcp.WithDescription("List notes carrying a tag, from frontmatter or inline #tags."),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Tag name, with or without the leading #")),
	), s.notesWithTag)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find notes whose [[wikilinks]] point at a note by file name or alias."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path of the linked note")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_graph_schema",
		mcp.WithDescription("Describe the node labels and relationship types the other tools return."),
	), s.getGraphSchema)

	s.mcp.AddResource(
		mcp.NewResource(schemaURI, "Graph Schema",
			mcp.WithResourceDescription("Node labels, keys and relationship types of the vault graph."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSchemaResource,
	)

	return s
}

// ServeStdio serves MCP on stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) graphStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.Stats(ctx)
	if err != nil {
		return s.failure("graph_stats", err), nil
	}
	return jsonResult(st)
}

func (s *Server) getNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.Note(ctx, path)
	if err != nil {
		return s.failure("get_note", err), nil
	}
	if !req.GetBool("include_content", false) {
		note.Content = ""
	}
	return jsonResult(note)
}

func (s *Server) findDuplicates(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	groups, err := s.svc.Duplicates(ctx)
	if err != nil {
		return s.failure("find_duplicates", err), nil
	}
	if len(groups) == 0 {
		return mcp.NewToolResultText("no duplicates found"), nil
	}
	return jsonResult(groups)
}

func (s *Server) notesWithTag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes, err := s.svc.NotesWithTag(ctx, tag)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultText(fmt.Sprintf("no notes tagged %q", tag)), nil
	}
	if err != nil {
		return s.failure("notes_with_tag", err), nil
	}
	return jsonResult(notes)
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes, err := s.svc.Backlinks(ctx, path)
	if err != nil {
		return s.failure("get_backlinks", err), nil
	}
	if len(notes) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return jsonResult(notes)
}

func (s *Server) getGraphSchema(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(GraphSchema), nil
}

func (s *Server) readSchemaResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      schemaURI,
			MIMEType: "text/markdown",
			Text:     GraphSchema,
		},
	}, nil
}

// failure turns a domain error into a tool error result. Store errors are
// logged and reported without detail.
func (s *Server) failure(tool string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found")
	case errors.Is(err, apperr.ErrOutsideRoot):
		return mcp.NewToolResultError("path is outside the vault")
	}
	s.logger.Error("mcpserver: tool failed", slog.String("tool", tool), slog.String("error", err.Error()))
	return mcp.NewToolResultError("internal error")
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encode result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}
