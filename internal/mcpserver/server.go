// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the note engine as tools over the stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/contextual/internal/workspace"
)

// Defaults fill in tool arguments the caller leaves out.
type Defaults struct {
	Workspace        string
	Results          int
	ContextSentences int
}

// Server wraps the MCP server with the note tools.
type Server struct {
	mcp      *server.MCPServer
	registry *workspace.Registry
	defaults Defaults
	logger   *slog.Logger
}

// New creates a new MCP server with all tools registered.
func New(registry *workspace.Registry, defaults Defaults, logger *slog.Logger) *Server {
	s := &Server{registry: registry, defaults: defaults, logger: logger}

	s.mcp = server.NewMCPServer(
		"contextual",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Notes are plain text addressed by title. Tools act on the default "+
			"workspace unless a workspace path is given."),
	)

	workspaceArg := mcp.WithString("workspace", mcp.Description("Workspace directory (defaults to the configured workspace)"))
	titleArg := mcp.WithString("title", mcp.Required(), mcp.Description("Note title"))

	s.mcp.AddTool(mcp.NewTool("save_note",
		mcp.WithDescription("Create or replace a note. The note is indexed and given an automatic topic tag. "+
			"Read the contract first via get_note_contract or the contextual://note-format resource."),
		titleArg,
		mcp.WithString("body", mcp.Required(), mcp.Description("Plain text body")),
		workspaceArg,
	), s.saveNote)

	s.mcp.AddTool(mcp.NewTool("remove_note",
		mcp.WithDescription("Delete a note and drop it from the index."),
		titleArg,
		workspaceArg,
	), s.removeNote)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the body of a note."),
		titleArg,
		workspaceArg,
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("get_tags",
		mcp.WithDescription("List the tags of a note. Manual tags were set by the user; the automatic one by the classifier."),
		titleArg,
		workspaceArg,
	), s.getTags)

	s.mcp.AddTool(mcp.NewTool("set_tags",
		mcp.WithDescription("Replace the manual tags of a note. The automatic tag is kept."),
		titleArg,
		mcp.WithArray("tags", mcp.Required(), mcp.Description("Tag names"), mcp.WithStringItems()),
		workspaceArg,
	), s.setTags)

	s.mcp.AddTool(mcp.NewTool("search",
		mcp.WithDescription("Semantic search over note chunks. Results only come from notes carrying every given tag."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Query text")),
		mcp.WithArray("tags", mcp.Description("Required tag names"), mcp.WithStringItems()),
		mcp.WithNumber("results", mcp.Description("Maximum number of results")),
		workspaceArg,
	), s.search)

	s.mcp.AddTool(mcp.NewTool("context_search",
		mcp.WithDescription("Find passages of other notes related to the sentences around a cursor."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Full text of the note being edited")),
		mcp.WithNumber("cursor", mcp.Required(), mcp.Description("Cursor position in UTF-16 code units")),
		mcp.WithString("title", mcp.Description("Title of the note being edited; it is left out of the results")),
		mcp.WithNumber("results", mcp.Description("Maximum number of results")),
		mcp.WithNumber("context_sentences", mcp.Description("Sentences of context returned around each match")),
		workspaceArg,
	), s.contextSearch)

	s.mcp.AddTool(mcp.NewTool("files_in_workspace",
		mcp.WithDescription("List every note with its tags."),
		workspaceArg,
	), s.filesInWorkspace)

	s.mcp.AddTool(mcp.NewTool("load_workspace",
		mcp.WithDescription("Load a workspace directory and return its handle."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Workspace directory")),
	), s.loadWorkspace)

	s.mcp.AddTool(mcp.NewTool("unload_workspace",
		mcp.WithDescription("Unload a workspace by handle."),
		mcp.WithNumber("handle", mcp.Required(), mcp.Description("Handle returned by load_workspace")),
	), s.unloadWorkspace)

	s.mcp.AddTool(mcp.NewTool("delete_workspace",
		mcp.WithDescription("Unload a workspace by handle and delete its directory."),
		mcp.WithNumber("handle", mcp.Required(), mcp.Description("Handle returned by load_workspace")),
	), s.deleteWorkspace)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns how note bodies are split into searchable chunks. "+
			"Call this before writing notes."),
	), s.getNoteContract)

	s.mcp.AddResource(
		mcp.NewResource("contextual://note-format", "Note Format Contract",
			mcp.WithResourceDescription("How note bodies are split into searchable chunks."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// Listen serves MCP over in/out until ctx is cancelled or in is closed.
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// workspace resolves the workspace argument, loading it on first use.
func (s *Server) workspace(req mcp.CallToolRequest) (*workspace.Workspace, error) {
	path := req.GetString("workspace", s.defaults.Workspace)
	if path == "" {
		return nil, fmt.Errorf("no workspace given and no default configured")
	}
	h, err := s.registry.Lookup(path)
	if err != nil {
		return nil, err
	}
	return s.registry.Get(h)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	s.logger.Warn("mcp: tool failed", slog.String("tool", tool), slog.String("error", err.Error()))
	return mcp.NewToolResultError(err.Error())
}
