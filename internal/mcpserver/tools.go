package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/contextual/internal/models"
	"github.com/starford/contextual/internal/workspace"
)

type saveResult struct {
	Title   string       `json:"title"`
	Changed bool         `json:"changed"`
	Tags    []models.Tag `json:"tags"`
}

type removeResult struct {
	Title   string `json:"title"`
	Removed bool   `json:"removed"`
}

type handleResult struct {
	Handle int    `json:"handle"`
	Path   string `json:"path"`
}

func (s *Server) saveNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body, err := req.RequireString("body")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ws, err := s.workspace(req)
	if err != nil {
		return s.toolError("save_note", err), nil
	}
	doc, changed, err := ws.SaveNote(ctx, title, body)
	if err != nil {
		return s.toolError("save_note", err), nil
	}
	return jsonResult(saveResult{Title: title, Changed: changed, Tags: nonNil(doc.Tags)})
}

func (s *Server) removeNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ws, err := s.workspace(req)
	if err != nil {
		return s.toolError("remove_note", err), nil
	}
	removed, err := ws.RemoveNote(ctx, title)
	if err != nil {
		return s.toolError("remove_note", err), nil
	}
	return jsonResult(removeResult{Title: title, Removed: removed})
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ws, err := s.workspace(req)
	if err != nil {
		return s.toolError("read_note", err), nil
	}
	body, err := ws.ReadNote(ctx, title)
	if err != nil {
		return s.toolError("read_note", err), nil
	}
	return mcp.NewToolResultText(body), nil
}

func (s *Server) getTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ws, err := s.workspace(req)
	if err != nil {
		return s.toolError("get_tags", err), nil
	}
	tags, err := ws.GetTags(ctx, title)
	if err != nil {
		return s.toolError("get_tags", err), nil
	}
	return jsonResult(nonNil(tags))
}

func (s *Server) setTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ws, err := s.workspace(req)
	if err != nil {
		return s.toolError("set_tags", err), nil
	}
	tags, err := ws.SetTags(ctx, title, req.GetStringSlice("tags", nil))
	if err != nil {
		return s.toolError("set_tags", err), nil
	}
	return jsonResult(nonNil(tags))
}

func (s *Server) search(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ws, err := s.workspace(req)
	if err != nil {
		return s.toolError("search", err), nil
	}
	results, err := ws.Search(ctx, text, req.GetStringSlice("tags", nil), req.GetInt("results", s.defaults.Results))
	if err != nil {
		return s.toolError("search", err), nil
	}
	return jsonResult(nonNil(results))
}

func (s *Server) contextSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cursor, err := req.RequireInt("cursor")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ws, err := s.workspace(req)
	if err != nil {
		return s.toolError("context_search", err), nil
	}

	q := workspace.ContextQuery{
		Text:             text,
		Cursor:           cursor,
		Results:          req.GetInt("results", s.defaults.Results),
		ContextSentences: req.GetInt("context_sentences", s.defaults.ContextSentences),
	}
	if title := req.GetString("title", ""); title != "" {
		q.Title = &title
	}
	results, err := ws.ContextSearch(ctx, q)
	if err != nil {
		return s.toolError("context_search", err), nil
	}
	return jsonResult(nonNil(results))
}

func (s *Server) filesInWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ws, err := s.workspace(req)
	if err != nil {
		return s.toolError("files_in_workspace", err), nil
	}
	files, err := ws.Files(ctx)
	if err != nil {
		return s.toolError("files_in_workspace", err), nil
	}
	return jsonResult(nonNil(files))
}

func (s *Server) loadWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	h, err := s.registry.Lookup(path)
	if err != nil {
		return s.toolError("load_workspace", err), nil
	}
	ws, err := s.registry.Get(h)
	if err != nil {
		return s.toolError("load_workspace", err), nil
	}
	return jsonResult(handleResult{Handle: int(h), Path: ws.Location()})
}

func (s *Server) unloadWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h, err := req.RequireInt("handle")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.registry.Unload(workspace.Handle(h)); err != nil {
		return s.toolError("unload_workspace", err), nil
	}
	return mcp.NewToolResultText("unloaded"), nil
}

func (s *Server) deleteWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h, err := req.RequireInt("handle")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.registry.Delete(workspace.Handle(h)); err != nil {
		return s.toolError("delete_workspace", err), nil
	}
	return mcp.NewToolResultText("deleted"), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "contextual://note-format",
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
