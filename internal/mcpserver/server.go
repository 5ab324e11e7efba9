// Package mcpserver exposes the session registry as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/comigor/conner-go/internal/chat"
	"github.com/comigor/conner-go/internal/gateway"
	"github.com/comigor/conner-go/internal/logger"
	"github.com/comigor/conner-go/internal/session"
)

// Name is the server name reported to MCP clients.
const Name = "conner"

const listTimeFormat = "2006-01-02 15:04:05"

// SessionDeleter removes a session. The conversation controller satisfies it
// and also resets the active chat when the current session goes away.
type SessionDeleter interface {
	DeleteSession(id string) error
}

// Handler serves session management tools.
type Handler struct {
	registry *session.Registry
	deleter  SessionDeleter
}

// NewHandler returns a handler over reg. When deleter is nil deletions go
// straight to the registry.
func NewHandler(reg *session.Registry, deleter SessionDeleter) *Handler {
	if deleter == nil {
		deleter = registryDeleter{reg}
	}
	return &Handler{registry: reg, deleter: deleter}
}

type registryDeleter struct{ *session.Registry }

func (d registryDeleter) DeleteSession(id string) error { return d.Delete(id) }

// RegisterTools adds every session tool to s.
func (h *Handler) RegisterTools(s *server.MCPServer) {
	listTool := mcp.NewTool("list_sessions",
		mcp.WithDescription("List saved conversations, most recently updated first"),
	)
	s.AddTool(listTool, h.handleListSessions)

	getTool := mcp.NewTool("get_session",
		mcp.WithDescription("Get a saved conversation with its full transcript"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("The id of the session")),
	)
	s.AddTool(getTool, h.handleGetSession)

	renameTool := mcp.NewTool("rename_session",
		mcp.WithDescription("Change the title of a saved conversation"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("The id of the session")),
		mcp.WithString("title", mcp.Required(), mcp.Description("The new title")),
	)
	s.AddTool(renameTool, h.handleRenameSession)

	deleteTool := mcp.NewTool("delete_session",
		mcp.WithDescription("Delete a saved conversation"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("The id of the session")),
	)
	s.AddTool(deleteTool, h.handleDeleteSession)
}

// NewServer returns an MCP server with the session tools registered.
func NewServer(h *Handler) *server.MCPServer {
	s := server.NewMCPServer(Name, gateway.Version, server.WithToolCapabilities(true))
	h.RegisterTools(s)
	return s
}

// ServeStdio serves h over stdin and stdout until the client disconnects.
func ServeStdio(h *Handler) error {
	logger.L.Info("MCP server starting", "transport", "stdio")
	return server.ServeStdio(NewServer(h))
}

func (h *Handler) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger.L.Debug("handling list_sessions request")

	sessions, err := h.registry.Recent()
	if err != nil {
		logger.L.Error("list_sessions failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list sessions: %v", err)), nil
	}
	if len(sessions) == 0 {
		return mcp.NewToolResultText("No saved sessions."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sessions (%d):\n", len(sessions))
	for _, s := range sessions {
		fmt.Fprintf(&b, "- %s: %s (%d messages, updated %s)\n",
			s.ID, s.Title, s.MessageCount, s.UpdatedAt.Local().Format(listTimeFormat))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (h *Handler) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		logger.L.Error("session_id parameter validation failed", "error", err)
		return mcp.NewToolResultError("session_id parameter is required"), nil
	}
	logger.L.Debug("handling get_session request", "session_id", id)

	sess, failure := h.lookup(id)
	if failure != nil {
		return failure, nil
	}

	payload, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode session %s: %v", id, err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (h *Handler) handleRenameSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		logger.L.Error("session_id parameter validation failed", "error", err)
		return mcp.NewToolResultError("session_id parameter is required"), nil
	}
	title, err := request.RequireString("title")
	if err != nil || strings.TrimSpace(title) == "" {
		return mcp.NewToolResultError("title parameter is required"), nil
	}
	logger.L.Debug("handling rename_session request", "session_id", id)

	if _, failure := h.lookup(id); failure != nil {
		return failure, nil
	}
	start := time.Now()
	if err := h.registry.Rename(id, title); err != nil {
		logger.L.Error("rename_session failed", "session_id", id, "error", err, "elapsed", time.Since(start))
		return mcp.NewToolResultError(fmt.Sprintf("Failed to rename session %s: %v", id, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session %s renamed to %q", id, strings.TrimSpace(title))), nil
}

func (h *Handler) handleDeleteSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		logger.L.Error("session_id parameter validation failed", "error", err)
		return mcp.NewToolResultError("session_id parameter is required"), nil
	}
	logger.L.Debug("handling delete_session request", "session_id", id)

	if _, failure := h.lookup(id); failure != nil {
		return failure, nil
	}
	if err := h.deleter.DeleteSession(id); err != nil {
		logger.L.Error("delete_session failed", "session_id", id, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to delete session %s: %v", id, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session %s deleted", id)), nil
}

// lookup returns the session with id, or a tool error result.
func (h *Handler) lookup(id string) (*chat.Session, *mcp.CallToolResult) {
	sess, err := h.registry.Get(id)
	if err != nil {
		logger.L.Error("session lookup failed", "session_id", id, "error", err)
		return nil, mcp.NewToolResultError(fmt.Sprintf("Failed to get session %s: %v", id, err))
	}
	if sess == nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("Session %s not found", id))
	}
	return sess, nil
}
