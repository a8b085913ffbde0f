package mcp

import (
	"context"

	"github.com/m-mizutani/aria/pkg/usecase/chat"
	"github.com/m-mizutani/aria/pkg/usecase/research"
	"github.com/m-mizutani/aria/pkg/usecase/session"
	"github.com/m-mizutani/aria/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server exposes the research assistant over the Model Context Protocol,
// so MCP hosts (editors, agent runtimes) can drive research sessions
// through tool calls instead of HTTP.
type Server struct {
	sessions *session.UseCase
	research *research.UseCase
	chat     *chat.UseCase
	mcp      *mcp.Server
}

// New builds an MCP server with the research, chat and list_sessions tools
// registered.
func New(sessions *session.UseCase, researchUC *research.UseCase, chatUC *chat.UseCase) *Server {
	s := &Server{
		sessions: sessions,
		research: researchUC,
		chat:     chatUC,
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "aria",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(s.mcp, researchTool(), s.handleResearch)
	mcp.AddTool(s.mcp, chatTool(), s.handleChat)
	mcp.AddTool(s.mcp, listSessionsTool(), s.handleListSessions)

	return s
}

// MCP returns the underlying SDK server, mainly for wiring custom transports.
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// Run serves MCP over stdio until the context is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	logging.From(ctx).Info("mcp server starting", "transport", "stdio")

	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "mcp server failed")
	}
	return nil
}
