// Package mcp exposes the agent's tool catalogue over the Model Context
// Protocol, so external MCP clients can drive the same sandbox and virtual
// filesystem the agent uses.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/SandForge/internal/port/filesystem"
	"github.com/Strob0t/SandForge/internal/port/sandbox"
)

// ServerConfig holds MCP server settings.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
}

// ServerDeps are the ports the MCP tools execute against.
type ServerDeps struct {
	Shell sandbox.Port
	FS    filesystem.FS
}

// Server wraps the MCP server and its HTTP transport.
type Server struct {
	cfg        ServerConfig
	deps       ServerDeps
	mcpServer  *mcpserver.MCPServer
	httpServer *mcpserver.StreamableHTTPServer
}

// NewServer creates an MCP server with all tools and resources registered.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(
			cfg.Name,
			cfg.Version,
			mcpserver.WithToolCapabilities(false),
		),
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server, for transport composition.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Start serves MCP over streamable HTTP. Blocks until Shutdown.
func (s *Server) Start() error {
	s.httpServer = mcpserver.NewStreamableHTTPServer(s.mcpServer)
	slog.Info("mcp server listening", "addr", s.cfg.Addr)
	if err := s.httpServer.Start(s.cfg.Addr); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP transport.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
