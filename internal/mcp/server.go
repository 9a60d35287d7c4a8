// ABOUTME: MCP server setup for the meds engine.
// ABOUTME: Wraps the MCP server around an engine bound to a storage Repository.
package mcp

import (
	"context"

	"github.com/harperreed/meds/internal/engine"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Version is reported to MCP clients.
const Version = "1.0.0"

// Server wraps the MCP server with engine access.
type Server struct {
	mcpServer *mcp.Server
	eng       *engine.Engine
}

// NewServer creates a new MCP server backed by eng.
func NewServer(eng *engine.Engine) (*Server, error) {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "meds",
			Version: Version,
		},
		nil,
	)

	s := &Server{
		mcpServer: mcpServer,
		eng:       eng,
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Serve starts the MCP server using stdio transport.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
