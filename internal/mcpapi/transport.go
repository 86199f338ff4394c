package mcpapi

import (
	"context"
	"io"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

// HTTPHandler returns the streamable HTTP transport for mounting at /mcp.
func (s *Server) HTTPHandler() http.Handler {
	return mcpserver.NewStreamableHTTPServer(s.mcpServer)
}

// ServeStdio speaks MCP over the given streams until ctx is done or in closes.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	return mcpserver.NewStdioServer(s.mcpServer).Listen(ctx, in, out)
}
