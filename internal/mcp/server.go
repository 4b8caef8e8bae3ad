package mcpserver

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"pipecheck/internal/config"
	"pipecheck/internal/domain"
	"pipecheck/internal/service"
)

// Checker is the part of service.CheckService the server exposes.
type Checker interface {
	Config() *config.Config
	RunMapping(ctx context.Context) (*service.RunResult, error)
	RunTables(ctx context.Context) (*service.RunResult, error)
	RunCrawl(ctx context.Context, url string) (*service.RunResult, error)
	ListRuns(check string, limit int) ([]domain.CheckRun, error)
}

var _ Checker = (*service.CheckService)(nil)

// Server is the MCP server for pipecheck.
// It exposes the checks as tools and the active configuration as resources.
type Server struct {
	mcp    *server.MCPServer
	checks Checker
	logger *zap.Logger
}

// New creates and configures a new MCP server with all tools and resources.
func New(checks Checker, logger *zap.Logger, version string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{checks: checks, logger: logger}

	s.mcp = server.NewMCPServer(
		"pipecheck",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	s.registerCheckTools()
	s.registerResources()

	return s
}

// ServeStdio serves MCP on in/out until ctx is cancelled or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("mcp: starting stdio server")
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))
	return stdio.Listen(ctx, in, out)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}
