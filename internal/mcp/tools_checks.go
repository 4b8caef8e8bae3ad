package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"pipecheck/internal/domain"
)

const defaultRunLimit = 20

func (s *Server) registerCheckTools() {
	s.mcp.AddTool(mcp.NewTool("validate_mapping",
		mcp.WithDescription("Check that every column the listing mapping writes to exists on business_listings. Sends one zero-row select; reads nothing and writes nothing."),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleValidateMapping)

	s.mcp.AddTool(mcp.NewTool("check_tables",
		mcp.WithDescription("Probe each pipeline table (sources, crawled_pages, business_listings, buyer_profiles by default) for its expected columns with a one-row select."),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleCheckTables)

	s.mcp.AddTool(mcp.NewTool("crawl_url",
		mcp.WithDescription("Crawl a single page and report word count, title and internal links. Needs DEEPSEEK_API_KEY or OPENAI_API_KEY to be configured."),
		mcp.WithString("url", mcp.Description("Page to crawl (optional, defaults to the configured crawl URL)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true), OpenWorldHint: boolPtr(true)}),
	), s.handleCrawlURL)

	s.mcp.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recorded check runs, newest first"),
		mcp.WithString("check", mcp.Description("Filter by check: mapping, tables or crawl (optional)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 20)")),
	), s.handleListRuns)
}

func (s *Server) handleValidateMapping(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rr, err := s.checks.RunMapping(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResult(payload(rr))
}

func (s *Server) handleCheckTables(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rr, err := s.checks.RunTables(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResult(payload(rr))
}

func (s *Server) handleCrawlURL(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rr, err := s.checks.RunCrawl(ctx, stringArg(req.GetArguments(), "url"))
	if err != nil {
		return nil, err
	}
	return jsonResult(payload(rr))
}

func (s *Server) handleListRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	check := stringArg(args, "check")
	switch check {
	case "", domain.CheckMapping, domain.CheckTables, domain.CheckCrawl:
	default:
		return nil, fmt.Errorf("unknown check %q", check)
	}

	runs, err := s.checks.ListRuns(check, intArg(args, "limit", defaultRunLimit))
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []domain.CheckRun{}
	}
	return jsonResult(runs)
}

func boolPtr(b bool) *bool { return &b }
