package mcpserver

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"

	"pipecheck/internal/schema"
)

const (
	mappingURI = "pipecheck://config/mapping"
	tablesURI  = "pipecheck://config/tables"
)

func (s *Server) registerResources() {
	s.mcp.AddResource(mcp.NewResource(
		mappingURI,
		"Listing field mapping",
		mcp.WithResourceDescription("Direct field → column pairs in order, and the fields stored under metadata"),
		mcp.WithMIMEType("application/json"),
	), s.handleMappingResource)

	s.mcp.AddResource(mcp.NewResource(
		tablesURI,
		"Expected tables",
		mcp.WithResourceDescription("Tables and columns the table check probes"),
		mcp.WithMIMEType("application/json"),
	), s.handleTablesResource)
}

func (s *Server) handleMappingResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	m := s.checks.Config().Mapping
	type mappingView struct {
		Direct    []schema.FieldPair `json:"direct"`
		Overflow  []string           `json:"overflow"`
		Probed    []string           `json:"probed"`
		Container string             `json:"container"`
	}
	return jsonResource(mappingURI, mappingView{
		Direct:    m.Direct,
		Overflow:  m.Overflow,
		Probed:    schema.ProbeColumns(m.Direct),
		Container: schema.MetadataColumn,
	})
}

func (s *Server) handleTablesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(tablesURI, s.checks.Config().Tables)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
