// Package check runs the pipeline smoke checks and renders their reports.
package check

import (
	"context"
	"io"

	"pipecheck/internal/dbclient"
	"pipecheck/internal/domain"
	"pipecheck/internal/schema"
)

// Result is implemented by every check outcome.
type Result interface {
	Status() domain.Outcome
	Summary() string
	Report(w io.Writer)
}

// Store is the part of a connector the table check needs.
type Store interface {
	Select(ctx context.Context, table string, columns []string, limit int) (*dbclient.QueryPage, error)
}

var (
	_ Result = (*schema.Result)(nil)
	_ Result = (*TablesResult)(nil)
	_ Result = (*CrawlResult)(nil)
	_ Store  = (dbclient.Connector)(nil)
)

// Mapping validates m against the listings table.
func Mapping(ctx context.Context, m schema.Mapping, table schema.Prober) (*schema.Result, error) {
	return schema.ValidateMapping(ctx, m.Direct, m.Overflow, table)
}
