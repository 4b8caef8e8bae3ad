package dbclient

import (
	"context"
	"fmt"

	"pipecheck/internal/domain"
)

// QueryPage is the set of rows returned by a Select.
type QueryPage struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Len returns the number of rows.
func (p *QueryPage) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Rows)
}

// QueryError is a rejection reported by the store itself, as opposed to a
// transport failure. Error returns the store's text unchanged.
type QueryError struct {
	Table   string `json:"table"`
	Status  int    `json:"status,omitempty"` // HTTP status (postgrest only)
	Code    string `json:"code,omitempty"`   // SQLSTATE, MySQL error number, PostgREST code
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
	Err     error  `json:"-"`
}

func (e *QueryError) Error() string { return e.Message }

func (e *QueryError) Unwrap() error { return e.Err }

// Connector abstracts interaction with the destination store.
type Connector interface {
	// TestConnection verifies connectivity and credentials.
	TestConnection(ctx context.Context) error

	// Select reads up to limit rows of the named columns from table.
	// A limit of 0 returns no rows but still makes the store resolve every
	// column name; an unknown column fails the whole call.
	Select(ctx context.Context, table string, columns []string, limit int) (*QueryPage, error)

	// Close releases the connection.
	Close() error
}

// NewConnector creates a Connector for the given destination.
// The secret (service key or password) is resolved separately by the caller.
func NewConnector(conn *domain.DatabaseConnection, secret string) (Connector, error) {
	switch conn.Driver {
	case domain.DatabaseDriverPostgREST:
		return newRESTConnector(conn, secret)
	case domain.DatabaseDriverPostgres:
		return newSQLConnector("postgres", buildPostgresDSN(conn, secret))
	case domain.DatabaseDriverMySQL:
		return newSQLConnector("mysql", buildMySQLDSN(conn, secret))
	case domain.DatabaseDriverSQLite:
		return newSQLConnector("sqlite", buildSQLiteDSN(conn))
	case domain.DatabaseDriverMongoDB:
		return newMongoConnector(conn, secret)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", conn.Driver)
	}
}

// Table is a handle to one table of a Connector.
type Table struct {
	conn Connector
	name string
}

// NewTable binds conn to a table name.
func NewTable(conn Connector, name string) *Table {
	return &Table{conn: conn, name: name}
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Select runs Connector.Select against this table.
func (t *Table) Select(ctx context.Context, columns []string, limit int) (*QueryPage, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("select %s: no columns requested", t.name)
	}
	if limit < 0 {
		return nil, fmt.Errorf("select %s: negative limit %d", t.name, limit)
	}
	return t.conn.Select(ctx, t.name, columns, limit)
}
