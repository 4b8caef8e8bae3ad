package dbclient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// sqlConnector is the shared implementation for Postgres, MySQL and SQLite.
type sqlConnector struct {
	driverName string
	db         *sql.DB
}

// newSQLConnector creates a generic SQL connector.
func newSQLConnector(driverName, dsn string) (*sqlConnector, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	// A check issues a handful of statements; keep the pool small.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &sqlConnector{driverName: driverName, db: db}, nil
}

func (c *sqlConnector) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return c.db.PingContext(ctx)
}

// quoteIdent quotes a table or column name for the connector's dialect.
// SQLite uses backticks because a double-quoted unknown identifier silently
// degrades to a string literal there.
func (c *sqlConnector) quoteIdent(name string) string {
	switch c.driverName {
	case "postgres":
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	default:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
}

// buildSelect renders SELECT cols FROM table LIMIT n.
func (c *sqlConnector) buildSelect(table string, columns []string, limit int) string {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = c.quoteIdent(col)
	}
	return fmt.Sprintf("SELECT %s FROM %s LIMIT %d",
		strings.Join(quoted, ", "), c.quoteIdent(table), limit)
}

func (c *sqlConnector) Select(ctx context.Context, table string, columns []string, limit int) (*QueryPage, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, c.buildSelect(table, columns, limit))
	if err != nil {
		return nil, c.classify(table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	page := &QueryPage{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for j := range values {
			ptrs[j] = &values[j]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make([]any, len(cols))
		for j, v := range values {
			row[j] = formatValue(v)
		}
		page.Rows = append(page.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, c.classify(table, err)
	}
	return page, nil
}

// classify turns driver-level rejections into a QueryError and wraps
// everything else (network, context) as a plain error.
func (c *sqlConnector) classify(table string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &QueryError{
			Table:   table,
			Code:    string(pqErr.Code),
			Message: err.Error(),
			Details: pqErr.Detail,
			Hint:    pqErr.Hint,
			Err:     err,
		}
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return &QueryError{
			Table:   table,
			Code:    strconv.Itoa(int(myErr.Number)),
			Message: err.Error(),
			Err:     err,
		}
	}
	if c.driverName == "sqlite" && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		// modernc reports schema errors as plain *sqlite.Error values.
		return &QueryError{Table: table, Message: err.Error(), Err: err}
	}
	return fmt.Errorf("query %s: %w", table, err)
}

// formatValue converts a database value to a displayable one.
func formatValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return val
	}
}

func (c *sqlConnector) Close() error {
	return c.db.Close()
}
