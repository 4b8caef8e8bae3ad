package dbclient

import (
	"strings"

	"pipecheck/internal/domain"

	_ "modernc.org/sqlite"
)

// buildSQLiteDSN points at a local SQLite file, mostly useful for dry runs
// against a copy of the schema.
func buildSQLiteDSN(conn *domain.DatabaseConnection) string {
	path := conn.URL
	if path == "" {
		path = conn.Database
	}
	path = strings.TrimPrefix(path, "sqlite://")
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)"
}
