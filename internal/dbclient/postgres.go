package dbclient

import (
	"fmt"

	"pipecheck/internal/domain"

	_ "github.com/lib/pq"
)

// buildPostgresDSN constructs a Postgres connection string from a DatabaseConnection.
// A URL (postgres://...) is passed through as-is.
func buildPostgresDSN(conn *domain.DatabaseConnection, password string) string {
	if conn.URL != "" {
		return conn.URL
	}
	port := conn.Port
	if port == 0 {
		port = 5432
	}
	sslMode := conn.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		conn.Host, port, conn.Username, password, conn.Database, sslMode,
	)
}
