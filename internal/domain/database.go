package domain

// DatabaseDriver represents the type of store a check talks to.
type DatabaseDriver string

const (
	DatabaseDriverPostgREST DatabaseDriver = "postgrest" // Supabase REST gateway
	DatabaseDriverPostgres  DatabaseDriver = "postgres"
	DatabaseDriverMySQL     DatabaseDriver = "mysql"
	DatabaseDriverSQLite    DatabaseDriver = "sqlite"
	DatabaseDriverMongoDB   DatabaseDriver = "mongodb"
)

// Valid reports whether d is a known driver.
func (d DatabaseDriver) Valid() bool {
	switch d {
	case DatabaseDriverPostgREST, DatabaseDriverPostgres, DatabaseDriverMySQL,
		DatabaseDriverSQLite, DatabaseDriverMongoDB:
		return true
	}
	return false
}

// DatabaseConnection holds the metadata for connecting to the destination store.
// The secret (service key or password) is resolved separately through a SecretStore.
type DatabaseConnection struct {
	Driver   DatabaseDriver `json:"driver" yaml:"driver"`
	URL      string         `json:"url" yaml:"url"`           // REST base URL, DSN or mongodb:// URI
	Host     string         `json:"host" yaml:"host"`         // used when URL is empty
	Port     int            `json:"port" yaml:"port"`         // 0 selects the driver default
	Database string         `json:"database" yaml:"database"` // db name; file path for sqlite
	Username string         `json:"username" yaml:"username"`
	SSLMode  string         `json:"sslMode" yaml:"ssl_mode"`
}

// TableSpec names a destination table and the columns it must expose.
type TableSpec struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
}

// DefaultTables are the tables the pipeline writes to.
func DefaultTables() []TableSpec {
	return []TableSpec{
		{Name: "sources", Columns: []string{"source_id", "summary", "total_word_count"}},
		{Name: "crawled_pages", Columns: []string{"id", "url", "chunk_number", "content", "metadata", "source_id", "embedding"}},
		{Name: "business_listings", Columns: []string{"listing_id", "company_name", "url", "asking_price", "revenue_estimate", "source_id"}},
		{Name: "buyer_profiles", Columns: []string{"buyer_id", "name", "buyer_type", "focus_industries"}},
	}
}
