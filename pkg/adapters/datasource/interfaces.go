package datasource

import "context"

// SchemaDiscoverer reads table, column and foreign key metadata from a live
// database. Each implementation owns its connection and must be closed when done.
type SchemaDiscoverer interface {
	// DiscoverTables returns all user tables (excludes system schemas).
	// When the discoverer was opened for one schema, only its tables are returned.
	DiscoverTables(ctx context.Context) ([]TableMetadata, error)

	// DiscoverColumns returns columns for a specific table in ordinal order.
	DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]ColumnMetadata, error)

	// DiscoverForeignKeys returns all foreign key relationships.
	DiscoverForeignKeys(ctx context.Context) ([]ForeignKeyMetadata, error)

	// SupportsForeignKeys returns true if the database supports FK discovery.
	SupportsForeignKeys() bool

	// DefaultSchema is the schema whose tables are addressed without a
	// qualifier ("public", "dbo", "main").
	DefaultSchema() string

	// Close releases the database connection.
	Close() error
}

// Config selects and addresses a live datasource.
type Config struct {
	Type   string // "postgres", "sqlserver", "sqlite"
	DSN    string
	Schema string // optional: restrict discovery to one schema
}
