package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/adapters/datasource"
)

// DefaultSchema is the name SQLite gives the primary database.
const DefaultSchema = "main"

// SchemaDiscoverer reads a SQLite database through its PRAGMA table functions.
type SchemaDiscoverer struct {
	db      *sql.DB
	ownedDB bool
	logger  *zap.Logger
}

// Open opens the database file at path (any go-sqlite3 DSN works).
func Open(ctx context.Context, path string, logger *zap.Logger) (*SchemaDiscoverer, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// ":memory:" databases are per connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := NewSchemaDiscoverer(db, logger)
	d.ownedDB = true
	return d, nil
}

// NewSchemaDiscoverer wraps an existing connection. The caller keeps ownership of db.
func NewSchemaDiscoverer(db *sql.DB, logger *zap.Logger) *SchemaDiscoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaDiscoverer{db: db, logger: logger}
}

// DiscoverTables returns every user table. SQLite has no comments, so
// descriptions stay empty.
func (d *SchemaDiscoverer) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	names, err := d.tableNames(ctx)
	if err != nil {
		return nil, err
	}
	tables := make([]datasource.TableMetadata, 0, len(names))
	for _, name := range names {
		tables = append(tables, datasource.TableMetadata{SchemaName: DefaultSchema, TableName: name})
	}
	return tables, nil
}

func (d *SchemaDiscoverer) tableNames(ctx context.Context) ([]string, error) {
	const query = `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DiscoverColumns returns the columns of a table from pragma_table_info.
func (d *SchemaDiscoverer) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	const query = `SELECT cid, name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`

	rows, err := d.db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnMetadata
	for rows.Next() {
		var cid, notNull, pk int
		var c datasource.ColumnMetadata
		if err := rows.Scan(&cid, &c.ColumnName, &c.DataType, &notNull, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.OrdinalPosition = cid + 1
		c.IsNullable = notNull == 0
		c.IsPrimaryKey = pk > 0
		if c.DataType == "" {
			// columns declared without a type have BLOB affinity
			c.DataType = "blob"
		}
		columns = append(columns, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

// DiscoverForeignKeys walks pragma_foreign_key_list for every table. A key
// that omits the target column references the target's primary key.
func (d *SchemaDiscoverer) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	names, err := d.tableNames(ctx)
	if err != nil {
		return nil, err
	}

	var fks []datasource.ForeignKeyMetadata
	for _, table := range names {
		tableFKs, err := d.foreignKeys(ctx, table)
		if err != nil {
			return nil, err
		}
		fks = append(fks, tableFKs...)
	}
	return fks, nil
}

func (d *SchemaDiscoverer) foreignKeys(ctx context.Context, table string) ([]datasource.ForeignKeyMetadata, error) {
	const query = `SELECT id, seq, "table", "from", "to" FROM pragma_foreign_key_list(?) ORDER BY id, seq`

	rows, err := d.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys of %s: %w", table, err)
	}

	var fks []datasource.ForeignKeyMetadata
	for rows.Next() {
		var id, seq int
		var target, from string
		var to sql.NullString
		if err := rows.Scan(&id, &seq, &target, &from, &to); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		fks = append(fks, datasource.ForeignKeyMetadata{
			ConstraintName: fmt.Sprintf("%s_fk_%d", table, id),
			SourceSchema:   DefaultSchema,
			SourceTable:    table,
			SourceColumn:   from,
			TargetSchema:   DefaultSchema,
			TargetTable:    target,
			TargetColumn:   to.String,
		})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate foreign keys of %s: %w", table, err)
	}
	// single connection: close before issuing the primary key lookups
	rows.Close()

	for i := range fks {
		if fks[i].TargetColumn != "" {
			continue
		}
		pk, err := d.primaryKeyColumn(ctx, fks[i].TargetTable)
		if err != nil {
			return nil, err
		}
		fks[i].TargetColumn = pk
	}
	return fks, nil
}

func (d *SchemaDiscoverer) primaryKeyColumn(ctx context.Context, table string) (string, error) {
	cols, err := d.DiscoverColumns(ctx, DefaultSchema, table)
	if err != nil {
		return "", err
	}
	for _, c := range cols {
		if c.IsPrimaryKey {
			return c.ColumnName, nil
		}
	}
	return "", nil
}

// SupportsForeignKeys returns true; declared keys are readable even when
// enforcement is off.
func (d *SchemaDiscoverer) SupportsForeignKeys() bool {
	return true
}

// DefaultSchema returns "main".
func (d *SchemaDiscoverer) DefaultSchema() string {
	return DefaultSchema
}

// Close releases the connection if this discoverer opened it.
func (d *SchemaDiscoverer) Close() error {
	if d.ownedDB && d.db != nil {
		return d.db.Close()
	}
	return nil
}

var _ datasource.SchemaDiscoverer = (*SchemaDiscoverer)(nil)
