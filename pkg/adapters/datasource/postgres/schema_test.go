package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-datagen/pkg/adapters/datasource"
)

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestDiscoverTables(t *testing.T) {
	db, mock := newSQLMock(t)
	d := NewSchemaDiscoverer(db, "public", nil)

	mock.ExpectQuery(`FROM information_schema\.tables`).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_schema", "table_name", "description"}).
			AddRow("public", "customers", "People who place orders").
			AddRow("public", "orders", ""))

	tables, err := d.DiscoverTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []datasource.TableMetadata{
		{SchemaName: "public", TableName: "customers", Description: "People who place orders"},
		{SchemaName: "public", TableName: "orders"},
	}, tables)
	assertSQLMock(t, mock)
}

func TestDiscoverColumns(t *testing.T) {
	db, mock := newSQLMock(t)
	d := NewSchemaDiscoverer(db, "", nil)

	mock.ExpectQuery(`FROM information_schema\.columns c`).
		WithArgs("public", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "is_primary_key", "ordinal_position", "description"}).
			AddRow("id", "integer", false, true, 1, "").
			AddRow("status", "order_status", true, false, 2, "pending, shipped or cancelled"))

	cols, err := d.DiscoverColumns(context.Background(), "public", "orders")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.True(t, cols[0].IsPrimaryKey)
	assert.False(t, cols[0].IsNullable)
	assert.Equal(t, "order_status", cols[1].DataType)
	assert.Equal(t, "pending, shipped or cancelled", cols[1].Description)
	assertSQLMock(t, mock)
}

func TestDiscoverForeignKeys(t *testing.T) {
	db, mock := newSQLMock(t)
	d := NewSchemaDiscoverer(db, "", nil)

	mock.ExpectQuery(`tc\.constraint_type = 'FOREIGN KEY'`).
		WillReturnRows(sqlmock.NewRows([]string{"constraint_name", "source_schema", "source_table", "source_column", "target_schema", "target_table", "target_column"}).
			AddRow("orders_customer_id_fkey", "public", "orders", "customer_id", "public", "customers", "id"))

	fks, err := d.DiscoverForeignKeys(context.Background())
	require.NoError(t, err)
	require.Len(t, fks, 1)
	assert.Equal(t, "customers", fks[0].TargetTable)
	assertSQLMock(t, mock)
}

func TestDiscoverTables_QueryError(t *testing.T) {
	db, mock := newSQLMock(t)
	d := NewSchemaDiscoverer(db, "", nil)

	mock.ExpectQuery(`FROM information_schema\.tables`).
		WithArgs("").
		WillReturnError(errors.New("permission denied for schema public"))

	_, err := d.DiscoverTables(context.Background())
	assert.ErrorContains(t, err, "query tables: permission denied")
	assertSQLMock(t, mock)
}

func TestBuildSchemaModelFromPostgres(t *testing.T) {
	db, mock := newSQLMock(t)
	d := NewSchemaDiscoverer(db, "", nil)

	mock.ExpectQuery(`FROM information_schema\.tables`).
		WillReturnRows(sqlmock.NewRows([]string{"table_schema", "table_name", "description"}).
			AddRow("public", "customers", "").
			AddRow("sales", "orders", ""))
	mock.ExpectQuery(`FROM information_schema\.columns c`).
		WithArgs("public", "customers").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "is_primary_key", "ordinal_position", "description"}).
			AddRow("id", "integer", false, true, 1, ""))
	mock.ExpectQuery(`FROM information_schema\.columns c`).
		WithArgs("sales", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "is_primary_key", "ordinal_position", "description"}).
			AddRow("id", "integer", false, true, 1, "").
			AddRow("customer_id", "integer", true, false, 2, ""))
	mock.ExpectQuery(`tc\.constraint_type = 'FOREIGN KEY'`).
		WillReturnRows(sqlmock.NewRows([]string{"constraint_name", "source_schema", "source_table", "source_column", "target_schema", "target_table", "target_column"}).
			AddRow("fk", "sales", "orders", "customer_id", "public", "customers", "id"))

	schema, err := datasource.BuildSchemaModel(context.Background(), d, "shop")
	require.NoError(t, err)
	assert.Equal(t, []string{"customers", "sales.orders"}, schema.TableNames())
	require.Len(t, schema.Relationships, 1)
	assert.Equal(t, "sales.orders", schema.Relationships[0].FromTable)
	assertSQLMock(t, mock)
}

func TestRegistered(t *testing.T) {
	assert.True(t, datasource.IsRegistered("postgres"))
}

func TestCloseLeavesBorrowedConnectionOpen(t *testing.T) {
	db, _ := newSQLMock(t)
	d := NewSchemaDiscoverer(db, "", nil)
	require.NoError(t, d.Close())

	assert.NoError(t, db.PingContext(context.Background()))
}
