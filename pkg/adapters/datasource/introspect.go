package datasource

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// Introspect opens a discoverer for cfg, reads the schema and closes it again.
func Introspect(ctx context.Context, cfg Config, databaseName string, logger *zap.Logger) (*models.SchemaModel, error) {
	d, err := NewSchemaDiscoverer(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	return BuildSchemaModel(ctx, d, databaseName)
}

// BuildSchemaModel assembles a SchemaModel from discovered metadata. Tables
// outside the discoverer's default schema are named schema.table. Foreign
// keys are kept only when both ends were discovered.
func BuildSchemaModel(ctx context.Context, d SchemaDiscoverer, databaseName string) (*models.SchemaModel, error) {
	tables, err := d.DiscoverTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover tables: %w", err)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables found")
	}

	schema := &models.SchemaModel{DatabaseName: databaseName}
	names := make(map[string]string, len(tables))

	for _, t := range tables {
		cols, err := d.DiscoverColumns(ctx, t.SchemaName, t.TableName)
		if err != nil {
			return nil, fmt.Errorf("discover columns of %s.%s: %w", t.SchemaName, t.TableName, err)
		}

		name := modelTableName(d.DefaultSchema(), t.SchemaName, t.TableName)
		names[tableKey(t.SchemaName, t.TableName)] = name

		table := models.SchemaTable{
			Name:        name,
			Description: t.Description,
			Columns:     make([]models.SchemaColumn, 0, len(cols)),
		}
		for _, c := range cols {
			table.Columns = append(table.Columns, models.SchemaColumn{
				Name:         c.ColumnName,
				DataType:     strings.ToLower(c.DataType),
				Description:  c.Description,
				IsPrimaryKey: c.IsPrimaryKey,
			})
		}
		schema.Tables = append(schema.Tables, table)
	}

	if d.SupportsForeignKeys() {
		fks, err := d.DiscoverForeignKeys(ctx)
		if err != nil {
			return nil, fmt.Errorf("discover foreign keys: %w", err)
		}
		for _, fk := range fks {
			from, okFrom := names[tableKey(fk.SourceSchema, fk.SourceTable)]
			to, okTo := names[tableKey(fk.TargetSchema, fk.TargetTable)]
			if !okFrom || !okTo {
				continue
			}
			schema.Relationships = append(schema.Relationships, models.SchemaRelationship{
				FromTable:  from,
				FromColumn: fk.SourceColumn,
				ToTable:    to,
				ToColumn:   fk.TargetColumn,
			})
		}
	}

	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("introspected schema is invalid: %w", err)
	}
	return schema, nil
}

func modelTableName(defaultSchema, schemaName, tableName string) string {
	if schemaName == "" || strings.EqualFold(schemaName, defaultSchema) {
		return tableName
	}
	return schemaName + "." + tableName
}

func tableKey(schemaName, tableName string) string {
	return strings.ToLower(schemaName) + "\x00" + strings.ToLower(tableName)
}
