package mssql

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "sqlserver",
			DisplayName: "Microsoft SQL Server",
			Description: "Introspect SQL Server 2019+, Azure SQL Database",
		},
		Factory: func(ctx context.Context, cfg datasource.Config, logger *zap.Logger) (datasource.SchemaDiscoverer, error) {
			return Open(ctx, cfg.DSN, cfg.Schema, logger)
		},
	})
}
