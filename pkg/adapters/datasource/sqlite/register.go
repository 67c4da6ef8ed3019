package sqlite

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "sqlite",
			DisplayName: "SQLite",
			Description: "Introspect a SQLite 3 database file",
		},
		Factory: func(ctx context.Context, cfg datasource.Config, logger *zap.Logger) (datasource.SchemaDiscoverer, error) {
			return Open(ctx, cfg.DSN, logger)
		},
	})
}
