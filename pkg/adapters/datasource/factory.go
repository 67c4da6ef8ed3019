package datasource

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
)

// NewSchemaDiscoverer opens a discoverer for cfg.Type through the registry.
// An unknown type is a configuration error.
func NewSchemaDiscoverer(ctx context.Context, cfg Config, logger *zap.Logger) (SchemaDiscoverer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := GetFactory(cfg.Type)
	if factory == nil {
		return nil, fmt.Errorf("%w: unsupported datasource type: %s (not compiled in)", apperrors.ErrConfiguration, cfg.Type)
	}
	return factory(ctx, cfg, logger.Named("datasource").With(zap.String("type", cfg.Type)))
}
