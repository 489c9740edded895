package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kamillle/rag-sample/pkg/config"
	"github.com/kamillle/rag-sample/pkg/index"
)

// Open returns the index store selected by storage.driver. The returned
// close function is never nil.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (index.Store, func(), error) {
	switch cfg.Storage.Driver {
	case config.StorageFile, "":
		logger.Info("using file storage", zap.String("dir", cfg.Storage.Dir))
		return index.NewFileStore(cfg.Storage.Dir), func() {}, nil
	case config.StoragePostgres:
		s, err := NewPostgresStore(ctx, PostgresConfig{
			ConnString: cfg.Storage.DatabaseURL,
			TableName:  cfg.Storage.TableName,
			VectorDim:  cfg.Embedder.Dimension,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres storage: %w", err)
		}
		logger.Info("using postgres storage", zap.String("table", cfg.Storage.TableName))
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}
}
