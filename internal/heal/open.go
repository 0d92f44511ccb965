// internal/heal/open.go
package heal

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-locator/internal/config"
)

// Open builds the store selected by cfg. healedDir is used by the file store.
// The returned function releases the store's resources and is never nil.
func Open(ctx context.Context, cfg config.HealStoreConfig, healedDir string, logger *zap.Logger) (Store, func(), error) {
	noop := func() {}
	switch cfg.Type {
	case config.HealStoreFile, "":
		return NewFileStore(healedDir, logger), noop, nil
	case config.HealStoreNone:
		return Disabled{}, noop, nil
	case config.HealStorePostgres:
		s, closeFn, err := OpenPostgres(ctx, cfg.PostgresURL, logger)
		if err != nil {
			return nil, noop, err
		}
		return s, closeFn, nil
	case config.HealStoreSQLite:
		s, err := OpenSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, noop, err
		}
		return s, func() {
			if err := s.Close(); err != nil && logger != nil {
				logger.Warn("Failed to close sqlite heal store.", zap.Error(err))
			}
		}, nil
	default:
		return nil, noop, fmt.Errorf("unknown heal store type %q", cfg.Type)
	}
}
