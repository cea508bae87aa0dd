package app

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/kennedymwaniki/resource-explorer/internal/config"
	"github.com/kennedymwaniki/resource-explorer/internal/kvstore"
)

// openBackend opens the storage backend named by cfg.Storage.
func openBackend(ctx context.Context, cfg config.Config, clk clock.Clock, logger *zap.Logger) (kvstore.Backend, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return kvstore.NewMemory(), nil
	case config.StorageSQLite:
		db, err := kvstore.OpenSQLite(cfg.DBPath(), kvstore.SQLiteOptions{
			PollEvery: cfg.WatchInterval,
			Clock:     clk,
			Logger:    logger.Named("sqlite"),
		})
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.StorageRedis:
		client, err := kvstore.NewRedisClient(ctx, cfg.RedisURL, logger)
		if err != nil {
			return nil, err
		}
		return kvstore.NewRedis(client, cfg.Namespace, logger.Named("redis")), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
