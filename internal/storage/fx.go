package storage

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/quickinvoice/internal/config"
	"github.com/smallbiznis/quickinvoice/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("storage",
	fx.Provide(NewKV),
	fx.Provide(NewNode),
	fx.Provide(NewStore),
)

// NewKV opens the backend selected by the configuration and closes it on
// shutdown.
func NewKV(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (KV, error) {
	kv, err := OpenKV(cfg, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return kv.Close()
		},
	})
	log.Info("storage backend ready",
		zap.String("backend", cfg.StorageBackend),
		zap.String("namespace", cfg.StorageNamespace),
	)
	return kv, nil
}

// OpenKV opens a KV without lifecycle management. The caller closes it.
func OpenKV(cfg config.Config, log *zap.Logger) (KV, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return NewMemoryKV(cfg.StorageMaxBytes), nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedisKV(client), nil
	case config.BackendSQLite, config.BackendPostgres, config.BackendMySQL:
		conn, err := db.Open(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.StorageBackend, err)
		}
		return NewSQLKV(conn)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func NewNode(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
