// Package redis implements the persistence backend on a Redis server.
// Records are plain string values under a configurable key prefix; their
// lifecycle is owned by the cache engine, so no server-side TTL is set.
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stratacache/stratacache/pkg/types"
)

// Config configures the Redis backend.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Backend stores records in a Redis database.
type Backend struct {
	client *goredis.Client
	prefix string
	logger *zap.Logger
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}

	logger = logger.With(zap.String("component", "redis-backend"))
	logger.Info("connected to redis",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB))
	return &Backend{
		client: client,
		prefix: cfg.Prefix,
		logger: logger,
	}, nil
}

// Read returns the record for key, or types.ErrNotFound.
func (b *Backend) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, b.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("read record: %w", err)
	}
	return data, nil
}

// Write stores the record for key.
func (b *Backend) Write(ctx context.Context, key string, data []byte) error {
	if err := b.client.Set(ctx, b.prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Delete removes the record for key, or returns types.ErrNotFound.
func (b *Backend) Delete(ctx context.Context, key string) error {
	n, err := b.client.Del(ctx, b.prefix+key).Result()
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// Close releases the client connection pool.
func (b *Backend) Close() error {
	return b.client.Close()
}
