package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/phrazzld/suggestion-api/internal/config"
	goredis "github.com/redis/go-redis/v9"
)

// Seams for tests.
var (
	newRedisClient = goredis.NewClient
	redisPing      = func(ctx context.Context, client *goredis.Client) error {
		return client.Ping(ctx).Err()
	}
)

// NewClient opens a pooled client and verifies the connection.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	client := newRedisClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 3,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := redisPing(pingCtx, client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}
