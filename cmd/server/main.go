// Package main implements the entry point for the suggestion API server,
// which generates daily activity suggestions for users and runs the queue
// workers and schedules that produce them.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"

	"github.com/phrazzld/suggestion-api/internal/platform/postgres"
	"github.com/phrazzld/suggestion-api/internal/platform/redis"
)

func main() {
	migrateOnly := flag.Bool("migrate", false, "apply pending database migrations and exit")
	flag.Parse()

	if err := run(context.Background(), *migrateOnly); err != nil {
		log.Fatalf("suggestion-api: %v", err)
	}
}

// run loads configuration, opens the database and Redis connections, and
// serves until a shutdown signal arrives.
func run(ctx context.Context, migrateOnly bool) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	logger, err := setupAppLogger(cfg)
	if err != nil {
		return err
	}

	db, err := setupAppDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if migrateOnly || cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db, logger); err != nil {
			_ = db.Close()
			return err
		}
	}
	if migrateOnly {
		return db.Close()
	}

	redisClient, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("Redis connection established", slog.String("addr", cfg.Redis.Addr))

	app, err := newApplication(ctx, cfg, logger, db, redisClient)
	if err != nil {
		_ = redisClient.Close()
		_ = db.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
