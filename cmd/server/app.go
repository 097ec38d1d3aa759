package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/suggestion-api/internal/analysis"
	"github.com/phrazzld/suggestion-api/internal/api"
	"github.com/phrazzld/suggestion-api/internal/config"
	"github.com/phrazzld/suggestion-api/internal/generation"
	"github.com/phrazzld/suggestion-api/internal/platform/gemini"
	"github.com/phrazzld/suggestion-api/internal/platform/postgres"
	"github.com/phrazzld/suggestion-api/internal/platform/redis"
	"github.com/phrazzld/suggestion-api/internal/queue"
	"github.com/phrazzld/suggestion-api/internal/redact"
	"github.com/phrazzld/suggestion-api/internal/scheduler"
	"github.com/phrazzld/suggestion-api/internal/service"
	"github.com/phrazzld/suggestion-api/internal/service/auth"
	"github.com/phrazzld/suggestion-api/internal/task"
	goredis "github.com/redis/go-redis/v9"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	redis  *goredis.Client

	// Used by the router
	jwtService        auth.JWTService
	suggestionService service.SuggestionService
	queueService      service.QueueControlService
	dispatchTrigger   api.DispatchTrigger
	jobQueue          api.JobEnqueuer
	healthChecker     api.HealthChecker

	// Background workers; nil when disabled
	runner     *task.Runner
	dispatcher *scheduler.Dispatcher
}

// newApplication wires stores, generation, the job queue and the services
// around an open database and Redis client.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
	redisClient *goredis.Client,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	suggestionStore := postgres.NewPostgresSuggestionStore(db, logger)
	activityStore := postgres.NewPostgresActivityStore(db, logger)
	directory := postgres.NewPostgresDirectory(db, logger)
	history := postgres.NewPostgresHistoryReader(db, logger)

	textGenerator, err := gemini.NewTextGenerator(ctx, logger.With("component", "llm_generator"), cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM generator: %w", err)
	}
	logger.Info("LLM generator initialized successfully", slog.String("model", cfg.LLM.ModelName))

	analyzer, err := analysis.NewAnalyzer(history, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create pattern analyzer: %w", err)
	}
	recommender, err := generation.NewRecommender(textGenerator, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create recommender: %w", err)
	}

	processor, err := task.NewProcessor(db, suggestionStore, directory, analyzer, recommender, task.ProcessorConfig{
		SuggestionsPerUser: cfg.Suggestions.PerUser,
		RetentionDays:      cfg.Suggestions.RetentionDays,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create job processor: %w", err)
	}

	jobs, err := queue.New(cfg.Queue.Name, redisClient, logger, queue.Options{
		Retry: queue.ExponentialBackoff{
			Attempts:  cfg.Queue.Attempts,
			BaseDelay: cfg.Queue.BackoffBase,
		},
		LeaseDuration:    cfg.Queue.LeaseDuration,
		MaxStalledCount:  cfg.Queue.MaxStalledCount,
		RemoveOnComplete: cfg.Queue.RemoveOnComplete,
		RemoveOnFail:     cfg.Queue.RemoveOnFail,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create job queue: %w", err)
	}
	app.jobQueue = jobs

	if cfg.Queue.WorkerEnabled {
		app.runner = task.NewRunner(jobs, processor, task.RunnerConfig{
			WorkerCount:          cfg.Queue.WorkerCount,
			PollInterval:         cfg.Queue.PollInterval,
			JobTimeout:           cfg.Queue.JobTimeout,
			StalledCheckInterval: cfg.Queue.StalledCheckInterval,
		}, logger)
	}

	dispatcher, err := scheduler.NewDispatcher(jobs, directory, redis.NewLocker(redisClient, logger), scheduler.Config{
		DailySchedule:              cfg.Dispatcher.DailySchedule,
		WeeklySchedule:             cfg.Dispatcher.WeeklySchedule,
		Location:                   cfg.Dispatcher.Location(),
		PageSize:                   cfg.Dispatcher.PageSize,
		PageDelay:                  cfg.Dispatcher.PageDelay,
		LockTTL:                    cfg.Dispatcher.LockTTL,
		MaxConsecutivePageFailures: cfg.Dispatcher.MaxConsecutivePageFailures,
		WeeklyCleanupDays:          cfg.Suggestions.WeeklyCleanupDays,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	app.dispatchTrigger = dispatcher
	if cfg.Dispatcher.Enabled {
		app.dispatcher = dispatcher
	}

	app.suggestionService, err = service.NewSuggestionService(db, suggestionStore, activityStore, processor,
		service.SuggestionServiceConfig{
			DailyLimit: cfg.Suggestions.DailyLimit,
			Location:   cfg.Dispatcher.Location(),
		}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create suggestion service: %w", err)
	}

	app.queueService, err = service.NewQueueControlService([]service.ControlledQueue{jobs}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue control service: %w", err)
	}

	app.healthChecker = dependencyHealth{processor: processor, redis: redisClient, logger: logger}

	logger.Info("Application initialized successfully",
		slog.Bool("worker_enabled", app.runner != nil),
		slog.Bool("dispatcher_enabled", app.dispatcher != nil))
	return app, nil
}

// Run starts the background workers and serves HTTP until shutdown.
func (app *application) Run(ctx context.Context) error {
	if app.runner != nil {
		if err := app.runner.Start(); err != nil {
			app.cleanup(ctx)
			return fmt.Errorf("failed to start job runner: %w", err)
		}
	}
	if app.dispatcher != nil {
		if err := app.dispatcher.Start(ctx); err != nil {
			app.cleanup(ctx)
			return fmt.Errorf("failed to start dispatcher: %w", err)
		}
	}

	router := app.setupRouter()
	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup stops the workers, then closes Redis and the database.
func (app *application) cleanup(ctx context.Context) {
	if app.dispatcher != nil {
		app.dispatcher.Stop(ctx)
	}
	if app.runner != nil {
		app.runner.Stop()
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("Error closing redis connection", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}

// dependencyHealth is healthy when both the database and Redis answer.
type dependencyHealth struct {
	processor api.HealthChecker
	redis     goredis.Cmdable
	logger    *slog.Logger
}

func (h dependencyHealth) HealthCheck(ctx context.Context) bool {
	if !h.processor.HealthCheck(ctx) {
		return false
	}
	if err := h.redis.Ping(ctx).Err(); err != nil {
		h.logger.Error("redis health check failed", slog.String("error", redact.Error(err)))
		return false
	}
	return true
}

// shutdownTimeout bounds graceful shutdown.
func (app *application) shutdownTimeout() time.Duration {
	if app.config.Server.ShutdownTimeout > 0 {
		return app.config.Server.ShutdownTimeout
	}
	return 10 * time.Second
}
