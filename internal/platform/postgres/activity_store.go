package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/suggestion-api/internal/domain"
	"github.com/phrazzld/suggestion-api/internal/platform/logger"
	"github.com/phrazzld/suggestion-api/internal/store"
)

// PostgresActivityStore implements store.ActivityStore.
type PostgresActivityStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresActivityStore creates an activity store over db.
func NewPostgresActivityStore(db store.DBTX, logger *slog.Logger) *PostgresActivityStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresActivityStore{
		db:     db,
		logger: logger.With(slog.String("component", "activity_store")),
	}
}

var _ store.ActivityStore = (*PostgresActivityStore)(nil)

// WithTx implements store.ActivityStore.WithTx.
func (s *PostgresActivityStore) WithTx(tx *sql.Tx) store.ActivityStore {
	return &PostgresActivityStore{db: tx, logger: s.logger}
}

// Create implements store.ActivityStore.Create.
// Returns store.ErrInvalidEntity if the user does not exist.
func (s *PostgresActivityStore) Create(ctx context.Context, a *domain.Activity) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activities (id, user_id, name, activity_type, content, status,
			scheduled_for, source_suggestion_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8, $9, $10)`,
		a.ID, a.UserID, a.Name, a.ActivityType, a.Content, string(a.Status),
		dateParam(a.ScheduledFor), a.SourceSuggestionID, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			log.Warn("foreign key violation during activity creation",
				slog.String("activity_id", a.ID.String()),
				slog.String("user_id", a.UserID.String()))
			return fmt.Errorf("%w: user with ID %s not found", store.ErrInvalidEntity, a.UserID)
		}
		log.Error("failed to create activity",
			slog.String("error", err.Error()),
			slog.String("activity_id", a.ID.String()))
		return MapError(err)
	}

	log.Info("activity created",
		slog.String("activity_id", a.ID.String()),
		slog.String("user_id", a.UserID.String()))
	return nil
}
