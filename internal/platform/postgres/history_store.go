package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/suggestion-api/internal/domain"
	"github.com/phrazzld/suggestion-api/internal/platform/logger"
	"github.com/phrazzld/suggestion-api/internal/store"
)

// PostgresHistoryReader implements store.HistoryReader over the activities
// and activity_ratings tables. It never writes.
type PostgresHistoryReader struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresHistoryReader creates a history reader.
func NewPostgresHistoryReader(db store.DBTX, logger *slog.Logger) *PostgresHistoryReader {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresHistoryReader{
		db:     db,
		logger: logger.With(slog.String("component", "history_reader")),
	}
}

var _ store.HistoryReader = (*PostgresHistoryReader)(nil)

// ListActivities implements store.HistoryReader.ListActivities. Activities
// that were never started are placed at their creation time.
func (r *PostgresHistoryReader) ListActivities(
	ctx context.Context,
	q store.HistoryQuery,
) ([]domain.HistoricalActivity, error) {
	log := logger.FromContextOrDefault(ctx, r.logger)

	const startedAt = "COALESCE(a.started_at, a.created_at)"
	conditions := []string{"a.user_id = $1"}
	args := []any{q.UserID}

	if !q.From.IsZero() {
		args = append(args, q.From)
		conditions = append(conditions, fmt.Sprintf("%s >= $%d", startedAt, len(args)))
	}
	if !q.To.IsZero() {
		args = append(args, q.To)
		conditions = append(conditions, fmt.Sprintf("%s < $%d", startedAt, len(args)))
	}
	if q.Status != "" {
		args = append(args, string(q.Status))
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)))
	}

	query := `SELECT a.id, a.user_id, a.name, a.activity_type, a.status, ` + startedAt + `,
			a.closed_at, r.satisfaction, r.hardness
		FROM activities a
		LEFT JOIN activity_ratings r ON r.activity_id = a.id
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY ` + startedAt + ` ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query activity history",
			slog.String("error", err.Error()),
			slog.String("user_id", q.UserID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	activities := make([]domain.HistoricalActivity, 0)
	for rows.Next() {
		var (
			a            domain.HistoricalActivity
			status       string
			closedAt     sql.NullTime
			satisfaction sql.NullInt32
			hardness     sql.NullInt32
		)
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.Name, &a.ActivityType, &status, &a.StartedAt,
			&closedAt, &satisfaction, &hardness,
		); err != nil {
			return nil, MapError(err)
		}

		a.Status = domain.ActivityStatus(status)
		if closedAt.Valid {
			t := closedAt.Time
			a.ClosedAt = &t
		}
		if satisfaction.Valid && hardness.Valid {
			a.Rating = &domain.Rating{
				Satisfaction: int(satisfaction.Int32),
				Hardness:     int(hardness.Int32),
			}
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	log.Debug("activity history loaded",
		slog.String("user_id", q.UserID.String()),
		slog.Int("count", len(activities)))
	return activities, nil
}
