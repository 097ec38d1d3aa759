package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/suggestion-api/internal/domain"
	"github.com/phrazzld/suggestion-api/internal/platform/logger"
	"github.com/phrazzld/suggestion-api/internal/store"
)

const dateLayout = "2006-01-02"

const suggestionColumns = `id, user_id, activity_name, activity_type, content, reasoning,
	confidence_score, suggested_date, is_used, used_at, created_at, updated_at`

// dateParam renders the calendar day of t so the database never applies a
// timezone conversion to it.
func dateParam(t time.Time) string {
	return t.Format(dateLayout)
}

// PostgresSuggestionStore implements store.SuggestionStore.
type PostgresSuggestionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSuggestionStore creates a suggestion store over db, which may be
// a connection pool or a transaction.
func NewPostgresSuggestionStore(db store.DBTX, logger *slog.Logger) *PostgresSuggestionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSuggestionStore{
		db:     db,
		logger: logger.With(slog.String("component", "suggestion_store")),
	}
}

var _ store.SuggestionStore = (*PostgresSuggestionStore)(nil)

// WithTx implements store.SuggestionStore.WithTx.
func (s *PostgresSuggestionStore) WithTx(tx *sql.Tx) store.SuggestionStore {
	return &PostgresSuggestionStore{db: tx, logger: s.logger}
}

// CreateMany implements store.SuggestionStore.CreateMany with a single
// multi-row INSERT.
func (s *PostgresSuggestionStore) CreateMany(ctx context.Context, suggestions []*domain.Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	const columnsPerRow = 12
	var sb strings.Builder
	sb.WriteString(`INSERT INTO suggestions (` + suggestionColumns + `) VALUES `)
	args := make([]any, 0, len(suggestions)*columnsPerRow)

	for i, sg := range suggestions {
		if err := sg.Validate(); err != nil {
			log.Warn("suggestion validation failed during create",
				slog.String("error", err.Error()),
				slog.String("suggestion_id", sg.ID.String()))
			return err
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * columnsPerRow
		sb.WriteString("(")
		for c := 1; c <= columnsPerRow; c++ {
			if c > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", base+c)
			if c == 8 {
				sb.WriteString("::date")
			}
		}
		sb.WriteString(")")

		args = append(args,
			sg.ID, sg.UserID, sg.ActivityName, sg.ActivityType, sg.Content, sg.Reasoning,
			sg.ConfidenceScore, dateParam(sg.SuggestedDate), sg.IsUsed, sg.UsedAt,
			sg.CreatedAt, sg.UpdatedAt,
		)
	}

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		log.Error("failed to create suggestions",
			slog.String("error", err.Error()),
			slog.Int("count", len(suggestions)))
		return MapError(err)
	}

	log.Debug("suggestions created", slog.Int("count", len(suggestions)))
	return nil
}

// GetByID implements store.SuggestionStore.GetByID.
func (s *PostgresSuggestionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Suggestion, error) {
	return s.getByID(ctx, id, false)
}

// GetByIDForUpdate implements store.SuggestionStore.GetByIDForUpdate.
func (s *PostgresSuggestionStore) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Suggestion, error) {
	return s.getByID(ctx, id, true)
}

func (s *PostgresSuggestionStore) getByID(ctx context.Context, id uuid.UUID, lock bool) (*domain.Suggestion, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + suggestionColumns + ` FROM suggestions WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	sg, err := scanSuggestion(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("suggestion not found", slog.String("suggestion_id", id.String()))
			return nil, store.ErrSuggestionNotFound
		}
		log.Error("failed to get suggestion",
			slog.String("error", err.Error()),
			slog.String("suggestion_id", id.String()))
		return nil, MapError(err)
	}
	return sg, nil
}

// ListUnusedForDate implements store.SuggestionStore.ListUnusedForDate.
func (s *PostgresSuggestionStore) ListUnusedForDate(
	ctx context.Context,
	userID uuid.UUID,
	date time.Time,
) ([]*domain.Suggestion, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + suggestionColumns + ` FROM suggestions
		WHERE user_id = $1 AND suggested_date = $2::date AND is_used = false
		ORDER BY confidence_score DESC, created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, userID, dateParam(date))
	if err != nil {
		log.Error("failed to list suggestions",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	suggestions := make([]*domain.Suggestion, 0)
	for rows.Next() {
		sg, err := scanSuggestion(rows)
		if err != nil {
			return nil, MapError(err)
		}
		suggestions = append(suggestions, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return suggestions, nil
}

// CountForDate implements store.SuggestionStore.CountForDate.
func (s *PostgresSuggestionStore) CountForDate(ctx context.Context, userID uuid.UUID, date time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM suggestions WHERE user_id = $1 AND suggested_date = $2::date`,
		userID, dateParam(date),
	).Scan(&count)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to count suggestions",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return 0, MapError(err)
	}
	return count, nil
}

// DeleteForDate implements store.SuggestionStore.DeleteForDate.
func (s *PostgresSuggestionStore) DeleteForDate(ctx context.Context, userID uuid.UUID, date time.Time) (int64, error) {
	return s.deleteWhere(ctx, "delete_for_date",
		`DELETE FROM suggestions WHERE user_id = $1 AND suggested_date = $2::date`,
		userID, dateParam(date))
}

// DeleteUnusedForDate implements store.SuggestionStore.DeleteUnusedForDate.
func (s *PostgresSuggestionStore) DeleteUnusedForDate(
	ctx context.Context,
	userID uuid.UUID,
	date time.Time,
) (int64, error) {
	return s.deleteWhere(ctx, "delete_unused_for_date",
		`DELETE FROM suggestions WHERE user_id = $1 AND suggested_date = $2::date AND is_used = false`,
		userID, dateParam(date))
}

// DeleteUnusedBefore implements store.SuggestionStore.DeleteUnusedBefore.
func (s *PostgresSuggestionStore) DeleteUnusedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.deleteWhere(ctx, "delete_unused_before",
		`DELETE FROM suggestions WHERE is_used = false AND suggested_date < $1::date`,
		dateParam(cutoff))
}

// Delete implements store.SuggestionStore.Delete.
func (s *PostgresSuggestionStore) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := s.deleteWhere(ctx, "delete", `DELETE FROM suggestions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrSuggestionNotFound
	}
	return nil
}

func (s *PostgresSuggestionStore) deleteWhere(ctx context.Context, op, query string, args ...any) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to delete suggestions",
			slog.String("operation", op),
			slog.String("error", err.Error()))
		return 0, MapError(err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to read affected rows",
			slog.String("operation", op),
			slog.String("error", err.Error()))
		return 0, err
	}

	log.Debug("suggestions deleted", slog.String("operation", op), slog.Int64("count", n))
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSuggestion(row rowScanner) (*domain.Suggestion, error) {
	var (
		sg     domain.Suggestion
		usedAt sql.NullTime
	)
	err := row.Scan(
		&sg.ID,
		&sg.UserID,
		&sg.ActivityName,
		&sg.ActivityType,
		&sg.Content,
		&sg.Reasoning,
		&sg.ConfidenceScore,
		&sg.SuggestedDate,
		&sg.IsUsed,
		&usedAt,
		&sg.CreatedAt,
		&sg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		t := usedAt.Time
		sg.UsedAt = &t
	}
	return &sg, nil
}
