package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/suggestion-api/internal/domain"
	"github.com/phrazzld/suggestion-api/internal/store"
)

// PostgresDirectory implements store.UserDirectory and
// store.ActivityTypeCatalog.
type PostgresDirectory struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresDirectory creates a directory over db.
func NewPostgresDirectory(db store.DBTX, logger *slog.Logger) *PostgresDirectory {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresDirectory{
		db:     db,
		logger: logger.With(slog.String("component", "directory")),
	}
}

var (
	_ store.UserDirectory       = (*PostgresDirectory)(nil)
	_ store.ActivityTypeCatalog = (*PostgresDirectory)(nil)
)

// ListUsers implements store.UserDirectory.ListUsers. Soft-deleted users are
// skipped; ordering is stable so consecutive pages never overlap.
func (d *PostgresDirectory) ListUsers(ctx context.Context, page, pageSize int) (store.UserPage, error) {
	if page < 1 || pageSize < 1 {
		return store.UserPage{}, fmt.Errorf("%w: page and page size must be positive", domain.ErrValidation)
	}

	var total int
	if err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`,
	).Scan(&total); err != nil {
		d.logger.Error("failed to count users", slog.String("error", err.Error()))
		return store.UserPage{}, MapError(err)
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id FROM users WHERE deleted_at IS NULL ORDER BY created_at ASC, id ASC LIMIT $1 OFFSET $2`,
		pageSize, (page-1)*pageSize,
	)
	if err != nil {
		d.logger.Error("failed to list users",
			slog.String("error", err.Error()),
			slog.Int("page", page))
		return store.UserPage{}, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	ids := make([]uuid.UUID, 0, pageSize)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return store.UserPage{}, MapError(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return store.UserPage{}, MapError(err)
	}

	return store.UserPage{UserIDs: ids, Total: total}, nil
}

// ListTypes implements store.ActivityTypeCatalog.ListTypes.
func (d *PostgresDirectory) ListTypes(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT name FROM activity_types WHERE is_active = true ORDER BY sort_order ASC, name ASC`)
	if err != nil {
		d.logger.Error("failed to list activity types", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	types := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, MapError(err)
		}
		types = append(types, name)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return types, nil
}
