package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/suggestion-api/internal/domain"
)

// SuggestionStore persists suggestion rows. Dates passed to it are
// calendar days; implementations compare them without time-of-day.
type SuggestionStore interface {
	// CreateMany inserts all suggestions. Either every row is written or the
	// call fails; callers wrap it in a transaction when combining with other writes.
	CreateMany(ctx context.Context, suggestions []*domain.Suggestion) error

	// GetByID returns ErrSuggestionNotFound when the row does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Suggestion, error)

	// GetByIDForUpdate is GetByID with a row lock held until the
	// surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Suggestion, error)

	// ListUnusedForDate returns the user's unused suggestions for date,
	// ordered by confidence score descending, then creation time.
	ListUnusedForDate(ctx context.Context, userID uuid.UUID, date time.Time) ([]*domain.Suggestion, error)

	// CountForDate counts the user's suggestions for date, used or not.
	CountForDate(ctx context.Context, userID uuid.UUID, date time.Time) (int, error)

	// DeleteForDate removes all of the user's suggestions for date.
	DeleteForDate(ctx context.Context, userID uuid.UUID, date time.Time) (int64, error)

	// DeleteUnusedForDate removes the user's unused suggestions for date.
	DeleteUnusedForDate(ctx context.Context, userID uuid.UUID, date time.Time) (int64, error)

	// DeleteUnusedBefore removes every unused suggestion dated strictly
	// before cutoff.
	DeleteUnusedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Delete removes one row. Returns ErrSuggestionNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a SuggestionStore bound to tx.
	WithTx(tx *sql.Tx) SuggestionStore
}

// ActivityStore persists real activities created from suggestions.
type ActivityStore interface {
	Create(ctx context.Context, activity *domain.Activity) error
	WithTx(tx *sql.Tx) ActivityStore
}
