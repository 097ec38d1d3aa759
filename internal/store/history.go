package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/suggestion-api/internal/domain"
)

// HistoryQuery selects a user's past activities. From is inclusive and To
// exclusive; a zero bound is open. An empty Status matches every status.
type HistoryQuery struct {
	UserID uuid.UUID
	From   time.Time
	To     time.Time
	Status domain.ActivityStatus
}

// HistoryReader is the read-only view of activity history used for pattern
// analysis. Ratings are attached to the activities they belong to.
type HistoryReader interface {
	ListActivities(ctx context.Context, q HistoryQuery) ([]domain.HistoricalActivity, error)
}

// UserPage is one page of the user directory.
type UserPage struct {
	UserIDs []uuid.UUID
	Total   int
}

// UserDirectory lists users for dispatch fan-out. Pages are 1-based.
type UserDirectory interface {
	ListUsers(ctx context.Context, page, pageSize int) (UserPage, error)
}

// ActivityTypeCatalog lists the known activity types.
type ActivityTypeCatalog interface {
	ListTypes(ctx context.Context) ([]string, error)
}
