package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/suggestion-api/internal/domain"
	"github.com/phrazzld/suggestion-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var historyColumns = []string{
	"id", "user_id", "name", "activity_type", "status", "started_at", "closed_at", "satisfaction", "hardness",
}

func TestHistoryReader_ListActivities(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	r := NewPostgresHistoryReader(db, testLogger())

	userID := uuid.New()
	from := time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	started := time.Date(2024, 1, 30, 8, 0, 0, 0, time.UTC)
	closed := started.Add(time.Hour)

	mock.ExpectQuery(`LEFT JOIN activity_ratings r ON r.activity_id = a.id WHERE a.user_id = \$1 AND COALESCE\(a.started_at, a.created_at\) >= \$2 AND COALESCE\(a.started_at, a.created_at\) < \$3 ORDER BY`).
		WithArgs(userID, from, to).
		WillReturnRows(sqlmock.NewRows(historyColumns).
			AddRow(uuid.NewString(), userID.String(), "Run", "exercise", "closed", started, closed, 90, 60).
			AddRow(uuid.NewString(), userID.String(), "Read", "learning", "open", started, nil, nil, nil))

	activities, err := r.ListActivities(context.Background(), store.HistoryQuery{UserID: userID, From: from, To: to})
	require.NoError(t, err)
	require.Len(t, activities, 2)

	assert.True(t, activities[0].IsClosed())
	require.NotNil(t, activities[0].Rating)
	assert.Equal(t, domain.Rating{Satisfaction: 90, Hardness: 60}, *activities[0].Rating)
	require.NotNil(t, activities[0].ClosedAt)

	assert.False(t, activities[1].IsClosed())
	assert.Nil(t, activities[1].Rating)
	assert.Nil(t, activities[1].ClosedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryReader_StatusFilterAndOpenBounds(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	r := NewPostgresHistoryReader(db, testLogger())
	userID := uuid.New()

	mock.ExpectQuery(`WHERE a.user_id = \$1 AND a.status = \$2 ORDER BY`).
		WithArgs(userID, "closed").
		WillReturnRows(sqlmock.NewRows(historyColumns))

	activities, err := r.ListActivities(context.Background(), store.HistoryQuery{
		UserID: userID,
		Status: domain.ActivityStatusClosed,
	})
	require.NoError(t, err)
	assert.Empty(t, activities)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, MapError(nil))

	plain := errors.New("connection reset")
	assert.Same(t, plain, MapError(plain))

	tests := []struct {
		code   string
		target error
	}{
		{uniqueViolationCode, store.ErrDuplicate},
		{foreignKeyViolationCode, store.ErrInvalidEntity},
		{checkViolationCode, store.ErrInvalidEntity},
		{notNullViolationCode, store.ErrInvalidEntity},
	}
	for _, tc := range tests {
		err := MapError(&pgconn.PgError{Code: tc.code})
		assert.ErrorIs(t, err, tc.target, tc.code)
	}
}
