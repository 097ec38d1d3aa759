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

func newTestActivity(t *testing.T) *domain.Activity {
	t.Helper()
	sg := newTestSuggestion(t, uuid.New(), 80)
	activity, err := domain.NewActivityFromSuggestion(sg, time.Now().UTC())
	require.NoError(t, err)
	return activity
}

func TestActivityStore_Create(t *testing.T) {
	t.Parallel()

	activity := newTestActivity(t)

	t.Run("inserts", func(t *testing.T) {
		t.Parallel()

		db, mock := newMock(t)
		s := NewPostgresActivityStore(db, testLogger())

		mock.ExpectExec(`INSERT INTO activities`).
			WithArgs(activity.ID, activity.UserID, activity.Name, activity.ActivityType, activity.Content,
				"open", "2024-02-01", sqlmock.AnyArg(), activity.CreatedAt, activity.UpdatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.Create(context.Background(), activity))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing user", func(t *testing.T) {
		t.Parallel()

		db, mock := newMock(t)
		s := NewPostgresActivityStore(db, testLogger())

		mock.ExpectExec(`INSERT INTO activities`).
			WillReturnError(&pgconn.PgError{Code: foreignKeyViolationCode, ConstraintName: "activities_user_id_fkey"})

		err := s.Create(context.Background(), activity)
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
		assert.Contains(t, err.Error(), activity.UserID.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate id", func(t *testing.T) {
		t.Parallel()

		db, mock := newMock(t)
		s := NewPostgresActivityStore(db, testLogger())

		mock.ExpectExec(`INSERT INTO activities`).
			WillReturnError(&pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "activities_pkey"})

		err := s.Create(context.Background(), activity)
		assert.ErrorIs(t, err, store.ErrDuplicate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("connection error passes through", func(t *testing.T) {
		t.Parallel()

		db, mock := newMock(t)
		s := NewPostgresActivityStore(db, testLogger())

		boom := errors.New("connection reset")
		mock.ExpectExec(`INSERT INTO activities`).WillReturnError(boom)

		err := s.Create(context.Background(), activity)
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestActivityStore_WithTxUsesTransaction(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	s := NewPostgresActivityStore(db, testLogger())
	activity := newTestActivity(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO activities`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, s.WithTx(tx).Create(context.Background(), activity))
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}
