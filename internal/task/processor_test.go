package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/suggestion-api/internal/analysis"
	"github.com/phrazzld/suggestion-api/internal/domain"
	"github.com/phrazzld/suggestion-api/internal/generation"
	"github.com/phrazzld/suggestion-api/internal/mocks"
	"github.com/phrazzld/suggestion-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testNow    = time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)
	targetDate = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
)

type processorFixture struct {
	processor   *Processor
	sqlMock     sqlmock.Sqlmock
	suggestions *mocks.MockSuggestionStore
	text        *mocks.MockTextGenerator
	history     *mocks.MockHistoryReader
	catalog     *mocks.MockUserDirectory
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()

	db, sqlMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &processorFixture{
		sqlMock:     sqlMock,
		suggestions: mocks.NewMockSuggestionStore(),
		text:        &mocks.MockTextGenerator{},
		history:     &mocks.MockHistoryReader{},
		catalog:     &mocks.MockUserDirectory{Types: []string{"exercise", "learning"}},
	}

	analyzer, err := analysis.NewAnalyzer(f.history, testLogger(),
		analysis.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	recommender, err := generation.NewRecommender(f.text, testLogger())
	require.NoError(t, err)

	f.processor, err = NewProcessor(db, f.suggestions, f.catalog, analyzer, recommender, ProcessorConfig{}, testLogger())
	require.NoError(t, err)
	f.processor.now = func() time.Time { return testNow }
	return f
}

func (f *processorFixture) expectCommit() {
	f.sqlMock.ExpectBegin()
	f.sqlMock.ExpectCommit()
}

func storedSuggestion(t *testing.T, userID uuid.UUID, date time.Time, used bool) *domain.Suggestion {
	t.Helper()
	s, err := domain.NewSuggestion(domain.SuggestionParams{
		UserID:          userID,
		ActivityName:    "Old walk",
		ActivityType:    "exercise",
		Content:         "Walk around the block.",
		ConfidenceScore: 70,
		SuggestedDate:   date,
	})
	require.NoError(t, err)
	if used {
		require.NoError(t, s.MarkUsed(testNow))
	}
	return s
}

func TestNewProcessor_RequiresDependencies(t *testing.T) {
	t.Parallel()

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := mocks.NewMockSuggestionStore()
	c := &mocks.MockUserDirectory{}
	a, err := analysis.NewAnalyzer(&mocks.MockHistoryReader{}, nil)
	require.NoError(t, err)
	g, err := generation.NewRecommender(&mocks.MockTextGenerator{}, nil)
	require.NoError(t, err)

	_, err = NewProcessor(nil, s, c, a, g, ProcessorConfig{}, nil)
	assert.Error(t, err)
	_, err = NewProcessor(db, nil, c, a, g, ProcessorConfig{}, nil)
	assert.Error(t, err)
	_, err = NewProcessor(db, s, nil, a, g, ProcessorConfig{}, nil)
	assert.Error(t, err)
	_, err = NewProcessor(db, s, c, nil, g, ProcessorConfig{}, nil)
	assert.Error(t, err)
	_, err = NewProcessor(db, s, c, a, nil, ProcessorConfig{}, nil)
	assert.Error(t, err)

	p, err := NewProcessor(db, s, c, a, g, ProcessorConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, generation.DefaultSuggestionCount, p.config.SuggestionsPerUser)
	assert.Equal(t, DefaultRetentionDays, p.config.RetentionDays)
}

func TestGenerateForUser_NoHistoryYieldsSixSuggestions(t *testing.T) {
	t.Parallel()

	f := newProcessorFixture(t)
	f.expectCommit()
	userID := uuid.New()

	res, err := f.processor.GenerateForUser(context.Background(), userID, testNow)
	require.NoError(t, err)
	assert.Equal(t, &GenerateResult{UserID: userID, TargetDate: "2024-02-01", Generated: 6}, res)

	stored := f.suggestions.All()
	require.Len(t, stored, 6)
	for _, s := range stored {
		assert.Equal(t, userID, s.UserID)
		assert.True(t, domain.IsMidnight(s.SuggestedDate))
		assert.True(t, targetDate.Equal(s.SuggestedDate))
		assert.GreaterOrEqual(t, s.ConfidenceScore, domain.MinConfidenceScore)
		assert.LessOrEqual(t, s.ConfidenceScore, domain.MaxConfidenceScore)
		assert.False(t, s.IsUsed)
	}
	assert.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestGenerateForUser_ReplacesUnusedSuggestionsForDate(t *testing.T) {
	t.Parallel()

	f := newProcessorFixture(t)
	userID, otherUser := uuid.New(), uuid.New()

	used := storedSuggestion(t, userID, targetDate, true)
	otherDay := storedSuggestion(t, userID, targetDate.AddDate(0, 0, -1), false)
	otherUsers := storedSuggestion(t, otherUser, targetDate, false)
	f.suggestions.Put(
		storedSuggestion(t, userID, targetDate, false),
		storedSuggestion(t, userID, targetDate, false),
		used, otherDay, otherUsers,
	)

	f.expectCommit()
	res, err := f.processor.GenerateForUser(context.Background(), userID, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Replaced)
	assert.Equal(t, 6, res.Generated)

	count, err := f.suggestions.CountForDate(context.Background(), userID, targetDate)
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	got, err := f.suggestions.GetByID(context.Background(), used.ID)
	require.NoError(t, err)
	assert.True(t, got.IsUsed)
	_, err = f.suggestions.GetByID(context.Background(), otherDay.ID)
	assert.NoError(t, err)
	_, err = f.suggestions.GetByID(context.Background(), otherUsers.ID)
	assert.NoError(t, err)

	// Running again yields the same number of unused suggestions.
	f.expectCommit()
	_, err = f.processor.GenerateForUser(context.Background(), userID, testNow)
	require.NoError(t, err)
	unused, err := f.suggestions.ListUnusedForDate(context.Background(), userID, targetDate)
	require.NoError(t, err)
	assert.Len(t, unused, 6)
	assert.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestRefreshForUser_ReplacesEverySuggestionForDate(t *testing.T) {
	t.Parallel()

	f := newProcessorFixture(t)
	userID := uuid.New()
	f.suggestions.Put(
		storedSuggestion(t, userID, targetDate, true),
		storedSuggestion(t, userID, targetDate, false),
	)

	for i := 0; i < 2; i++ {
		f.expectCommit()
		res, err := f.processor.RefreshForUser(context.Background(), userID, testNow)
		require.NoError(t, err)
		assert.Equal(t, 6, res.Generated)

		count, err := f.suggestions.CountForDate(context.Background(), userID, targetDate)
		require.NoError(t, err)
		assert.Equal(t, 6, count)
	}
	assert.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestGenerateForUser_Failures(t *testing.T) {
	t.Parallel()

	t.Run("invalid input", func(t *testing.T) {
		t.Parallel()
		f := newProcessorFixture(t)

		_, err := f.processor.GenerateForUser(context.Background(), uuid.Nil, testNow)
		assert.ErrorIs(t, err, domain.ErrValidation)
		_, err = f.processor.GenerateForUser(context.Background(), uuid.New(), time.Time{})
		assert.ErrorIs(t, err, domain.ErrInvalidDate)
	})

	t.Run("history unavailable", func(t *testing.T) {
		t.Parallel()
		f := newProcessorFixture(t)
		f.history.Err = errors.New("connection reset")

		_, err := f.processor.GenerateForUser(context.Background(), uuid.New(), testNow)
		assert.ErrorIs(t, err, domain.ErrExternalService)
		assert.Equal(t, 0, f.text.ContentCalls())
		assert.NoError(t, f.sqlMock.ExpectationsWereMet())
	})

	t.Run("catalog unavailable", func(t *testing.T) {
		t.Parallel()
		f := newProcessorFixture(t)
		f.catalog.ListTypesFn = func(context.Context) ([]string, error) {
			return nil, errors.New("connection reset")
		}

		_, err := f.processor.GenerateForUser(context.Background(), uuid.New(), testNow)
		assert.ErrorIs(t, err, domain.ErrPersistence)
	})

	t.Run("generation fails before any write", func(t *testing.T) {
		t.Parallel()
		f := newProcessorFixture(t)
		userID := uuid.New()
		existing := storedSuggestion(t, userID, targetDate, false)
		f.suggestions.Put(existing)
		f.text.GenerateContentFn = func(context.Context, generation.ContentRequest) (generation.GeneratedContent, error) {
			return generation.GeneratedContent{}, generation.ErrServiceUnavailable
		}

		_, err := f.processor.GenerateForUser(context.Background(), userID, testNow)
		assert.ErrorIs(t, err, domain.ErrExternalService)
		assert.ErrorIs(t, err, generation.ErrGenerationFailed)

		_, err = f.suggestions.GetByID(context.Background(), existing.ID)
		assert.NoError(t, err)
		assert.NoError(t, f.sqlMock.ExpectationsWereMet())
	})

	t.Run("insert failure rolls back", func(t *testing.T) {
		t.Parallel()
		f := newProcessorFixture(t)
		f.suggestions.CreateManyErr = store.ErrInvalidEntity
		f.sqlMock.ExpectBegin()
		f.sqlMock.ExpectRollback()

		_, err := f.processor.GenerateForUser(context.Background(), uuid.New(), testNow)
		assert.ErrorIs(t, err, domain.ErrPersistence)
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
		assert.NoError(t, f.sqlMock.ExpectationsWereMet())
	})

	t.Run("delete failure rolls back", func(t *testing.T) {
		t.Parallel()
		f := newProcessorFixture(t)
		f.suggestions.DeleteUnusedErr = errors.New("lock timeout")
		f.sqlMock.ExpectBegin()
		f.sqlMock.ExpectRollback()

		_, err := f.processor.GenerateForUser(context.Background(), uuid.New(), testNow)
		assert.ErrorIs(t, err, domain.ErrPersistence)
		assert.Empty(t, f.suggestions.All())
		assert.NoError(t, f.sqlMock.ExpectationsWereMet())
	})
}

func TestCleanup_DeletesUnusedRowsOlderThanRetention(t *testing.T) {
	t.Parallel()

	f := newProcessorFixture(t)
	userID := uuid.New()
	stale := storedSuggestion(t, userID, time.Date(2024, 1, 24, 0, 0, 0, 0, time.UTC), false)
	kept := storedSuggestion(t, userID, time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC), false)
	usedOld := storedSuggestion(t, userID, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), true)
	f.suggestions.Put(stale, kept, usedOld)

	res, err := f.processor.Cleanup(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, &CleanupResult{Cutoff: "2024-01-25", Deleted: 1}, res)

	require.Len(t, f.suggestions.Cutoffs, 1)
	assert.True(t, time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC).Equal(f.suggestions.Cutoffs[0]))

	_, err = f.suggestions.GetByID(context.Background(), stale.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.suggestions.GetByID(context.Background(), kept.ID)
	assert.NoError(t, err)
	_, err = f.suggestions.GetByID(context.Background(), usedOld.ID)
	assert.NoError(t, err)
}

func TestCleanup_Failures(t *testing.T) {
	t.Parallel()

	f := newProcessorFixture(t)

	_, err := f.processor.Cleanup(context.Background(), time.Time{})
	assert.ErrorIs(t, err, domain.ErrInvalidDate)

	f.suggestions.DeleteUnusedBeforeF = func(context.Context, time.Time) (int64, error) {
		return 0, errors.New("statement timeout")
	}
	_, err = f.processor.Cleanup(context.Background(), testNow)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestBulkGenerate_ContinuesPastFailures(t *testing.T) {
	t.Parallel()

	f := newProcessorFixture(t)
	users := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	f.history.ListActivitiesFn = func(_ context.Context, q store.HistoryQuery) ([]domain.HistoricalActivity, error) {
		if q.UserID == users[1] {
			return nil, errors.New("history offline")
		}
		return nil, nil
	}
	f.expectCommit()
	f.expectCommit()

	res, err := f.processor.BulkGenerate(context.Background(), users, testNow)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Users, 3)
	assert.Equal(t, 6, res.Users[0].Generated)
	assert.Equal(t, users[1], res.Users[1].UserID)
	assert.NotEmpty(t, res.Users[1].Error)
	assert.Empty(t, res.Users[2].Error)
	assert.Len(t, f.suggestions.All(), 12)
	assert.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestBulkGenerate_StopsWhenContextEnds(t *testing.T) {
	t.Parallel()

	f := newProcessorFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.processor.BulkGenerate(ctx, []uuid.UUID{uuid.New()}, testNow)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Users)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	f := newProcessorFixture(t)
	f.sqlMock.ExpectPing()
	assert.True(t, f.processor.HealthCheck(context.Background()))

	f.sqlMock.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.False(t, f.processor.HealthCheck(context.Background()))
	assert.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestProcess_DispatchesOnJobKind(t *testing.T) {
	t.Parallel()

	f := newProcessorFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	f.expectCommit()
	res, err := f.processor.Process(ctx, domain.GenerateJob{UserID: userID, TargetDate: testNow})
	require.NoError(t, err)
	assert.IsType(t, &GenerateResult{}, res)

	res, err = f.processor.Process(ctx, domain.CleanupJob{TargetDate: testNow})
	require.NoError(t, err)
	assert.IsType(t, &CleanupResult{}, res)

	f.expectCommit()
	res, err = f.processor.Process(ctx, domain.BulkGenerateJob{UserIDs: []uuid.UUID{userID}, TargetDate: testNow})
	require.NoError(t, err)
	assert.Equal(t, 1, res.(*BulkGenerateResult).Succeeded)

	f.sqlMock.ExpectPing()
	res, err = f.processor.Process(ctx, domain.HealthCheckJob{})
	require.NoError(t, err)
	assert.Equal(t, HealthCheckResult{Healthy: true, CheckedAt: testNow}, res)

	f.sqlMock.ExpectPing().WillReturnError(errors.New("connection refused"))
	res, err = f.processor.Process(ctx, domain.HealthCheckJob{})
	assert.ErrorIs(t, err, ErrUnhealthy)
	assert.False(t, res.(HealthCheckResult).Healthy)

	_, err = f.processor.Process(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidJob)

	assert.NoError(t, f.sqlMock.ExpectationsWereMet())
}
