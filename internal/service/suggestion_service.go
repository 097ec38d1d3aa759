package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/suggestion-api/internal/domain"
	"github.com/phrazzld/suggestion-api/internal/platform/logger"
	"github.com/phrazzld/suggestion-api/internal/store"
	"github.com/phrazzld/suggestion-api/internal/task"
)

// DefaultDailyLimit is the number of suggestions a user may hold for one day
// before adding more to activities is refused.
const DefaultDailyLimit = 10

// SuggestionRefresher regenerates a user's suggestion set for a day.
// task.Processor implements it.
type SuggestionRefresher interface {
	RefreshForUser(ctx context.Context, userID uuid.UUID, date time.Time) (*task.GenerateResult, error)
}

// SuggestionServiceConfig tunes a SuggestionService.
type SuggestionServiceConfig struct {
	// DailyLimit defaults to DefaultDailyLimit.
	DailyLimit int

	// Location decides which calendar day is "today". Defaults to UTC.
	Location *time.Location
}

// SuggestionService provides the consumer-facing suggestion operations
type SuggestionService interface {
	// List returns the user's unused suggestions for today, best first.
	List(ctx context.Context, userID uuid.UUID) ([]*domain.Suggestion, error)

	// Refresh replaces the user's suggestions for date with a freshly
	// generated set and returns it.
	Refresh(ctx context.Context, userID uuid.UUID, date time.Time) ([]*domain.Suggestion, error)

	// AddToActivities converts a suggestion into an open activity and
	// removes the suggestion.
	AddToActivities(ctx context.Context, userID, suggestionID uuid.UUID) (*domain.Activity, error)

	// Delete removes one of the user's suggestions.
	Delete(ctx context.Context, userID, suggestionID uuid.UUID) error
}

// suggestionServiceImpl implements the SuggestionService interface
type suggestionServiceImpl struct {
	db          store.TxBeginner
	suggestions store.SuggestionStore
	activities  store.ActivityStore
	refresher   SuggestionRefresher
	dailyLimit  int
	location    *time.Location
	now         func() time.Time
	logger      *slog.Logger
}

// NewSuggestionService creates a new SuggestionService
// It returns an error if any of the required dependencies are nil.
func NewSuggestionService(
	db store.TxBeginner,
	suggestions store.SuggestionStore,
	activities store.ActivityStore,
	refresher SuggestionRefresher,
	config SuggestionServiceConfig,
	logger *slog.Logger,
) (SuggestionService, error) {
	return newSuggestionService(db, suggestions, activities, refresher, config, logger)
}

func newSuggestionService(
	db store.TxBeginner,
	suggestions store.SuggestionStore,
	activities store.ActivityStore,
	refresher SuggestionRefresher,
	config SuggestionServiceConfig,
	logger *slog.Logger,
) (*suggestionServiceImpl, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: db cannot be nil", domain.ErrValidation)
	}
	if suggestions == nil {
		return nil, fmt.Errorf("%w: suggestion store cannot be nil", domain.ErrValidation)
	}
	if activities == nil {
		return nil, fmt.Errorf("%w: activity store cannot be nil", domain.ErrValidation)
	}
	if refresher == nil {
		return nil, fmt.Errorf("%w: refresher cannot be nil", domain.ErrValidation)
	}
	if config.DailyLimit <= 0 {
		config.DailyLimit = DefaultDailyLimit
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &suggestionServiceImpl{
		db:          db,
		suggestions: suggestions,
		activities:  activities,
		refresher:   refresher,
		dailyLimit:  config.DailyLimit,
		location:    config.Location,
		now:         time.Now,
		logger:      logger.With(slog.String("component", "suggestion_service")),
	}, nil
}

func (s *suggestionServiceImpl) today() time.Time {
	return domain.NormalizeDate(s.now().In(s.location))
}

// List implements SuggestionService.List
func (s *suggestionServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]*domain.Suggestion, error) {
	if userID == uuid.Nil {
		return nil, NewSuggestionServiceError("list", "invalid user",
			fmt.Errorf("%w: user ID cannot be empty", domain.ErrValidation))
	}

	suggestions, err := s.suggestions.ListUnusedForDate(ctx, userID, s.today())
	if err != nil {
		return nil, NewSuggestionServiceError("list", "failed to list suggestions", err)
	}
	return suggestions, nil
}

// Refresh implements SuggestionService.Refresh
func (s *suggestionServiceImpl) Refresh(
	ctx context.Context,
	userID uuid.UUID,
	date time.Time,
) ([]*domain.Suggestion, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if userID == uuid.Nil {
		return nil, NewSuggestionServiceError("refresh", "invalid user",
			fmt.Errorf("%w: user ID cannot be empty", domain.ErrValidation))
	}
	if date.IsZero() {
		return nil, NewSuggestionServiceError("refresh", "invalid date",
			fmt.Errorf("%w: date is required", domain.ErrInvalidDate))
	}
	date = domain.NormalizeDate(date)

	result, err := s.refresher.RefreshForUser(ctx, userID, date)
	if err != nil {
		return nil, NewSuggestionServiceError("refresh", "failed to regenerate suggestions", err)
	}
	log.Debug("refreshed suggestions",
		slog.String("user_id", userID.String()),
		slog.String("date", result.TargetDate),
		slog.Int("generated", result.Generated))

	suggestions, err := s.suggestions.ListUnusedForDate(ctx, userID, date)
	if err != nil {
		return nil, NewSuggestionServiceError("refresh", "failed to list suggestions", err)
	}
	return suggestions, nil
}

// AddToActivities implements SuggestionService.AddToActivities.
// The checks run in one transaction with the suggestion row locked, so two
// concurrent conversions of the same suggestion cannot both succeed.
func (s *suggestionServiceImpl) AddToActivities(
	ctx context.Context,
	userID, suggestionID uuid.UUID,
) (*domain.Activity, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("user_id", userID.String()),
		slog.String("suggestion_id", suggestionID.String()),
	)

	var activity *domain.Activity
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txSuggestions := s.suggestions.WithTx(tx)
		txActivities := s.activities.WithTx(tx)

		suggestion, err := s.loadOwned(ctx, txSuggestions, userID, suggestionID)
		if err != nil {
			return err
		}
		if suggestion.IsUsed {
			return domain.ErrSuggestionAlreadyUsed
		}

		count, err := txSuggestions.CountForDate(ctx, userID, s.today())
		if err != nil {
			return fmt.Errorf("failed to count today's suggestions: %w", err)
		}
		if count >= s.dailyLimit {
			log.Info("daily suggestion limit reached", slog.Int("count", count), slog.Int("limit", s.dailyLimit))
			return domain.ErrDailyLimitExceeded
		}

		now := s.now().UTC()
		if err := suggestion.MarkUsed(now); err != nil {
			return err
		}

		activity, err = domain.NewActivityFromSuggestion(suggestion, now)
		if err != nil {
			return err
		}
		if err := txActivities.Create(ctx, activity); err != nil {
			return fmt.Errorf("failed to create activity: %w", err)
		}
		if err := txSuggestions.Delete(ctx, suggestion.ID); err != nil {
			return fmt.Errorf("failed to remove converted suggestion: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, NewSuggestionServiceError("add_to_activities", "failed to convert suggestion", err)
	}

	log.Info("converted suggestion to activity", slog.String("activity_id", activity.ID.String()))
	return activity, nil
}

// Delete implements SuggestionService.Delete
func (s *suggestionServiceImpl) Delete(ctx context.Context, userID, suggestionID uuid.UUID) error {
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txSuggestions := s.suggestions.WithTx(tx)
		if _, err := s.loadOwned(ctx, txSuggestions, userID, suggestionID); err != nil {
			return err
		}
		return txSuggestions.Delete(ctx, suggestionID)
	})
	if err != nil {
		return NewSuggestionServiceError("delete", "failed to delete suggestion", err)
	}
	return nil
}

// loadOwned locks a suggestion row and hides rows owned by someone else
// behind the same not-found error as missing rows.
func (s *suggestionServiceImpl) loadOwned(
	ctx context.Context,
	suggestions store.SuggestionStore,
	userID, suggestionID uuid.UUID,
) (*domain.Suggestion, error) {
	suggestion, err := suggestions.GetByIDForUpdate(ctx, suggestionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrSuggestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load suggestion: %w", err)
	}
	if suggestion.UserID != userID {
		logger.FromContextOrDefault(ctx, s.logger).Warn("suggestion requested by another user",
			slog.String("suggestion_id", suggestionID.String()))
		return nil, domain.ErrSuggestionNotFound
	}
	return suggestion, nil
}
