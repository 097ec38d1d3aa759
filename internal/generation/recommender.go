package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/suggestion-api/internal/domain"
	"github.com/phrazzld/suggestion-api/internal/platform/logger"
)

// DefaultSuggestionCount is the size of a suggestion set when none is given.
const DefaultSuggestionCount = 6

// FallbackActivityType is used when neither preferences nor the catalog
// offer a type.
const FallbackActivityType = "general"

// Confidence score components.
const (
	baseConfidence         = 70
	familiarTypeBonus      = 15
	highSatisfactionBonus  = 10
	highCompletionBonus    = 5
	highSatisfactionCutoff = 80
	highCompletionCutoff   = 80
)

// Request describes one suggestion set to generate.
type Request struct {
	UserID         uuid.UUID
	Pattern        domain.PatternSummary
	Count          int
	AvailableTypes []string
	TargetDate     time.Time
}

// Recommender builds suggestion sets from a pattern summary.
type Recommender struct {
	text   TextGenerator
	logger *slog.Logger
}

// NewRecommender creates a Recommender that words suggestions with text.
func NewRecommender(text TextGenerator, logger *slog.Logger) (*Recommender, error) {
	if text == nil {
		return nil, fmt.Errorf("%w: text generator cannot be nil", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recommender{
		text:   text,
		logger: logger.With(slog.String("component", "recommender")),
	}, nil
}

// Generate returns req.Count suggestions, or DefaultSuggestionCount when
// req.Count is not positive. If any slot fails no suggestions are returned
// and the error wraps ErrGenerationFailed.
func (r *Recommender) Generate(ctx context.Context, req Request) ([]*domain.Suggestion, error) {
	if req.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: user ID cannot be empty", domain.ErrValidation)
	}
	if req.TargetDate.IsZero() {
		return nil, fmt.Errorf("%w: target date is required", domain.ErrInvalidDate)
	}

	count := req.Count
	if count <= 0 {
		count = DefaultSuggestionCount
	}
	date := domain.NormalizeDate(req.TargetDate)

	log := logger.FromContextOrDefault(ctx, r.logger).With(
		slog.String("user_id", req.UserID.String()),
		slog.Int("count", count))

	suggestions := make([]*domain.Suggestion, 0, count)
	for i := 0; i < count; i++ {
		activityType := SlotType(req.Pattern.Preferences, req.AvailableTypes, i)
		s, err := r.generateSlot(ctx, req, activityType, i, date)
		if err != nil {
			log.Error("suggestion slot failed",
				slog.Int("slot", i),
				slog.String("activity_type", activityType),
				slog.String("error", err.Error()))
			return nil, fmt.Errorf("%w: slot %d (%s): %w", ErrGenerationFailed, i, activityType, err)
		}
		suggestions = append(suggestions, s)
	}

	log.Debug("suggestion set generated")
	return suggestions, nil
}

func (r *Recommender) generateSlot(
	ctx context.Context,
	req Request,
	activityType string,
	slot int,
	date time.Time,
) (*domain.Suggestion, error) {
	content, err := r.text.GenerateContent(ctx, ContentRequest{
		ActivityType: activityType,
		Pattern:      req.Pattern,
		SlotIndex:    slot,
	})
	if err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}

	score := ConfidenceScore(req.Pattern, activityType)
	reasoning, err := r.text.GenerateReasoning(ctx, ReasoningRequest{
		Pattern:         req.Pattern,
		ActivityType:    activityType,
		ConfidenceScore: score,
	})
	if err != nil {
		return nil, fmt.Errorf("reasoning: %w", err)
	}

	return domain.NewSuggestion(domain.SuggestionParams{
		UserID:          req.UserID,
		ActivityName:    content.ActivityName,
		ActivityType:    activityType,
		Content:         content.Content,
		Reasoning:       reasoning,
		ConfidenceScore: score,
		SuggestedDate:   date,
	})
}

// SlotType picks the activity type for slot i, cycling through preferences,
// then the catalog, then FallbackActivityType.
func SlotType(preferences, available []string, i int) string {
	switch {
	case len(preferences) > 0:
		return preferences[i%len(preferences)]
	case len(available) > 0:
		return available[i%len(available)]
	default:
		return FallbackActivityType
	}
}

// ConfidenceScore rates how well activityType fits pattern, 70..100.
func ConfidenceScore(pattern domain.PatternSummary, activityType string) int {
	score := baseConfidence
	if pattern.HasType(activityType) {
		score += familiarTypeBonus
	}
	if pattern.AverageSatisfaction > highSatisfactionCutoff {
		score += highSatisfactionBonus
	}
	if pattern.CompletionRate > highCompletionCutoff {
		score += highCompletionBonus
	}
	return min(domain.MaxConfidenceScore, score)
}
