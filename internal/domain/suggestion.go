package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Confidence score bounds.
const (
	MinConfidenceScore = 0
	MaxConfidenceScore = 100
)

// Suggestion is a generated, not-yet-adopted activity recommendation.
type Suggestion struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	ActivityName    string     `json:"activity_name"`
	ActivityType    string     `json:"activity_type"`
	Content         string     `json:"content"`
	Reasoning       string     `json:"reasoning,omitempty"`
	ConfidenceScore int        `json:"confidence_score"`
	SuggestedDate   time.Time  `json:"suggested_date"`
	IsUsed          bool       `json:"is_used"`
	UsedAt          *time.Time `json:"used_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// SuggestionParams holds the generated fields of a new suggestion.
type SuggestionParams struct {
	UserID          uuid.UUID
	ActivityName    string
	ActivityType    string
	Content         string
	Reasoning       string
	ConfidenceScore int
	SuggestedDate   time.Time
}

// NewSuggestion creates an unused suggestion with a fresh ID. The suggested
// date is normalized to midnight.
func NewSuggestion(p SuggestionParams) (*Suggestion, error) {
	now := time.Now().UTC()
	s := &Suggestion{
		ID:              uuid.New(),
		UserID:          p.UserID,
		ActivityName:    strings.TrimSpace(p.ActivityName),
		ActivityType:    strings.TrimSpace(p.ActivityType),
		Content:         strings.TrimSpace(p.Content),
		Reasoning:       strings.TrimSpace(p.Reasoning),
		ConfidenceScore: p.ConfidenceScore,
		SuggestedDate:   NormalizeDate(p.SuggestedDate),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the suggestion's invariants.
func (s *Suggestion) Validate() error {
	if s.ID == uuid.Nil {
		return fmt.Errorf("%w: suggestion ID cannot be empty", ErrValidation)
	}
	if s.UserID == uuid.Nil {
		return fmt.Errorf("%w: suggestion user ID cannot be empty", ErrValidation)
	}
	if s.ActivityName == "" {
		return fmt.Errorf("%w: activity name cannot be empty", ErrValidation)
	}
	if s.ActivityType == "" {
		return fmt.Errorf("%w: activity type cannot be empty", ErrValidation)
	}
	if s.Content == "" {
		return fmt.Errorf("%w: content cannot be empty", ErrValidation)
	}
	if s.ConfidenceScore < MinConfidenceScore || s.ConfidenceScore > MaxConfidenceScore {
		return fmt.Errorf("%w: %d", ErrInvalidScore, s.ConfidenceScore)
	}
	if s.SuggestedDate.IsZero() || !IsMidnight(s.SuggestedDate) {
		return fmt.Errorf("%w: suggested date must be a midnight", ErrInvalidDate)
	}
	if s.IsUsed && s.UsedAt == nil {
		return fmt.Errorf("%w: used suggestion must carry a used-at time", ErrValidation)
	}
	return nil
}

// MarkUsed flips the suggestion to used. It can happen only once.
func (s *Suggestion) MarkUsed(at time.Time) error {
	if s.IsUsed {
		return ErrSuggestionAlreadyUsed
	}
	s.IsUsed = true
	s.UsedAt = &at
	s.UpdatedAt = at
	return nil
}

// NormalizeDate truncates t to midnight in t's own location.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// IsMidnight reports whether t has no time-of-day component.
func IsMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}
