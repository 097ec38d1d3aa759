package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActivityStatus is the lifecycle state of a real activity.
type ActivityStatus string

const (
	ActivityStatusOpen   ActivityStatus = "open"
	ActivityStatusClosed ActivityStatus = "closed"
)

// Rating is a user's assessment of a finished activity, both values 0..100.
type Rating struct {
	Satisfaction int `json:"satisfaction"`
	Hardness     int `json:"hardness"`
}

// HistoricalActivity is a read-only view of a past activity used for
// pattern analysis.
type HistoricalActivity struct {
	ID           uuid.UUID      `json:"id"`
	UserID       uuid.UUID      `json:"user_id"`
	Name         string         `json:"name"`
	ActivityType string         `json:"activity_type"`
	Status       ActivityStatus `json:"status"`
	StartedAt    time.Time      `json:"started_at"`
	ClosedAt     *time.Time     `json:"closed_at,omitempty"`
	Rating       *Rating        `json:"rating,omitempty"`
}

// IsClosed reports whether the activity was finished.
func (a HistoricalActivity) IsClosed() bool {
	return a.Status == ActivityStatusClosed
}

// Activity is a real activity a user has committed to.
type Activity struct {
	ID                 uuid.UUID      `json:"id"`
	UserID             uuid.UUID      `json:"user_id"`
	Name               string         `json:"name"`
	ActivityType       string         `json:"activity_type"`
	Content            string         `json:"content"`
	Status             ActivityStatus `json:"status"`
	ScheduledFor       time.Time      `json:"scheduled_for"`
	SourceSuggestionID *uuid.UUID     `json:"source_suggestion_id,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// NewActivityFromSuggestion converts a suggestion into an open activity.
func NewActivityFromSuggestion(s *Suggestion, now time.Time) (*Activity, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: suggestion cannot be nil", ErrValidation)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	sourceID := s.ID
	return &Activity{
		ID:                 uuid.New(),
		UserID:             s.UserID,
		Name:               s.ActivityName,
		ActivityType:       s.ActivityType,
		Content:            s.Content,
		Status:             ActivityStatusOpen,
		ScheduledFor:       s.SuggestedDate,
		SourceSuggestionID: &sourceID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}
