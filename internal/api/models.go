package api

import (
	"time"

	"github.com/phrazzld/suggestion-api/internal/domain"
	"github.com/phrazzld/suggestion-api/internal/service"
)

// RefreshSuggestionsRequest is the body of POST /api/suggestions/refresh.
type RefreshSuggestionsRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// SuggestionResponse is the public view of a suggestion.
type SuggestionResponse struct {
	ID              string    `json:"id"`
	ActivityName    string    `json:"activity_name"`
	ActivityType    string    `json:"activity_type"`
	Content         string    `json:"content"`
	Reasoning       string    `json:"reasoning,omitempty"`
	ConfidenceScore int       `json:"confidence_score"`
	SuggestedDate   string    `json:"suggested_date"`
	CreatedAt       time.Time `json:"created_at"`
}

// SuggestionListResponse wraps a list of suggestions.
type SuggestionListResponse struct {
	Suggestions []SuggestionResponse `json:"suggestions"`
}

// ActivityResponse is the public view of an activity created from a
// suggestion.
type ActivityResponse struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	ActivityType       string    `json:"activity_type"`
	Content            string    `json:"content"`
	Status             string    `json:"status"`
	ScheduledFor       string    `json:"scheduled_for"`
	SourceSuggestionID string    `json:"source_suggestion_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// JobEnqueuedResponse is returned when a request results in a queued job.
type JobEnqueuedResponse struct {
	JobID string `json:"job_id"`
}

// BulkGenerateRequest is the body of POST /api/admin/jobs/bulk-generate.
// Date defaults to today.
type BulkGenerateRequest struct {
	UserIDs []string `json:"user_ids" validate:"required,min=1,max=1000,dive,uuid"`
	Date    string   `json:"date"     validate:"omitempty,datetime=2006-01-02"`
}

// ClearQueueResponse is returned by DELETE /api/admin/queues/{name}.
type ClearQueueResponse struct {
	service.ClearResult
	Warning string `json:"warning,omitempty"`
}

// schedulesRemovedWarning tells the operator that cleared repeatables are
// not re-registered until the server restarts.
const schedulesRemovedWarning = "repeatable schedules were removed; their cron runs are skipped until the server restarts"

func suggestionToResponse(s *domain.Suggestion) SuggestionResponse {
	return SuggestionResponse{
		ID:              s.ID.String(),
		ActivityName:    s.ActivityName,
		ActivityType:    s.ActivityType,
		Content:         s.Content,
		Reasoning:       s.Reasoning,
		ConfidenceScore: s.ConfidenceScore,
		SuggestedDate:   s.SuggestedDate.Format(time.DateOnly),
		CreatedAt:       s.CreatedAt,
	}
}

func suggestionsToResponse(suggestions []*domain.Suggestion) SuggestionListResponse {
	out := make([]SuggestionResponse, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, suggestionToResponse(s))
	}
	return SuggestionListResponse{Suggestions: out}
}

func activityToResponse(a *domain.Activity) ActivityResponse {
	resp := ActivityResponse{
		ID:           a.ID.String(),
		Name:         a.Name,
		ActivityType: a.ActivityType,
		Content:      a.Content,
		Status:       string(a.Status),
		ScheduledFor: a.ScheduledFor.Format(time.DateOnly),
		CreatedAt:    a.CreatedAt,
	}
	if a.SourceSuggestionID != nil {
		resp.SourceSuggestionID = a.SourceSuggestionID.String()
	}
	return resp
}
