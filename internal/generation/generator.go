package generation

import (
	"context"

	"github.com/phrazzld/suggestion-api/internal/domain"
)

// ContentRequest asks for the name and body of one suggested activity.
type ContentRequest struct {
	ActivityType string
	Pattern      domain.PatternSummary
	// SlotIndex is the position of the suggestion within its set, letting the
	// generator vary wording between slots of the same type.
	SlotIndex int
}

// GeneratedContent is the text produced for one suggestion.
type GeneratedContent struct {
	ActivityName string `json:"activity_name"`
	Content      string `json:"content"`
}

// ReasoningRequest asks for a short explanation of why a suggestion fits.
type ReasoningRequest struct {
	Pattern         domain.PatternSummary
	ActivityType    string
	ConfidenceScore int
}

// TextGenerator is the boundary to the external text-generation service.
// Implementations return ErrInvalidResponse, ErrContentBlocked,
// ErrTransientFailure or ErrServiceUnavailable wrapped with detail.
type TextGenerator interface {
	// GenerateContent produces an activity name and description.
	GenerateContent(ctx context.Context, req ContentRequest) (GeneratedContent, error)

	// GenerateReasoning produces a one or two sentence justification.
	GenerateReasoning(ctx context.Context, req ReasoningRequest) (string, error)
}
