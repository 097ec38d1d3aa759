package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/suggestion-api/internal/domain"
	"github.com/phrazzld/suggestion-api/internal/store"
)

// SuggestionServiceError is a custom error type for suggestion service errors.
type SuggestionServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for SuggestionServiceError.
func (e *SuggestionServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("suggestion service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("suggestion service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *SuggestionServiceError) Unwrap() error {
	return e.Err
}

// NewSuggestionServiceError creates a new SuggestionServiceError.
func NewSuggestionServiceError(operation, message string, err error) *SuggestionServiceError {
	return &SuggestionServiceError{
		Operation: operation,
		Message:   message,
		Err:       classify(err),
	}
}

// QueueControlError is returned by QueueControlService.
type QueueControlError struct {
	Queue     string
	Operation string
	Err       error
}

func (e *QueueControlError) Error() string {
	return fmt.Sprintf("queue %s: %s failed: %v", e.Queue, e.Operation, e.Err)
}

func (e *QueueControlError) Unwrap() error {
	return e.Err
}

// classify makes sure err carries a domain category. Errors that already
// have one pass through; a missing row becomes ErrSuggestionNotFound and
// everything else is a persistence failure.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrExternalService),
		errors.Is(err, domain.ErrPersistence),
		errors.Is(err, domain.ErrDailyLimitExceeded):
		return err
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %w", domain.ErrSuggestionNotFound, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
}
