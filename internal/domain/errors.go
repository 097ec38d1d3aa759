package domain

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned across package boundaries wraps
// exactly one of these so callers can classify it with errors.Is.
var (
	// ErrValidation is returned when an input or entity fails validation.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an operation collides with the current state.
	ErrConflict = errors.New("conflict")

	// ErrExternalService is returned when a collaborator outside the process
	// (text generation, user directory, history) is unreachable or misbehaves.
	ErrExternalService = errors.New("external service error")

	// ErrPersistence is returned when a query or transaction fails.
	ErrPersistence = errors.New("persistence error")
)

// Specific errors, each wrapping a category.
var (
	ErrInvalidDate  = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidJob   = fmt.Errorf("%w: invalid job", ErrValidation)
	ErrInvalidScore = fmt.Errorf("%w: confidence score out of range", ErrValidation)

	ErrSuggestionNotFound = fmt.Errorf("%w: suggestion", ErrNotFound)
	ErrUserNotFound       = fmt.Errorf("%w: user", ErrNotFound)
	ErrQueueNotFound      = fmt.Errorf("%w: queue", ErrNotFound)

	ErrSuggestionAlreadyUsed = fmt.Errorf("%w: suggestion already used", ErrConflict)
	ErrDispatchInProgress    = fmt.Errorf("%w: dispatch already in progress", ErrConflict)

	// ErrDailyLimitExceeded is returned when a user has reached the number of
	// suggestions they may hold for the current day.
	ErrDailyLimitExceeded = errors.New("daily suggestion limit exceeded")
)
