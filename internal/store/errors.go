package store

import (
	"errors"
	"fmt"
)

// Common store errors. Implementations wrap these so callers can match them
// with errors.Is regardless of the backing database.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an entity violates a uniqueness rule.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity violates a constraint,
	// such as a foreign key to a missing user.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a transaction cannot be committed.
	ErrTransactionFailed = errors.New("transaction failed")

	ErrSuggestionNotFound = fmt.Errorf("%w: suggestion", ErrNotFound)
)

// StoreError adds entity and operation context to a persistence failure.
type StoreError struct {
	Entity    string
	Operation string
	Message   string
	Err       error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation on %s failed: %s: %v", e.Operation, e.Entity, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError builds a StoreError.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
