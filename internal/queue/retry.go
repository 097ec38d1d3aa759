package queue

import (
	"errors"
	"time"

	"github.com/phrazzld/suggestion-api/internal/domain"
)

// RetryPolicy decides how often and when a failed job runs again.
type RetryPolicy interface {
	// MaxAttempts is the total number of runs a job gets, first included.
	MaxAttempts() int

	// Delay is the wait before the next run, given the number of attempts
	// already made (1 after the first failure).
	Delay(attemptsMade int) time.Duration
}

// Default retry settings.
const (
	DefaultAttempts    = 3
	DefaultBackoffBase = 2 * time.Second
)

// ExponentialBackoff doubles the delay after every failed attempt:
// BaseDelay, 2*BaseDelay, 4*BaseDelay...
type ExponentialBackoff struct {
	Attempts  int
	BaseDelay time.Duration
}

// DefaultRetryPolicy allows three attempts, waiting 2s then 4s.
func DefaultRetryPolicy() ExponentialBackoff {
	return ExponentialBackoff{Attempts: DefaultAttempts, BaseDelay: DefaultBackoffBase}
}

func (b ExponentialBackoff) MaxAttempts() int {
	if b.Attempts < 1 {
		return 1
	}
	return b.Attempts
}

func (b ExponentialBackoff) Delay(attemptsMade int) time.Duration {
	if attemptsMade < 1 {
		attemptsMade = 1
	}
	return b.BaseDelay << (attemptsMade - 1)
}

// ErrUnrecoverable marks a failure that must not be retried.
var ErrUnrecoverable = errors.New("unrecoverable job failure")

type unrecoverableError struct {
	err error
}

func (e *unrecoverableError) Error() string { return e.err.Error() }

func (e *unrecoverableError) Unwrap() []error { return []error{ErrUnrecoverable, e.err} }

// Unrecoverable wraps err so Fail parks the job without retrying.
func Unrecoverable(err error) error {
	if err == nil {
		return nil
	}
	return &unrecoverableError{err: err}
}

// isUnrecoverable reports whether retrying cannot help. An invalid job
// fails the same way on every attempt.
func isUnrecoverable(err error) bool {
	return errors.Is(err, ErrUnrecoverable) || errors.Is(err, domain.ErrInvalidJob)
}
