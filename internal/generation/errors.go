package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when a suggestion set cannot be produced
	ErrGenerationFailed = errors.New("failed to generate suggestions")

	// ErrInvalidResponse is returned when the text generator's response cannot be parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the language model blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error during text generation")

	// ErrServiceUnavailable is returned while the text generator is considered down
	ErrServiceUnavailable = errors.New("text generation service unavailable")

	// ErrInvalidConfig is returned when the generator configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")
)
