package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/suggestion-api/internal/api/shared"
	"github.com/phrazzld/suggestion-api/internal/domain"
	"github.com/phrazzld/suggestion-api/internal/service/auth"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes by their
// domain category.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict

	case errors.Is(err, domain.ErrDailyLimitExceeded):
		return http.StatusTooManyRequests

	case errors.Is(err, domain.ErrExternalService):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message that never includes
// internal error text.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	case errors.Is(err, domain.ErrInvalidDate):
		return "Invalid date"
	case errors.Is(err, domain.ErrValidation):
		return "Invalid request"

	case errors.Is(err, domain.ErrSuggestionNotFound):
		return "Suggestion not found"
	case errors.Is(err, domain.ErrQueueNotFound):
		return "Queue not found"
	case errors.Is(err, domain.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, domain.ErrNotFound):
		return "Not found"

	case errors.Is(err, domain.ErrSuggestionAlreadyUsed):
		return "Suggestion already added to activities"
	case errors.Is(err, domain.ErrDispatchInProgress):
		return "A dispatch run is already in progress"
	case errors.Is(err, domain.ErrConflict):
		return "Request conflicts with current state"

	case errors.Is(err, domain.ErrDailyLimitExceeded):
		return "Daily suggestion limit reached"

	case errors.Is(err, domain.ErrExternalService):
		return "A dependent service is unavailable"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the status and safe message for err. A non-empty
// message overrides the default one.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := MapErrorToStatusCode(err)
	if message == "" {
		message = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}

// SanitizeValidationError turns validator errors into a message naming the
// first failing field.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}

	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(fe.Tag()))
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "datetime":
		return "expected YYYY-MM-DD"
	case "min":
		return "too short"
	case "max":
		return "too long"
	default:
		return "validation failed"
	}
}
