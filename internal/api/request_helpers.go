package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/suggestion-api/internal/api/shared"
	"github.com/phrazzld/suggestion-api/internal/domain"
	"github.com/phrazzld/suggestion-api/internal/service/auth"
)

// getPathUUID parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", domain.ErrValidation, paramName)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format", domain.ErrValidation, paramName)
	}
	return id, nil
}

// requireUserID returns the authenticated user or writes a 401.
func requireUserID(w http.ResponseWriter, r *http.Request, log *slog.Logger) (uuid.UUID, bool) {
	userID, ok := shared.UserID(r.Context())
	if !ok {
		log.Warn("user ID not found or invalid in request context")
		HandleAPIError(w, r, auth.ErrMissingToken, "User ID not found or invalid")
		return uuid.Nil, false
	}
	return userID, true
}

// handleUserIDAndPathUUID extracts both the user ID from context and a UUID
// path parameter, writing an error response if either is missing.
func handleUserIDAndPathUUID(
	w http.ResponseWriter,
	r *http.Request,
	paramName string,
	log *slog.Logger,
) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := requireUserID(w, r, log)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	pathID, err := getPathUUID(r, paramName)
	if err != nil {
		log.Warn("invalid path parameter",
			slog.String("param_name", paramName),
			slog.String("value", chi.URLParam(r, paramName)))
		HandleAPIError(w, r, err, "Invalid "+paramName)
		return uuid.Nil, uuid.Nil, false
	}

	return userID, pathID, true
}
