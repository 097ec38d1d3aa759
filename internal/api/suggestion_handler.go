package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/suggestion-api/internal/api/shared"
	"github.com/phrazzld/suggestion-api/internal/platform/logger"
	"github.com/phrazzld/suggestion-api/internal/service"
)

// SuggestionHandler handles the consumer suggestion endpoints
type SuggestionHandler struct {
	suggestions service.SuggestionService
	logger      *slog.Logger
}

// NewSuggestionHandler creates a new SuggestionHandler
func NewSuggestionHandler(suggestions service.SuggestionService, logger *slog.Logger) *SuggestionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SuggestionHandler{
		suggestions: suggestions,
		logger:      logger.With(slog.String("component", "suggestion_handler")),
	}
}

// List handles GET /api/suggestions
func (h *SuggestionHandler) List(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	suggestions, err := h.suggestions.List(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, suggestionsToResponse(suggestions))
}

// Refresh handles POST /api/suggestions/refresh
func (h *SuggestionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	var req RefreshSuggestionsRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid date", err)
		return
	}

	suggestions, err := h.suggestions.Refresh(r.Context(), userID, date)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Info("suggestions refreshed", slog.String("date", req.Date), slog.Int("count", len(suggestions)))
	shared.RespondWithJSON(w, r, http.StatusOK, suggestionsToResponse(suggestions))
}

// AddToActivities handles POST /api/suggestions/{id}/activities
func (h *SuggestionHandler) AddToActivities(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, suggestionID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	activity, err := h.suggestions.AddToActivities(r.Context(), userID, suggestionID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, activityToResponse(activity))
}

// Delete handles DELETE /api/suggestions/{id}
func (h *SuggestionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, suggestionID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	if err := h.suggestions.Delete(r.Context(), userID, suggestionID); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
