package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/suggestion-api/internal/api/shared"
)

// HealthChecker reports whether the service's dependencies answer.
// *task.Processor implements it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	CheckedAt time.Time `json:"checked_at"`
}

// HealthHandler serves the liveness endpoint
type HealthHandler struct {
	checker HealthChecker
	timeout time.Duration
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler. Checks time out after timeout.
func NewHealthHandler(checker HealthChecker, timeout time.Duration, logger *slog.Logger) *HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		checker: checker,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "health_handler")),
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", CheckedAt: time.Now().UTC()}
	status := http.StatusOK
	if !h.checker.HealthCheck(ctx) {
		h.logger.Warn("health check failed")
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	shared.RespondWithJSON(w, r, status, resp)
}
