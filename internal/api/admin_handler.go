package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/suggestion-api/internal/api/shared"
	"github.com/phrazzld/suggestion-api/internal/domain"
	"github.com/phrazzld/suggestion-api/internal/platform/logger"
	"github.com/phrazzld/suggestion-api/internal/queue"
	"github.com/phrazzld/suggestion-api/internal/scheduler"
	"github.com/phrazzld/suggestion-api/internal/service"
)

// DispatchTrigger starts dispatch runs on demand. *scheduler.Dispatcher
// implements it.
type DispatchTrigger interface {
	TriggerDaily(ctx context.Context) (*scheduler.DispatchResult, error)
	TriggerUser(ctx context.Context, userID uuid.UUID, date time.Time) (string, error)
}

// JobEnqueuer adds a single job. *queue.Queue implements it.
type JobEnqueuer interface {
	Add(ctx context.Context, job domain.Job, opts queue.AddOptions) (string, error)
}

// AdminHandler handles the operator endpoints
type AdminHandler struct {
	queues     service.QueueControlService
	dispatcher DispatchTrigger
	jobs       JobEnqueuer
	logger     *slog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	queues service.QueueControlService,
	dispatcher DispatchTrigger,
	jobs JobEnqueuer,
	logger *slog.Logger,
) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		queues:     queues,
		dispatcher: dispatcher,
		jobs:       jobs,
		logger:     logger.With(slog.String("component", "admin_handler")),
	}
}

// QueueStats handles GET /api/admin/queues
func (h *AdminHandler) QueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queues.Stats(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]any{"queues": stats})
}

// PauseQueue handles POST /api/admin/queues/{name}/pause
func (h *AdminHandler) PauseQueue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.queues.Pause(r.Context(), name); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	h.audit(r, "queue paused", slog.String("queue", name))
	w.WriteHeader(http.StatusNoContent)
}

// ResumeQueue handles POST /api/admin/queues/{name}/resume
func (h *AdminHandler) ResumeQueue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.queues.Resume(r.Context(), name); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	h.audit(r, "queue resumed", slog.String("queue", name))
	w.WriteHeader(http.StatusNoContent)
}

// ClearQueue handles DELETE /api/admin/queues/{name}
func (h *AdminHandler) ClearQueue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	result, err := h.queues.ClearAll(r.Context(), name)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	h.audit(r, "queue cleared",
		slog.String("queue", name),
		slog.Int64("removed", result.Removed),
		slog.Bool("used_fallback", result.UsedFallback),
		slog.Any("removed_schedules", result.RemovedSchedules))

	resp := ClearQueueResponse{ClearResult: result}
	if len(result.RemovedSchedules) > 0 {
		resp.Warning = schedulesRemovedWarning
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// ClearFailed handles DELETE /api/admin/queues/{name}/failed
func (h *AdminHandler) ClearFailed(w http.ResponseWriter, r *http.Request) {
	h.clearState(w, r, h.queues.ClearFailed)
}

// ClearCompleted handles DELETE /api/admin/queues/{name}/completed
func (h *AdminHandler) ClearCompleted(w http.ResponseWriter, r *http.Request) {
	h.clearState(w, r, h.queues.ClearCompleted)
}

func (h *AdminHandler) clearState(
	w http.ResponseWriter,
	r *http.Request,
	clear func(ctx context.Context, name string) (int64, error),
) {
	name := chi.URLParam(r, "name")
	removed, err := clear(r.Context(), name)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	h.audit(r, "queue jobs removed", slog.String("queue", name), slog.Int64("removed", removed))
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]int64{"removed": removed})
}

// DispatchDaily handles POST /api/admin/dispatch/daily
func (h *AdminHandler) DispatchDaily(w http.ResponseWriter, r *http.Request) {
	result, err := h.dispatcher.TriggerDaily(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	h.audit(r, "daily dispatch triggered", slog.Int("enqueued", result.Enqueued))
	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// DispatchUser handles POST /api/admin/dispatch/users/{id}. An optional
// date query parameter (YYYY-MM-DD) selects the day; it defaults to today.
func (h *AdminHandler) DispatchUser(w http.ResponseWriter, r *http.Request) {
	userID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "Invalid id")
		return
	}

	var date time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		date, err = time.Parse(time.DateOnly, raw)
		if err != nil {
			HandleAPIError(w, r, fmt.Errorf("%w: %w", domain.ErrInvalidDate, err), "Invalid date")
			return
		}
	}

	jobID, err := h.dispatcher.TriggerUser(r.Context(), userID, date)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	h.audit(r, "user dispatch triggered", slog.String("target_user_id", userID.String()), slog.String("job_id", jobID))
	shared.RespondWithJSON(w, r, http.StatusAccepted, JobEnqueuedResponse{JobID: jobID})
}

// EnqueueHealthCheck handles POST /api/admin/jobs/health-check
func (h *AdminHandler) EnqueueHealthCheck(w http.ResponseWriter, r *http.Request) {
	jobID, err := h.jobs.Add(r.Context(), domain.HealthCheckJob{}, queue.AddOptions{Priority: queue.PriorityHigh})
	if err != nil {
		HandleAPIError(w, r, fmt.Errorf("%w: %w", domain.ErrExternalService, err), "")
		return
	}
	h.audit(r, "health check enqueued", slog.String("job_id", jobID))
	shared.RespondWithJSON(w, r, http.StatusAccepted, JobEnqueuedResponse{JobID: jobID})
}

// EnqueueBulkGenerate handles POST /api/admin/jobs/bulk-generate. It queues
// one job that generates suggestions for every listed user. The date
// defaults to today in UTC.
func (h *AdminHandler) EnqueueBulkGenerate(w http.ResponseWriter, r *http.Request) {
	var req BulkGenerateRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	userIDs := make([]uuid.UUID, 0, len(req.UserIDs))
	for _, raw := range req.UserIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid user id", err)
			return
		}
		userIDs = append(userIDs, id)
	}

	date := time.Now().UTC()
	if req.Date != "" {
		parsed, err := time.Parse(time.DateOnly, req.Date)
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid date", err)
			return
		}
		date = parsed
	}

	job := domain.BulkGenerateJob{UserIDs: userIDs, TargetDate: domain.NormalizeDate(date)}
	if err := job.Validate(); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request", err)
		return
	}

	jobID, err := h.jobs.Add(r.Context(), job, queue.AddOptions{Priority: queue.PriorityLow})
	if err != nil {
		HandleAPIError(w, r, fmt.Errorf("%w: %w", domain.ErrExternalService, err), "")
		return
	}
	h.audit(r, "bulk generation enqueued",
		slog.String("job_id", jobID),
		slog.Int("users", len(userIDs)),
		slog.String("target_date", job.TargetDate.Format(time.DateOnly)))
	shared.RespondWithJSON(w, r, http.StatusAccepted, JobEnqueuedResponse{JobID: jobID})
}

// audit logs an operator action at INFO with the acting admin.
func (h *AdminHandler) audit(r *http.Request, msg string, attrs ...any) {
	logger.FromContextOrDefault(r.Context(), h.logger).Info(msg, attrs...)
}
