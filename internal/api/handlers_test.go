package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/suggestion-api/internal/api/shared"
	"github.com/phrazzld/suggestion-api/internal/domain"
	"github.com/phrazzld/suggestion-api/internal/queue"
	"github.com/phrazzld/suggestion-api/internal/scheduler"
	"github.com/phrazzld/suggestion-api/internal/service"
	"github.com/phrazzld/suggestion-api/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockSuggestionService struct {
	ListFn            func(ctx context.Context, userID uuid.UUID) ([]*domain.Suggestion, error)
	RefreshFn         func(ctx context.Context, userID uuid.UUID, date time.Time) ([]*domain.Suggestion, error)
	AddToActivitiesFn func(ctx context.Context, userID, id uuid.UUID) (*domain.Activity, error)
	DeleteFn          func(ctx context.Context, userID, id uuid.UUID) error
}

func (m *mockSuggestionService) List(ctx context.Context, userID uuid.UUID) ([]*domain.Suggestion, error) {
	return m.ListFn(ctx, userID)
}

func (m *mockSuggestionService) Refresh(ctx context.Context, userID uuid.UUID, date time.Time) ([]*domain.Suggestion, error) {
	return m.RefreshFn(ctx, userID, date)
}

func (m *mockSuggestionService) AddToActivities(ctx context.Context, userID, id uuid.UUID) (*domain.Activity, error) {
	return m.AddToActivitiesFn(ctx, userID, id)
}

func (m *mockSuggestionService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return m.DeleteFn(ctx, userID, id)
}

// withUser authenticates every request as userID.
func withUser(userID uuid.UUID, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.WithClaims(r.Context(), &auth.Claims{UserID: userID, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func suggestionRouter(svc service.SuggestionService, userID uuid.UUID) http.Handler {
	h := NewSuggestionHandler(svc, testLogger())
	r := chi.NewRouter()
	if userID != uuid.Nil {
		r.Use(withUser(userID, ""))
	}
	r.Get("/api/suggestions", h.List)
	r.Post("/api/suggestions/refresh", h.Refresh)
	r.Post("/api/suggestions/{id}/activities", h.AddToActivities)
	r.Delete("/api/suggestions/{id}", h.Delete)
	return r
}

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, reader))
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp shared.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func sampleSuggestion(userID uuid.UUID) *domain.Suggestion {
	return &domain.Suggestion{
		ID:              uuid.New(),
		UserID:          userID,
		ActivityName:    "Morning run",
		ActivityType:    "exercise",
		Content:         "Run 5k before work.",
		Reasoning:       "You rate early workouts highly.",
		ConfidenceScore: 88,
		SuggestedDate:   today,
		CreatedAt:       today.Add(time.Hour),
	}
}

func TestSuggestionHandler_List(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	s := sampleSuggestion(userID)
	svc := &mockSuggestionService{
		ListFn: func(_ context.Context, got uuid.UUID) ([]*domain.Suggestion, error) {
			assert.Equal(t, userID, got)
			return []*domain.Suggestion{s}, nil
		},
	}

	w := serve(t, suggestionRouter(svc, userID), http.MethodGet, "/api/suggestions", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp SuggestionListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Suggestions, 1)
	assert.Equal(t, s.ID.String(), resp.Suggestions[0].ID)
	assert.Equal(t, "2024-02-01", resp.Suggestions[0].SuggestedDate)
	assert.Equal(t, 88, resp.Suggestions[0].ConfidenceScore)
	assert.NotContains(t, w.Body.String(), "user_id")
}

func TestSuggestionHandler_ListEmpty(t *testing.T) {
	t.Parallel()

	svc := &mockSuggestionService{
		ListFn: func(context.Context, uuid.UUID) ([]*domain.Suggestion, error) { return nil, nil },
	}
	w := serve(t, suggestionRouter(svc, uuid.New()), http.MethodGet, "/api/suggestions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"suggestions":[]}`, w.Body.String())
}

func TestSuggestionHandler_Unauthenticated(t *testing.T) {
	t.Parallel()

	router := suggestionRouter(&mockSuggestionService{}, uuid.Nil)
	for _, tc := range []struct{ method, target string }{
		{http.MethodGet, "/api/suggestions"},
		{http.MethodPost, "/api/suggestions/refresh"},
		{http.MethodPost, "/api/suggestions/" + uuid.NewString() + "/activities"},
		{http.MethodDelete, "/api/suggestions/" + uuid.NewString()},
	} {
		w := serve(t, router, tc.method, tc.target, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.target)
	}
}

func TestSuggestionHandler_Refresh(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("valid date", func(t *testing.T) {
		t.Parallel()
		var gotDate time.Time
		svc := &mockSuggestionService{
			RefreshFn: func(_ context.Context, _ uuid.UUID, date time.Time) ([]*domain.Suggestion, error) {
				gotDate = date
				return []*domain.Suggestion{sampleSuggestion(userID)}, nil
			},
		}

		w := serve(t, suggestionRouter(svc, userID), http.MethodPost, "/api/suggestions/refresh", `{"date":"2024-02-03"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), gotDate)
	})

	bad := []struct {
		name    string
		body    string
		message string
	}{
		{name: "malformed json", body: `{"date":`, message: "Invalid request format"},
		{name: "missing date", body: `{}`, message: "Invalid date: required field"},
		{name: "wrong format", body: `{"date":"02/03/2024"}`, message: "Invalid date: expected YYYY-MM-DD"},
		{name: "unknown field", body: `{"date":"2024-02-03","user_id":"x"}`, message: "Invalid request format"},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &mockSuggestionService{
				RefreshFn: func(context.Context, uuid.UUID, time.Time) ([]*domain.Suggestion, error) {
					t.Fatal("service must not be called")
					return nil, nil
				},
			}
			w := serve(t, suggestionRouter(svc, userID), http.MethodPost, "/api/suggestions/refresh", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.message, errorBody(t, w))
		})
	}
}

func TestSuggestionHandler_AddToActivities(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	s := sampleSuggestion(userID)
	activity, err := domain.NewActivityFromSuggestion(s, today.Add(9*time.Hour))
	require.NoError(t, err)

	svc := &mockSuggestionService{
		AddToActivitiesFn: func(_ context.Context, gotUser, gotID uuid.UUID) (*domain.Activity, error) {
			assert.Equal(t, userID, gotUser)
			assert.Equal(t, s.ID, gotID)
			return activity, nil
		},
	}

	w := serve(t, suggestionRouter(svc, userID), http.MethodPost, "/api/suggestions/"+s.ID.String()+"/activities", "")
	require.Equal(t, http.StatusCreated, w.Code)

	var resp ActivityResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, activity.ID.String(), resp.ID)
	assert.Equal(t, "open", resp.Status)
	assert.Equal(t, "2024-02-01", resp.ScheduledFor)
	assert.Equal(t, s.ID.String(), resp.SourceSuggestionID)
}

func TestSuggestionHandler_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"not found", domain.ErrSuggestionNotFound, http.StatusNotFound, "Suggestion not found"},
		{"already used", domain.ErrSuggestionAlreadyUsed, http.StatusConflict, "Suggestion already added to activities"},
		{"limit", domain.ErrDailyLimitExceeded, http.StatusTooManyRequests, "Daily suggestion limit reached"},
		{
			"wrapped persistence",
			service.NewSuggestionServiceError("add_to_activities", "failed", errors.New("pq: password=hunter2")),
			http.StatusInternalServerError,
			"An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &mockSuggestionService{
				AddToActivitiesFn: func(context.Context, uuid.UUID, uuid.UUID) (*domain.Activity, error) {
					return nil, tt.err
				},
			}
			w := serve(t, suggestionRouter(svc, uuid.New()), http.MethodPost,
				"/api/suggestions/"+uuid.NewString()+"/activities", "")
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantMsg, errorBody(t, w))
			assert.NotContains(t, w.Body.String(), "hunter2")
		})
	}
}

func TestSuggestionHandler_Delete(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	id := uuid.New()
	svc := &mockSuggestionService{
		DeleteFn: func(_ context.Context, gotUser, gotID uuid.UUID) error {
			if gotUser != userID || gotID != id {
				return domain.ErrSuggestionNotFound
			}
			return nil
		},
	}
	router := suggestionRouter(svc, userID)

	w := serve(t, router, http.MethodDelete, "/api/suggestions/"+id.String(), "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(t, router, http.MethodDelete, "/api/suggestions/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(t, router, http.MethodDelete, "/api/suggestions/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid id", errorBody(t, w))
}

type mockQueueControl struct {
	StatsFn          func(ctx context.Context) ([]service.QueueStats, error)
	PauseFn          func(ctx context.Context, name string) error
	ResumeFn         func(ctx context.Context, name string) error
	ClearAllFn       func(ctx context.Context, name string) (service.ClearResult, error)
	ClearFailedFn    func(ctx context.Context, name string) (int64, error)
	ClearCompletedFn func(ctx context.Context, name string) (int64, error)
}

func (m *mockQueueControl) Stats(ctx context.Context) ([]service.QueueStats, error) {
	return m.StatsFn(ctx)
}
func (m *mockQueueControl) Pause(ctx context.Context, name string) error  { return m.PauseFn(ctx, name) }
func (m *mockQueueControl) Resume(ctx context.Context, name string) error { return m.ResumeFn(ctx, name) }
func (m *mockQueueControl) ClearAll(ctx context.Context, name string) (service.ClearResult, error) {
	return m.ClearAllFn(ctx, name)
}
func (m *mockQueueControl) ClearFailed(ctx context.Context, name string) (int64, error) {
	return m.ClearFailedFn(ctx, name)
}
func (m *mockQueueControl) ClearCompleted(ctx context.Context, name string) (int64, error) {
	return m.ClearCompletedFn(ctx, name)
}

type mockDispatcher struct {
	dailyResult *scheduler.DispatchResult
	dailyErr    error
	userDates   []time.Time
	userErr     error
}

func (m *mockDispatcher) TriggerDaily(context.Context) (*scheduler.DispatchResult, error) {
	return m.dailyResult, m.dailyErr
}

func (m *mockDispatcher) TriggerUser(_ context.Context, _ uuid.UUID, date time.Time) (string, error) {
	m.userDates = append(m.userDates, date)
	return "42", m.userErr
}

type enqueuerFunc func(ctx context.Context, job domain.Job, opts queue.AddOptions) (string, error)

func (f enqueuerFunc) Add(ctx context.Context, job domain.Job, opts queue.AddOptions) (string, error) {
	return f(ctx, job, opts)
}

func adminRouter(h *AdminHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(withUser(uuid.New(), auth.RoleAdmin))
	r.Get("/api/admin/queues", h.QueueStats)
	r.Post("/api/admin/queues/{name}/pause", h.PauseQueue)
	r.Post("/api/admin/queues/{name}/resume", h.ResumeQueue)
	r.Delete("/api/admin/queues/{name}", h.ClearQueue)
	r.Delete("/api/admin/queues/{name}/failed", h.ClearFailed)
	r.Delete("/api/admin/queues/{name}/completed", h.ClearCompleted)
	r.Post("/api/admin/dispatch/daily", h.DispatchDaily)
	r.Post("/api/admin/dispatch/users/{id}", h.DispatchUser)
	r.Post("/api/admin/jobs/health-check", h.EnqueueHealthCheck)
	r.Post("/api/admin/jobs/bulk-generate", h.EnqueueBulkGenerate)
	return r
}

func TestAdminHandler_Queues(t *testing.T) {
	t.Parallel()

	var calls []string
	record := func(op string) func(context.Context, string) error {
		return func(_ context.Context, name string) error {
			calls = append(calls, op+":"+name)
			if name != "suggestions" {
				return fmt.Errorf("queue %s: %w", name, domain.ErrQueueNotFound)
			}
			return nil
		}
	}
	queues := &mockQueueControl{
		StatsFn: func(context.Context) ([]service.QueueStats, error) {
			return []service.QueueStats{{Name: "suggestions", Waiting: 3, Paused: true}}, nil
		},
		PauseFn:  record("pause"),
		ResumeFn: record("resume"),
		ClearAllFn: func(context.Context, string) (service.ClearResult, error) {
			return service.ClearResult{Removed: 7, UsedFallback: true}, nil
		},
		ClearFailedFn:    func(context.Context, string) (int64, error) { return 2, nil },
		ClearCompletedFn: func(context.Context, string) (int64, error) { return 5, nil },
	}
	router := adminRouter(NewAdminHandler(queues, &mockDispatcher{}, nil, testLogger()))

	w := serve(t, router, http.MethodGet, "/api/admin/queues", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"queues":[{"name":"suggestions","waiting":3,"active":0,"completed":0,"failed":0,"delayed":0,"paused":true}]}`,
		w.Body.String())

	assert.Equal(t, http.StatusNoContent, serve(t, router, http.MethodPost, "/api/admin/queues/suggestions/pause", "").Code)
	assert.Equal(t, http.StatusNoContent, serve(t, router, http.MethodPost, "/api/admin/queues/suggestions/resume", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(t, router, http.MethodPost, "/api/admin/queues/emails/pause", "").Code)
	assert.Equal(t, []string{"pause:suggestions", "resume:suggestions", "pause:emails"}, calls)

	w = serve(t, router, http.MethodDelete, "/api/admin/queues/suggestions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":7,"used_fallback":true}`, w.Body.String())

	w = serve(t, router, http.MethodDelete, "/api/admin/queues/suggestions/failed", "")
	assert.JSONEq(t, `{"removed":2}`, w.Body.String())
	w = serve(t, router, http.MethodDelete, "/api/admin/queues/suggestions/completed", "")
	assert.JSONEq(t, `{"removed":5}`, w.Body.String())
}

func TestAdminHandler_Dispatch(t *testing.T) {
	t.Parallel()

	t.Run("daily", func(t *testing.T) {
		t.Parallel()
		d := &mockDispatcher{dailyResult: &scheduler.DispatchResult{TargetDate: "2024-02-01", Enqueued: 251, Pages: 3}}
		w := serve(t, adminRouter(NewAdminHandler(&mockQueueControl{}, d, nil, testLogger())),
			http.MethodPost, "/api/admin/dispatch/daily", "")
		require.Equal(t, http.StatusOK, w.Code)

		var got scheduler.DispatchResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, 251, got.Enqueued)
	})

	t.Run("daily while a run holds the guard", func(t *testing.T) {
		t.Parallel()
		d := &mockDispatcher{dailyErr: domain.ErrDispatchInProgress}
		w := serve(t, adminRouter(NewAdminHandler(&mockQueueControl{}, d, nil, testLogger())),
			http.MethodPost, "/api/admin/dispatch/daily", "")
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("user", func(t *testing.T) {
		t.Parallel()
		d := &mockDispatcher{}
		router := adminRouter(NewAdminHandler(&mockQueueControl{}, d, nil, testLogger()))

		w := serve(t, router, http.MethodPost, "/api/admin/dispatch/users/"+uuid.NewString(), "")
		require.Equal(t, http.StatusAccepted, w.Code)
		assert.JSONEq(t, `{"job_id":"42"}`, w.Body.String())

		w = serve(t, router, http.MethodPost, "/api/admin/dispatch/users/"+uuid.NewString()+"?date=2024-03-01", "")
		require.Equal(t, http.StatusAccepted, w.Code)

		w = serve(t, router, http.MethodPost, "/api/admin/dispatch/users/"+uuid.NewString()+"?date=tomorrow", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		w = serve(t, router, http.MethodPost, "/api/admin/dispatch/users/nobody", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		assert.Equal(t, []time.Time{{}, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}, d.userDates)
	})
}

func TestAdminHandler_EnqueueHealthCheck(t *testing.T) {
	t.Parallel()

	var got domain.Job
	var gotOpts queue.AddOptions
	jobs := enqueuerFunc(func(_ context.Context, job domain.Job, opts queue.AddOptions) (string, error) {
		got, gotOpts = job, opts
		return "7", nil
	})
	router := adminRouter(NewAdminHandler(&mockQueueControl{}, &mockDispatcher{}, jobs, testLogger()))

	w := serve(t, router, http.MethodPost, "/api/admin/jobs/health-check", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"job_id":"7"}`, w.Body.String())
	assert.Equal(t, domain.HealthCheckJob{}, got)
	assert.Equal(t, queue.PriorityHigh, gotOpts.Priority)

	failing := enqueuerFunc(func(context.Context, domain.Job, queue.AddOptions) (string, error) {
		return "", errors.New("redis: connection refused")
	})
	w = serve(t, adminRouter(NewAdminHandler(&mockQueueControl{}, &mockDispatcher{}, failing, testLogger())),
		http.MethodPost, "/api/admin/jobs/health-check", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAdminHandler_EnqueueBulkGenerate(t *testing.T) {
	t.Parallel()

	first, second := uuid.New(), uuid.New()

	t.Run("queues one job for all users", func(t *testing.T) {
		t.Parallel()

		var got domain.Job
		var gotOpts queue.AddOptions
		jobs := enqueuerFunc(func(_ context.Context, job domain.Job, opts queue.AddOptions) (string, error) {
			got, gotOpts = job, opts
			return "42", nil
		})
		router := adminRouter(NewAdminHandler(&mockQueueControl{}, &mockDispatcher{}, jobs, testLogger()))

		body := fmt.Sprintf(`{"user_ids":[%q,%q],"date":"2024-02-01"}`, first, second)
		w := serve(t, router, http.MethodPost, "/api/admin/jobs/bulk-generate", body)
		require.Equal(t, http.StatusAccepted, w.Code)
		assert.JSONEq(t, `{"job_id":"42"}`, w.Body.String())
		assert.Equal(t, domain.BulkGenerateJob{
			UserIDs:    []uuid.UUID{first, second},
			TargetDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		}, got)
		assert.Equal(t, queue.PriorityLow, gotOpts.Priority)
	})

	t.Run("date defaults to today", func(t *testing.T) {
		t.Parallel()

		var got domain.BulkGenerateJob
		jobs := enqueuerFunc(func(_ context.Context, job domain.Job, _ queue.AddOptions) (string, error) {
			got = job.(domain.BulkGenerateJob)
			return "43", nil
		})
		router := adminRouter(NewAdminHandler(&mockQueueControl{}, &mockDispatcher{}, jobs, testLogger()))

		w := serve(t, router, http.MethodPost, "/api/admin/jobs/bulk-generate", fmt.Sprintf(`{"user_ids":[%q]}`, first))
		require.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, domain.NormalizeDate(got.TargetDate), got.TargetDate)
		assert.WithinDuration(t, time.Now().UTC(), got.TargetDate, 24*time.Hour)
	})

	invalid := []struct {
		name string
		body string
	}{
		{"no users", `{"user_ids":[]}`},
		{"missing users", `{"date":"2024-02-01"}`},
		{"malformed user id", `{"user_ids":["not-a-uuid"]}`},
		{"nil user id", `{"user_ids":["00000000-0000-0000-0000-000000000000"]}`},
		{"bad date", fmt.Sprintf(`{"user_ids":[%q],"date":"02/01/2024"}`, first)},
		{"unknown field", fmt.Sprintf(`{"user_ids":[%q],"priority":1}`, first)},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			jobs := enqueuerFunc(func(context.Context, domain.Job, queue.AddOptions) (string, error) {
				t.Fatal("job must not be queued")
				return "", nil
			})
			router := adminRouter(NewAdminHandler(&mockQueueControl{}, &mockDispatcher{}, jobs, testLogger()))

			w := serve(t, router, http.MethodPost, "/api/admin/jobs/bulk-generate", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	t.Run("queue unavailable", func(t *testing.T) {
		t.Parallel()

		jobs := enqueuerFunc(func(context.Context, domain.Job, queue.AddOptions) (string, error) {
			return "", errors.New("redis: connection refused")
		})
		router := adminRouter(NewAdminHandler(&mockQueueControl{}, &mockDispatcher{}, jobs, testLogger()))

		w := serve(t, router, http.MethodPost, "/api/admin/jobs/bulk-generate", fmt.Sprintf(`{"user_ids":[%q]}`, first))
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestAdminHandler_ClearQueueWarnsAboutRemovedSchedules(t *testing.T) {
	t.Parallel()

	queues := &mockQueueControl{
		ClearAllFn: func(context.Context, string) (service.ClearResult, error) {
			return service.ClearResult{Removed: 3, RemovedSchedules: []string{"daily-suggestions"}}, nil
		},
	}
	router := adminRouter(NewAdminHandler(queues, &mockDispatcher{}, nil, testLogger()))

	w := serve(t, router, http.MethodDelete, "/api/admin/queues/suggestions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, fmt.Sprintf(
		`{"removed":3,"used_fallback":false,"removed_schedules":["daily-suggestions"],"warning":%q}`,
		schedulesRemovedWarning), w.Body.String())
}

type checkerFunc func(ctx context.Context) bool

func (f checkerFunc) HealthCheck(ctx context.Context) bool { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		healthy    bool
		wantStatus int
		wantBody   string
	}{
		{"healthy", true, http.StatusOK, "ok"},
		{"unhealthy", false, http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewHealthHandler(checkerFunc(func(ctx context.Context) bool {
				_, hasDeadline := ctx.Deadline()
				assert.True(t, hasDeadline)
				return tt.healthy
			}), time.Second, testLogger())

			w := httptest.NewRecorder()
			h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.wantStatus, w.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantBody, resp.Status)
		})
	}
}
