package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/suggestion-api/internal/api"
	apiMiddleware "github.com/phrazzld/suggestion-api/internal/api/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)
	suggestionHandler := api.NewSuggestionHandler(app.suggestionService, app.logger)
	adminHandler := api.NewAdminHandler(app.queueService, app.dispatchTrigger, app.jobQueue, app.logger)
	healthHandler := api.NewHealthHandler(app.healthChecker, 0, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Group(func(r chi.Router) {
			r.Use(apiMiddleware.RateLimitPerUser(app.config.Suggestions.RateLimitPerMinute))

			r.Get("/suggestions", suggestionHandler.List)
			r.Post("/suggestions/refresh", suggestionHandler.Refresh)
			r.Post("/suggestions/{id}/activities", suggestionHandler.AddToActivities)
			r.Delete("/suggestions/{id}", suggestionHandler.Delete)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(apiMiddleware.RequireAdmin)

			r.Get("/queues", adminHandler.QueueStats)
			r.Post("/queues/{name}/pause", adminHandler.PauseQueue)
			r.Post("/queues/{name}/resume", adminHandler.ResumeQueue)
			r.Delete("/queues/{name}", adminHandler.ClearQueue)
			r.Delete("/queues/{name}/failed", adminHandler.ClearFailed)
			r.Delete("/queues/{name}/completed", adminHandler.ClearCompleted)

			r.Post("/dispatch/daily", adminHandler.DispatchDaily)
			r.Post("/dispatch/users/{id}", adminHandler.DispatchUser)
			r.Post("/jobs/health-check", adminHandler.EnqueueHealthCheck)
			r.Post("/jobs/bulk-generate", adminHandler.EnqueueBulkGenerate)
		})
	})

	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
