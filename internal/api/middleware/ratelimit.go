package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/phrazzld/suggestion-api/internal/api/shared"
)

// KeyByUser keys rate limits by the authenticated user, falling back to the
// client IP for anonymous requests.
func KeyByUser(r *http.Request) (string, error) {
	if id, ok := shared.UserID(r.Context()); ok {
		return "user:" + id.String(), nil
	}
	return httprate.KeyByIP(r)
}

// RateLimitPerUser allows requestsPerMinute requests per user per minute.
// A non-positive limit disables limiting.
func RateLimitPerUser(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(KeyByUser),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			shared.RespondWithError(w, r, http.StatusTooManyRequests, "Too many requests")
		}),
	)
}
