package shared

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/suggestion-api/internal/service/auth"
)

// ContextKey is the type of request context keys set by the API.
type ContextKey string

const (
	// UserIDContextKey holds the authenticated user's uuid.UUID
	UserIDContextKey ContextKey = "userID"

	// ClaimsContextKey holds the verified *auth.Claims
	ClaimsContextKey ContextKey = "claims"

	// TraceIDKey holds the trace ID of the request
	TraceIDKey ContextKey = "traceID"

	// TraceIDLength is the number of random bytes in a trace ID
	TraceIDLength = 16
)

// SetTraceID adds a fresh trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, generateTraceID())
}

// GetTraceID returns the trace ID of ctx, or "" when none was set.
func GetTraceID(ctx context.Context) string {
	traceID, _ := ctx.Value(TraceIDKey).(string)
	return traceID
}

// WithClaims stores verified token claims and the user ID they name.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, ClaimsContextKey, claims)
	return context.WithValue(ctx, UserIDContextKey, claims.UserID)
}

// UserID returns the authenticated user, if any.
func UserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(UserIDContextKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// Claims returns the verified token claims, if any.
func Claims(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*auth.Claims)
	return c, ok && c != nil
}

// generateTraceID returns 32 hex characters. If the random source fails it
// falls back to the clock, which is unique enough for log correlation.
func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%032x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
