package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Roles carried in the role claim.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// JWTService defines operations for managing JWT bearer tokens.
type JWTService interface {
	// GenerateToken creates a signed access token for userID with the given role.
	GenerateToken(ctx context.Context, userID uuid.UUID, role string) (string, error)

	// ValidateToken validates the provided token string and extracts the claims.
	// The sub claim must be a user id.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the verified contents of a bearer token.
type Claims struct {
	// UserID is parsed from the sub claim.
	UserID uuid.UUID `json:"sub"`

	// Role is empty for tokens issued without one.
	Role string `json:"role,omitempty"`

	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}

// IsAdmin reports whether the token grants access to admin routes.
func (c *Claims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}
