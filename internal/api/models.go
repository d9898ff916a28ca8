package api

import (
	"time"

	"github.com/phrazzld/questboard-api/internal/domain"
)

// SignupRequest defines the payload for the signup endpoint.
type SignupRequest struct {
	Invite   string `json:"invite"   validate:"required"`
	Login    string `json:"login"    validate:"required,max=64"`
	Name     string `json:"name"     validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Login    string `json:"login"    validate:"required"`
	Password string `json:"password" validate:"required,min=1"`
}

// AuthResponse defines the successful response for authentication endpoints.
type AuthResponse struct {
	// UserID is the identifier of the authenticated user
	UserID int64 `json:"user_id"`

	// Token is the JWT used for API authorization
	Token string `json:"token"`

	// ExpiresAt is the RFC 3339 timestamp when the token expires
	ExpiresAt string `json:"expires_at"`
}

// CreateTaskRequest defines the payload for creating a task.
// Complexity accepts a letter ("C", "B", "A") or its integer encoding.
type CreateTaskRequest struct {
	Complexity   *domain.Rank `json:"complexity"    validate:"required"`
	Description  string       `json:"description"   validate:"required,max=2000"`
	ExpectedTime float64      `json:"expected_time" validate:"gte=0"`
	Tags         []string     `json:"tags"          validate:"max=32,dive,required,max=64"`
}

// InviteResponse returns a freshly issued invite.
type InviteResponse struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// HealthResponse is the body of the liveness probe.
type HealthResponse struct {
	Status string `json:"status"`
}
