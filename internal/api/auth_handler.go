package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/questboard-api/internal/api/shared"
	"github.com/phrazzld/questboard-api/internal/domain"
	"github.com/phrazzld/questboard-api/internal/platform/logger"
	"github.com/phrazzld/questboard-api/internal/service"
	"github.com/phrazzld/questboard-api/internal/service/auth"
)

// AuthHandler handles signup and login.
type AuthHandler struct {
	userService   service.UserService
	jwtService    auth.JWTService
	tokenLifetime time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
// tokenLifetime only feeds the expires_at field of responses; the JWT
// service decides the actual expiry.
func NewAuthHandler(
	userService service.UserService,
	jwtService auth.JWTService,
	tokenLifetime time.Duration,
	logger *slog.Logger,
) *AuthHandler {
	if userService == nil || jwtService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("auth handler dependencies cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		userService:   userService,
		jwtService:    jwtService,
		tokenLifetime: tokenLifetime,
		now:           time.Now,
		logger:        logger.With(slog.String("component", "auth_handler")),
	}
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.userService.Signup(r.Context(), req.Invite, req.Login, req.Name, req.Password)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create user")
		return
	}

	h.respondWithToken(w, r, http.StatusCreated, user)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.userService.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to authenticate user")
		return
	}

	h.respondWithToken(w, r, http.StatusOK, user)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, user *domain.User) {
	token, err := h.jwtService.GenerateToken(r.Context(), user.ID)
	if err != nil {
		logger.FromContextOrDefault(r.Context(), h.logger).Error("failed to generate token",
			slog.Int64("user_id", user.ID))
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to generate authentication token", err)
		return
	}

	shared.RespondWithJSON(w, r, status, AuthResponse{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: h.now().Add(h.tokenLifetime).UTC().Format(time.RFC3339),
	})
}
