package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/questboard-api/internal/domain"
	"github.com/phrazzld/questboard-api/internal/platform/logger"
	"github.com/phrazzld/questboard-api/internal/service"
	"github.com/phrazzld/questboard-api/internal/service/assignment"
	"github.com/phrazzld/questboard-api/internal/service/auth"
	"github.com/phrazzld/questboard-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{store.ErrTaskNotFound, http.StatusNotFound},
		{fmt.Errorf("load: %w", store.ErrUserNotFound), http.StatusNotFound},
		{assignment.ErrAlreadyOwnedByOther, http.StatusConflict},
		{assignment.ErrNotClaimed, http.StatusConflict},
		{assignment.ErrAlreadyCompleted, http.StatusConflict},
		{store.ErrLoginExists, http.StatusConflict},
		{assignment.ErrNotOwner, http.StatusForbidden},
		{service.ErrForbidden, http.StatusForbidden},
		{domain.NewValidationError("description", "cannot be empty"), http.StatusBadRequest},
		{service.ErrInviteInvalid, http.StatusBadRequest},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{auth.ErrExpiredToken, http.StatusUnauthorized},
		{store.NewStoreError("task", "claim", "acquire", store.ErrPoolExhausted), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, MapErrorToStatusCode(tt.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Task not found", GetSafeErrorMessage(store.ErrTaskNotFound))
	assert.Equal(t, "Invalid description: cannot be empty",
		GetSafeErrorMessage(domain.NewValidationError("description", "cannot be empty")))
	assert.Equal(t, "An unexpected error occurred",
		GetSafeErrorMessage(errors.New(`pq: relation "users" password=hunter2`)))
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
}

func TestHandleAPIError(t *testing.T) {
	t.Parallel()

	t.Run("pool exhaustion is retryable", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HandleAPIError(rec, httptest.NewRequest(http.MethodPost, "/api/tasks/1/claim", nil),
			store.NewStoreError("task", "claim", "acquire", store.ErrPoolExhausted), "Failed to claim task")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))
		assert.Contains(t, rec.Body.String(), "Service temporarily unavailable")
	})

	t.Run("failed login is logged at warn", func(t *testing.T) {
		var buf bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		r = r.WithContext(logger.WithLogger(r.Context(), log))

		rec := httptest.NewRecorder()
		HandleAPIError(rec, r, service.ErrInvalidCredentials, "Failed to log in")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "WARN", entry["level"])
	})

	t.Run("fallback replaces the generic message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HandleAPIError(rec, httptest.NewRequest(http.MethodPost, "/", nil), errors.New("disk on fire"), "Failed to claim task")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "Failed to claim task")
		assert.NotContains(t, rec.Body.String(), "disk on fire")
	})
}
