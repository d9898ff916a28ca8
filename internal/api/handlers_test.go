package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/questboard-api/internal/api/shared"
	"github.com/phrazzld/questboard-api/internal/config"
	"github.com/phrazzld/questboard-api/internal/domain"
	"github.com/phrazzld/questboard-api/internal/service"
	"github.com/phrazzld/questboard-api/internal/service/assignment"
	"github.com/phrazzld/questboard-api/internal/service/auth"
	"github.com/phrazzld/questboard-api/internal/service/calibration"
	"github.com/phrazzld/questboard-api/internal/service/completion"
	"github.com/phrazzld/questboard-api/internal/service/recommendation"
	"github.com/phrazzld/questboard-api/internal/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserHeader = "X-Test-User"

type apiFixture struct {
	mem    *memstore.Store
	router http.Handler
	jwt    auth.JWTService
}

// newAPIFixture wires the handlers against memstore. Protected routes read
// the caller from testUserHeader instead of a bearer token.
func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	mem := memstore.New()
	jwtService, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:            "0123456789abcdef0123456789abcdef",
		TokenLifetimeMinutes: 60,
	})
	require.NoError(t, err)

	users := service.NewUserService(mem, mem.Users(), auth.NewBcryptHasher(4), nil)
	calibrator := calibration.NewCalibrator(mem, nil)
	recommender := recommendation.NewService(nil, nil, mem.Completions(), nil)

	authHandler := NewAuthHandler(users, jwtService, time.Hour, nil)
	taskHandler := NewTaskHandler(
		service.NewTaskService(mem.Tasks(), mem.Users(), nil),
		assignment.NewManager(mem, nil),
		completion.NewProcessor(mem, calibrator, nil),
		nil,
	)
	boardHandler := NewBoardHandler(
		service.NewBoardService(mem.Tasks(), mem.Users(), mem.Completions(), recommender, nil), nil)
	inviteHandler := NewInviteHandler(service.NewInviteService(mem.Invites(), mem.Users(), nil), nil)

	r := chi.NewRouter()
	r.Post("/api/auth/signup", authHandler.Signup)
	r.Post("/api/auth/login", authHandler.Login)
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				if id, err := strconv.ParseInt(req.Header.Get(testUserHeader), 10, 64); err == nil {
					req = req.WithContext(shared.WithUserID(req.Context(), id))
				}
				next.ServeHTTP(w, req)
			})
		})
		r.Get("/api/board", boardHandler.GetBoard)
		r.Get("/api/profile", boardHandler.GetProfile)
		r.Get("/api/leaderboard", boardHandler.GetLeaderboard)
		r.Post("/api/tasks", taskHandler.CreateTask)
		r.Delete("/api/tasks/{id}", taskHandler.DeleteTask)
		r.Post("/api/tasks/{id}/claim", taskHandler.ClaimTask)
		r.Post("/api/tasks/{id}/release", taskHandler.ReleaseTask)
		r.Post("/api/tasks/{id}/complete", taskHandler.CompleteTask)
		r.Post("/api/invites", inviteHandler.IssueInvite)
	})

	return &apiFixture{mem: mem, router: r, jwt: jwtService}
}

func (f *apiFixture) do(t *testing.T, method, path string, userID int64, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set(testUserHeader, strconv.FormatInt(userID, 10))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) user(t *testing.T, login string, admin bool) *domain.User {
	t.Helper()
	u := &domain.User{Login: login, Name: login, HashedPassword: "hash", IsAdmin: admin}
	require.NoError(t, f.mem.Users().Create(context.Background(), u))
	return u
}

func (f *apiFixture) task(t *testing.T, rank domain.Rank, tags ...string) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(rank, "slay the dragon", 2, tags)
	require.NoError(t, err)
	require.NoError(t, f.mem.Tasks().Create(context.Background(), task))
	return task
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAuthHandler_SignupAndLogin(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	invite, err := f.mem.Invites().Create(context.Background(), "01HZX3J6K6Q1W8Y7Z9A0B1C2D3")
	require.NoError(t, err)

	signup := SignupRequest{Invite: invite.Token, Login: "hero", Name: "Hero", Password: "correct-horse"}
	rec := f.do(t, http.MethodPost, "/api/auth/signup", 0, signup)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[AuthResponse](t, rec)
	assert.NotZero(t, created.UserID)
	assert.NotEmpty(t, created.ExpiresAt)
	claims, err := f.jwt.ValidateToken(context.Background(), created.Token)
	require.NoError(t, err)
	assert.Equal(t, created.UserID, claims.UserID)

	t.Run("invite is single use", func(t *testing.T) {
		again := signup
		again.Login = "sidekick"
		rec := f.do(t, http.MethodPost, "/api/auth/signup", 0, again)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invite is invalid or already used", decode[shared.ErrorResponse](t, rec).Error)
	})

	t.Run("login", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/login", 0, LoginRequest{Login: "hero", Password: "correct-horse"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, created.UserID, decode[AuthResponse](t, rec).UserID)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/login", 0, LoginRequest{Login: "hero", Password: "nope"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("validation failure", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/signup", 0, SignupRequest{Invite: "x", Login: "l", Name: "n", Password: "short"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid Password: too short", decode[shared.ErrorResponse](t, rec).Error)
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/login", 0, map[string]string{"login": "hero", "password": "x", "role": "admin"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTaskHandler_Lifecycle(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	alice := f.user(t, "alice", false)
	bob := f.user(t, "bob", false)
	task := f.task(t, domain.RankB, "sword", "dragon")
	path := fmt.Sprintf("/api/tasks/%d", task.ID)

	rec := f.do(t, http.MethodPost, path+"/claim", alice.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodPost, path+"/claim", bob.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Task is already claimed", decode[shared.ErrorResponse](t, rec).Error)

	rec = f.do(t, http.MethodPost, path+"/release", bob.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, path+"/complete", bob.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, path+"/complete", alice.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[domain.CompletionResult](t, rec)
	assert.Equal(t, int64(1), result.CompletionCount)
	assert.Equal(t, []string{"dragon", "sword"}, result.Tags)
	assert.Equal(t, domain.RankC, result.Class)
	assert.Nil(t, result.PreviousClass)

	rec = f.do(t, http.MethodPost, path+"/complete", alice.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Task is already completed", decode[shared.ErrorResponse](t, rec).Error)

	rec = f.do(t, http.MethodPost, path+"/release", alice.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTaskHandler_Errors(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	alice := f.user(t, "alice", false)
	task := f.task(t, domain.RankC)

	tests := []struct {
		name   string
		method string
		path   string
		userID int64
		want   int
	}{
		{"missing task", http.MethodPost, "/api/tasks/999/claim", alice.ID, http.StatusNotFound},
		{"malformed id", http.MethodPost, "/api/tasks/abc/claim", alice.ID, http.StatusBadRequest},
		{"negative id", http.MethodPost, "/api/tasks/-3/claim", alice.ID, http.StatusBadRequest},
		{"unauthenticated", http.MethodPost, fmt.Sprintf("/api/tasks/%d/claim", task.ID), 0, http.StatusUnauthorized},
		{"release unclaimed", http.MethodPost, fmt.Sprintf("/api/tasks/%d/release", task.ID), alice.ID, http.StatusConflict},
		{"complete unclaimed", http.MethodPost, fmt.Sprintf("/api/tasks/%d/complete", task.ID), alice.ID, http.StatusForbidden},
		{"delete as player", http.MethodDelete, fmt.Sprintf("/api/tasks/%d", task.ID), alice.ID, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.userID, nil)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestTaskHandler_AdminCreateAndDelete(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	admin := f.user(t, "admin", true)
	player := f.user(t, "player", false)

	body := map[string]any{
		"complexity":    "A",
		"description":   "map the caves",
		"expected_time": 3.5,
		"tags":          []string{"caves", "maps", "caves"},
	}

	rec := f.do(t, http.MethodPost, "/api/tasks", player.ID, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/tasks", admin.ID, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[domain.Task](t, rec)
	assert.Equal(t, domain.RankA, created.Complexity)
	assert.Equal(t, []string{"caves", "maps"}, created.Tags)

	rec = f.do(t, http.MethodPost, "/api/tasks", admin.ID, map[string]any{"complexity": 7, "description": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/tasks", admin.ID, map[string]any{"description": "no rank"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", created.ID), admin.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", created.ID), admin.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	finished := f.task(t, domain.RankB)
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/tasks/%d/claim", finished.ID), player.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/tasks/%d/complete", finished.ID), player.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", finished.ID), admin.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBoardHandler(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	alice := f.user(t, "alice", false)
	bob := f.user(t, "bob", false)
	first := f.task(t, domain.RankC, "herbs")
	second := f.task(t, domain.RankB)
	done := f.task(t, domain.RankA)

	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, fmt.Sprintf("/api/tasks/%d/claim", second.ID), alice.ID, nil).Code)
	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, fmt.Sprintf("/api/tasks/%d/claim", done.ID), bob.ID, nil).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, fmt.Sprintf("/api/tasks/%d/complete", done.ID), bob.ID, nil).Code)

	rec := f.do(t, http.MethodGet, "/api/board", alice.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decode[service.Board](t, rec)
	require.Len(t, board.Available, 1)
	assert.Equal(t, first.ID, board.Available[0].ID)
	require.Len(t, board.InProgress, 1)
	assert.Equal(t, second.ID, board.InProgress[0].ID)
	assert.Empty(t, board.Recommended)
	assert.Contains(t, rec.Body.String(), `"recommended":[]`)

	rec = f.do(t, http.MethodGet, "/api/profile", bob.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[service.Profile](t, rec)
	assert.Equal(t, int64(1), profile.Completed)
	assert.Equal(t, bob.ID, profile.User.ID)
	assert.NotContains(t, rec.Body.String(), "hash")

	rec = f.do(t, http.MethodGet, "/api/leaderboard", alice.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	leaders := decode[service.Leaderboard](t, rec)
	require.NotEmpty(t, leaders.Overall)
	assert.Equal(t, bob.ID, leaders.Overall[0].UserID)

	rec = f.do(t, http.MethodGet, "/api/profile", 404, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInviteHandler(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	admin := f.user(t, "admin", true)
	player := f.user(t, "player", false)

	rec := f.do(t, http.MethodPost, "/api/invites", admin.ID, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	invite := decode[InviteResponse](t, rec)
	assert.Len(t, invite.Token, 26)

	rec = f.do(t, http.MethodPost, "/api/invites", player.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
