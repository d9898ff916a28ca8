package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/phrazzld/questboard-api/internal/api"
	apiMiddleware "github.com/phrazzld/questboard-api/internal/api/middleware"
	"github.com/phrazzld/questboard-api/internal/api/shared"
)

// requestTimeout bounds every API request, scorer calls included.
const requestTimeout = 30 * time.Second

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: app.config.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{apiMiddleware.TraceIDHeader},
		MaxAge:         300,
	}).Handler)

	authHandler := api.NewAuthHandler(
		app.services.users,
		app.services.jwt,
		time.Duration(app.config.Auth.TokenLifetimeMinutes)*time.Minute,
		app.logger,
	)
	taskHandler := api.NewTaskHandler(app.services.tasks, app.services.manager, app.services.processor, app.logger)
	boardHandler := api.NewBoardHandler(app.services.boards, app.logger)
	inviteHandler := api.NewInviteHandler(app.services.invites, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.services.jwt)

	r.Route("/api", func(r chi.Router) {
		// Authentication endpoints (public)
		r.Post("/auth/signup", authHandler.Signup)
		r.Post("/auth/login", authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Get("/board", boardHandler.GetBoard)
			r.Get("/profile", boardHandler.GetProfile)
			r.Get("/leaderboard", boardHandler.GetLeaderboard)

			r.Post("/tasks", taskHandler.CreateTask)
			r.Delete("/tasks/{id}", taskHandler.DeleteTask)
			r.Post("/tasks/{id}/claim", taskHandler.ClaimTask)
			r.Post("/tasks/{id}/release", taskHandler.ReleaseTask)
			r.Post("/tasks/{id}/complete", taskHandler.CompleteTask)

			r.Post("/invites", inviteHandler.IssueInvite)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := app.ready(r.Context()); err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "unavailable", err)
			return
		}
		shared.RespondWithJSON(w, r, http.StatusOK, api.HealthResponse{Status: "ok"})
	})

	return r
}
