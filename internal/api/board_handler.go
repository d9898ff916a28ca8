package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/questboard-api/internal/api/shared"
	"github.com/phrazzld/questboard-api/internal/platform/logger"
	"github.com/phrazzld/questboard-api/internal/service"
)

// BoardHandler serves the read-side views: board, profile, leaderboard.
type BoardHandler struct {
	boards service.BoardService
	logger *slog.Logger
}

// NewBoardHandler creates a new BoardHandler
func NewBoardHandler(boards service.BoardService, logger *slog.Logger) *BoardHandler {
	if boards == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("board service cannot be nil for BoardHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BoardHandler{
		boards: boards,
		logger: logger.With(slog.String("component", "board_handler")),
	}
}

// GetBoard handles GET /api/board.
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	board, err := h.boards.Board(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load board")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, board)
}

// GetProfile handles GET /api/profile.
func (h *BoardHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	profile, err := h.boards.Profile(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load profile")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, profile)
}

// GetLeaderboard handles GET /api/leaderboard.
func (h *BoardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	board, err := h.boards.Leaderboard(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load leaderboard")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, board)
}
