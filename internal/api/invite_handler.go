package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/questboard-api/internal/api/shared"
	"github.com/phrazzld/questboard-api/internal/platform/logger"
	"github.com/phrazzld/questboard-api/internal/service"
)

// InviteHandler lets administrators issue signup invites.
type InviteHandler struct {
	invites service.InviteService
	logger  *slog.Logger
}

// NewInviteHandler creates a new InviteHandler
func NewInviteHandler(invites service.InviteService, logger *slog.Logger) *InviteHandler {
	if invites == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("invite service cannot be nil for InviteHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InviteHandler{
		invites: invites,
		logger:  logger.With(slog.String("component", "invite_handler")),
	}
}

// IssueInvite handles POST /api/invites.
func (h *InviteHandler) IssueInvite(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	invite, err := h.invites.Issue(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to issue invite")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, InviteResponse{
		Token:     invite.Token,
		CreatedAt: invite.CreatedAt,
	})
}
