package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/phrazzld/questboard-api/internal/domain"
	"github.com/phrazzld/questboard-api/internal/platform/logger"
	"github.com/phrazzld/questboard-api/internal/store"
)

// InviteService issues signup invites.
type InviteService interface {
	// Issue creates a new invite on behalf of an administrator.
	// Returns ErrForbidden for non-admins.
	Issue(ctx context.Context, actorID int64) (*domain.InviteToken, error)

	// Bootstrap creates a new invite without an actor. It backs the CLI,
	// which is how the first administrator gets in.
	Bootstrap(ctx context.Context) (*domain.InviteToken, error)
}

type inviteServiceImpl struct {
	invites store.InviteStore
	users   store.UserStore
	logger  *slog.Logger
}

// Verify interface compliance at compile time
var _ InviteService = (*inviteServiceImpl)(nil)

// NewInviteService creates an InviteService.
func NewInviteService(invites store.InviteStore, users store.UserStore, logger *slog.Logger) InviteService {
	if invites == nil || users == nil {
		// ALLOW-PANIC: constructor misuse
		panic("invite service dependencies cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &inviteServiceImpl{
		invites: invites,
		users:   users,
		logger:  logger.With(slog.String("component", "invite_service")),
	}
}

// Issue implements InviteService.Issue.
func (s *inviteServiceImpl) Issue(ctx context.Context, actorID int64) (*domain.InviteToken, error) {
	if err := requireAdmin(ctx, s.users, actorID); err != nil {
		return nil, err
	}
	return s.mint(ctx, slog.Int64("actor_id", actorID))
}

// Bootstrap implements InviteService.Bootstrap.
func (s *inviteServiceImpl) Bootstrap(ctx context.Context) (*domain.InviteToken, error) {
	return s.mint(ctx, slog.String("actor", "cli"))
}

func (s *inviteServiceImpl) mint(ctx context.Context, actor slog.Attr) (*domain.InviteToken, error) {
	invite, err := s.invites.Create(ctx, ulid.Make().String())
	if err != nil {
		return nil, fmt.Errorf("failed to create invite: %w", err)
	}

	// the token itself is a credential and stays out of the logs
	logger.FromContextOrDefault(ctx, s.logger).Info("invite issued", actor)
	return invite, nil
}
