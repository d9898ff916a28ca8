package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/questboard-api/internal/domain"
	"github.com/phrazzld/questboard-api/internal/platform/logger"
	"github.com/phrazzld/questboard-api/internal/service/recommendation"
	"github.com/phrazzld/questboard-api/internal/store"
)

// LeaderboardSize is the number of players shown per leaderboard.
const LeaderboardSize = 10

// Board is the quest board as one player sees it.
type Board struct {
	// Available lists every unclaimed, unfinished task.
	Available []*domain.Task `json:"available"`
	// Recommended holds indexes into Available, best first.
	Recommended []int `json:"recommended"`
	// InProgress lists the tasks the player holds.
	InProgress []*domain.Task `json:"in_progress"`
}

// Profile is a player's own view of their progress.
type Profile struct {
	User      *domain.User `json:"user"`
	Completed int64        `json:"completed"`
}

// Leaderboard ranks players by completions, overall and within the
// viewer's class.
type Leaderboard struct {
	Class   domain.Rank             `json:"class"`
	Overall []domain.PlayerStanding `json:"overall"`
	InClass []domain.PlayerStanding `json:"in_class"`
}

// BoardService assembles the read-side views of the game.
type BoardService interface {
	// Board lists available and in-progress tasks for userID together with
	// recommended positions. A failing scorer yields no recommendations
	// rather than an error.
	Board(ctx context.Context, userID int64) (*Board, error)

	// Profile returns the user and their completion count.
	Profile(ctx context.Context, userID int64) (*Profile, error)

	// Leaderboard returns the top players overall and in the user's class.
	Leaderboard(ctx context.Context, userID int64) (*Leaderboard, error)
}

type boardServiceImpl struct {
	tasks       store.TaskStore
	users       store.UserStore
	completions store.CompletionStore
	recommender recommendation.Service
	logger      *slog.Logger
}

// Verify interface compliance at compile time
var _ BoardService = (*boardServiceImpl)(nil)

// NewBoardService creates a BoardService.
func NewBoardService(
	tasks store.TaskStore,
	users store.UserStore,
	completions store.CompletionStore,
	recommender recommendation.Service,
	logger *slog.Logger,
) BoardService {
	if tasks == nil || users == nil || completions == nil || recommender == nil {
		// ALLOW-PANIC: constructor misuse
		panic("board service dependencies cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &boardServiceImpl{
		tasks:       tasks,
		users:       users,
		completions: completions,
		recommender: recommender,
		logger:      logger.With(slog.String("component", "board_service")),
	}
}

// Board implements BoardService.Board.
func (s *boardServiceImpl) Board(ctx context.Context, userID int64) (*Board, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	available, err := store.Collect(s.tasks.Available(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list available tasks: %w", err)
	}

	inProgress, err := store.Collect(s.tasks.Assigned(ctx, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to list claimed tasks: %w", err)
	}

	recommended := []int{}
	if len(available) > 0 {
		profile, err := s.recommender.ProfileFor(ctx, user)
		if err != nil {
			log.Warn("skipping recommendations, profile unavailable",
				slog.Int64("user_id", userID),
				slog.String("error", err.Error()))
		} else {
			recommended = s.recommender.Recommend(ctx, profile, available)
		}
	}

	log.Debug("board assembled",
		slog.Int64("user_id", userID),
		slog.Int("available", len(available)),
		slog.Int("in_progress", len(inProgress)),
		slog.Int("recommended", len(recommended)))

	return &Board{
		Available:   available,
		Recommended: recommended,
		InProgress:  inProgress,
	}, nil
}

// Profile implements BoardService.Profile.
func (s *boardServiceImpl) Profile(ctx context.Context, userID int64) (*Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	n, err := s.completions.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count completions: %w", err)
	}

	return &Profile{User: user, Completed: n}, nil
}

// Leaderboard implements BoardService.Leaderboard.
func (s *boardServiceImpl) Leaderboard(ctx context.Context, userID int64) (*Leaderboard, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	overall, err := s.users.TopPlayers(ctx, LeaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("failed to rank players: %w", err)
	}

	inClass, err := s.users.TopPlayersByClass(ctx, user.Class, LeaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("failed to rank players in class %s: %w", user.Class, err)
	}

	return &Leaderboard{Class: user.Class, Overall: overall, InClass: inClass}, nil
}
