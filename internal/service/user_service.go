package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/questboard-api/internal/domain"
	"github.com/phrazzld/questboard-api/internal/platform/logger"
	"github.com/phrazzld/questboard-api/internal/service/auth"
	"github.com/phrazzld/questboard-api/internal/store"
)

// UserService handles account creation and login.
type UserService interface {
	// Signup creates a player from an unused invite. The invite is spent
	// in the same transaction, so one invite admits one player.
	//
	// Returns:
	//   - ErrInviteInvalid if the invite is unknown or spent
	//   - store.ErrLoginExists if the login is taken
	//   - an error wrapping domain.ErrValidation for bad input
	Signup(ctx context.Context, invite, login, name, password string) (*domain.User, error)

	// Login checks credentials and returns the user.
	// Returns ErrInvalidCredentials on any mismatch, including unknown logins.
	Login(ctx context.Context, login, password string) (*domain.User, error)

	// GetUser retrieves a user by their ID
	GetUser(ctx context.Context, userID int64) (*domain.User, error)

	// Promote grants administrator rights to the user with the given login.
	// It backs the CLI and performs no authorization of its own.
	Promote(ctx context.Context, login string) (*domain.User, error)
}

// UserServiceImpl implements the UserService interface
type UserServiceImpl struct {
	tx     store.Transactor
	users  store.UserStore
	hasher auth.PasswordHasher
	logger *slog.Logger
}

// Verify interface compliance at compile time
var _ UserService = (*UserServiceImpl)(nil)

// NewUserService creates a new UserService
func NewUserService(tx store.Transactor, users store.UserStore, hasher auth.PasswordHasher, logger *slog.Logger) UserService {
	if tx == nil || users == nil || hasher == nil {
		// ALLOW-PANIC: constructor misuse
		panic("user service dependencies cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserServiceImpl{
		tx:     tx,
		users:  users,
		hasher: hasher,
		logger: logger.With(slog.String("component", "user_service")),
	}
}

// Signup implements UserService.Signup.
func (s *UserServiceImpl) Signup(ctx context.Context, invite, login, name, password string) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := domain.NewUser(login, name, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	// Hash outside the transaction; bcrypt is slow on purpose.
	hashed, err := s.hasher.Hash(user.Password)
	if err != nil {
		return nil, err
	}
	user.HashedPassword = hashed
	user.Password = ""

	err = s.tx.RunInTx(ctx, func(ctx context.Context, scope store.TxScope) error {
		active, err := scope.Invites().ExpireIfActive(ctx, invite)
		if err != nil {
			return fmt.Errorf("failed to spend invite: %w", err)
		}
		if !active {
			return ErrInviteInvalid
		}
		return scope.Users().Create(ctx, user)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInviteInvalid):
			log.Debug("signup rejected: invite invalid", "login", user.Login)
		case errors.Is(err, store.ErrLoginExists):
			log.Debug("signup rejected: login taken", "login", user.Login)
		default:
			log.Error("failed to create user", "error", err, "login", user.Login)
		}
		return nil, err
	}

	log.Info("user signed up", "user_id", user.ID, "login", user.Login)
	return user, nil
}

// Login implements UserService.Login.
func (s *UserServiceImpl) Login(ctx context.Context, login, password string) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			log.Debug("login rejected: unknown login", "login", login)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to retrieve user by login: %w", err)
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		log.Debug("login rejected: password mismatch", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// GetUser implements UserService.GetUser.
func (s *UserServiceImpl) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}
	return user, nil
}

// Promote implements UserService.Promote.
func (s *UserServiceImpl) Promote(ctx context.Context, login string) (*domain.User, error) {
	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve user by login: %w", err)
	}
	if err := s.users.SetAdmin(ctx, user.ID, true); err != nil {
		return nil, fmt.Errorf("failed to promote user: %w", err)
	}
	user.IsAdmin = true

	logger.FromContextOrDefault(ctx, s.logger).Info("user promoted to administrator", "user_id", user.ID)
	return user, nil
}
