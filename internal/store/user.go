package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/questboard-api/internal/domain"
)

// UserStore defines the interface for user data persistence.
type UserStore interface {
	// Create saves a new user and assigns its ID and CreatedAt.
	// The user must carry a HashedPassword.
	// Returns ErrLoginExists if the login is already taken.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByLogin retrieves a user by their login.
	// Returns ErrUserNotFound if the user does not exist.
	GetByLogin(ctx context.Context, login string) (*domain.User, error)

	// UnionTags merges tags into the user's tag set in one statement and
	// returns the resulting set. The set never shrinks.
	UnionTags(ctx context.Context, userID int64, tags []string) ([]string, error)

	// SetClass updates the user's class.
	SetClass(ctx context.Context, userID int64, class domain.Rank) error

	// SetAdmin grants or revokes administrator rights.
	SetAdmin(ctx context.Context, userID int64, admin bool) error

	// TopPlayers returns users ordered by completion count, then by ID.
	TopPlayers(ctx context.Context, limit int) ([]domain.PlayerStanding, error)

	// TopPlayersByClass is TopPlayers restricted to one class.
	TopPlayersByClass(ctx context.Context, class domain.Rank, limit int) ([]domain.PlayerStanding, error)

	// WithTx returns a UserStore bound to the given transaction.
	WithTx(tx *sql.Tx) UserStore
}
