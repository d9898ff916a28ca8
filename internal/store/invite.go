package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/questboard-api/internal/domain"
)

// InviteStore defines the interface for signup invite tokens.
type InviteStore interface {
	// Create stores a new active token.
	// Returns ErrInviteExists if the token was already issued.
	Create(ctx context.Context, token string) (*domain.InviteToken, error)

	// Get retrieves a token.
	// Returns ErrInviteNotFound if the token does not exist.
	Get(ctx context.Context, token string) (*domain.InviteToken, error)

	// ExpireIfActive marks an active token expired and reports whether it
	// was active, so one token admits exactly one signup.
	ExpireIfActive(ctx context.Context, token string) (bool, error)

	// WithTx returns an InviteStore bound to the given transaction.
	WithTx(tx *sql.Tx) InviteStore
}
