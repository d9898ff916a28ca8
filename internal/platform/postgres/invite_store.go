package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/phrazzld/questboard-api/internal/domain"
	"github.com/phrazzld/questboard-api/internal/platform/logger"
	"github.com/phrazzld/questboard-api/internal/store"
)

// PostgresInviteStore implements the store.InviteStore interface.
type PostgresInviteStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresInviteStore creates a new PostgreSQL implementation of the InviteStore interface.
func NewPostgresInviteStore(db store.DBTX, logger *slog.Logger) *PostgresInviteStore {
	if db == nil {
		// ALLOW-PANIC: constructor misuse
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresInviteStore{
		db:     db,
		logger: logger.With(slog.String("component", "invite_store")),
	}
}

// Ensure PostgresInviteStore implements store.InviteStore interface
var _ store.InviteStore = (*PostgresInviteStore)(nil)

// WithTx implements store.InviteStore.WithTx.
func (s *PostgresInviteStore) WithTx(tx *sql.Tx) store.InviteStore {
	return &PostgresInviteStore{db: tx, logger: s.logger}
}

// Create implements store.InviteStore.Create
func (s *PostgresInviteStore) Create(ctx context.Context, token string) (*domain.InviteToken, error) {
	invite := &domain.InviteToken{Token: token}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO invite_tokens (token) VALUES ($1) RETURNING is_expired, created_at`,
		token).Scan(&invite.IsExpired, &invite.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, store.ErrInviteExists
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create invite",
			slog.String("error", err.Error()))
		return nil, storeError("invite", "create", err)
	}
	return invite, nil
}

// Get implements store.InviteStore.Get
func (s *PostgresInviteStore) Get(ctx context.Context, token string) (*domain.InviteToken, error) {
	invite := &domain.InviteToken{Token: token}
	err := s.db.QueryRowContext(ctx,
		`SELECT is_expired, created_at FROM invite_tokens WHERE token = $1`,
		token).Scan(&invite.IsExpired, &invite.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrInviteNotFound
		}
		return nil, storeError("invite", "get", err)
	}
	return invite, nil
}

// ExpireIfActive implements store.InviteStore.ExpireIfActive
func (s *PostgresInviteStore) ExpireIfActive(ctx context.Context, token string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE invite_tokens SET is_expired = TRUE WHERE token = $1 AND NOT is_expired`,
		token)
	if err != nil {
		return false, storeError("invite", "expire", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, storeError("invite", "expire", err)
	}
	return n == 1, nil
}
