package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/phrazzld/questboard-api/internal/domain"
	"github.com/phrazzld/questboard-api/internal/platform/logger"
	"github.com/phrazzld/questboard-api/internal/store"
)

// PostgresUserStore implements the store.UserStore interface
// using a PostgreSQL database as the storage backend.
type PostgresUserStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUserStore creates a new PostgreSQL implementation of the UserStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresUserStore(db store.DBTX, logger *slog.Logger) *PostgresUserStore {
	if db == nil {
		// ALLOW-PANIC: constructor misuse
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUserStore{
		db:     db,
		logger: logger.With(slog.String("component", "user_store")),
	}
}

// Ensure PostgresUserStore implements store.UserStore interface
var _ store.UserStore = (*PostgresUserStore)(nil)

// WithTx implements store.UserStore.WithTx.
func (s *PostgresUserStore) WithTx(tx *sql.Tx) store.UserStore {
	return &PostgresUserStore{db: tx, logger: s.logger}
}

// Create implements store.UserStore.Create
func (s *PostgresUserStore) Create(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if user.HashedPassword == "" {
		return store.NewStoreError("user", "create", "missing password hash", store.ErrInvalidEntity)
	}
	user.Tags = domain.NormalizeTags(user.Tags)

	query := `
		INSERT INTO users (login, name, password_hash, class, is_admin, tags)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := s.db.QueryRowContext(
		ctx,
		query,
		user.Login,
		user.Name,
		user.HashedPassword,
		int16(user.Class),
		user.IsAdmin,
		pq.StringArray(user.Tags),
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Debug("login already taken", slog.String("login", user.Login))
			return store.ErrLoginExists
		}
		log.Error("failed to create user",
			slog.String("error", err.Error()),
			slog.String("login", user.Login))
		return storeError("user", "create", err)
	}

	// the plaintext is never kept past persistence
	user.Password = ""

	log.Info("user created",
		slog.Int64("user_id", user.ID),
		slog.Bool("is_admin", user.IsAdmin))
	return nil
}

// GetByID implements store.UserStore.GetByID
func (s *PostgresUserStore) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`
	return s.getOne(ctx, query, id)
}

// GetByLogin implements store.UserStore.GetByLogin
func (s *PostgresUserStore) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.login = $1`
	return s.getOne(ctx, query, login)
}

func (s *PostgresUserStore) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get user",
			slog.String("error", err.Error()))
		return nil, storeError("user", "get", err)
	}
	return user, nil
}

// UnionTags implements store.UserStore.UnionTags
// The union is computed by the database in the same statement that writes
// it, so concurrent unions never lose tags.
func (s *PostgresUserStore) UnionTags(ctx context.Context, userID int64, tags []string) ([]string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE users
		SET tags = ARRAY(
			SELECT DISTINCT tag
			FROM unnest(tags || $2::text[]) AS tag
			ORDER BY tag
		)
		WHERE id = $1
		RETURNING tags
	`
	var merged pq.StringArray
	err := s.db.QueryRowContext(ctx, query, userID, pq.StringArray(domain.NormalizeTags(tags))).Scan(&merged)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		log.Error("failed to union user tags",
			slog.String("error", err.Error()),
			slog.Int64("user_id", userID))
		return nil, storeError("user", "union tags", err)
	}

	log.Debug("user tags updated",
		slog.Int64("user_id", userID),
		slog.Int("tag_count", len(merged)))
	return domain.NormalizeTags(merged), nil
}

// SetClass implements store.UserStore.SetClass
func (s *PostgresUserStore) SetClass(ctx context.Context, userID int64, class domain.Rank) error {
	if !class.Valid() {
		return store.NewStoreError("user", "set class", fmt.Sprintf("rank %d", int16(class)), store.ErrInvalidEntity)
	}

	result, err := s.db.ExecContext(ctx, `UPDATE users SET class = $2 WHERE id = $1`, userID, int16(class))
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to set user class",
			slog.String("error", err.Error()),
			slog.Int64("user_id", userID))
		return storeError("user", "set class", err)
	}
	if err := CheckRowsAffected(result, store.ErrUserNotFound); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return err
		}
		return storeError("user", "set class", err)
	}
	return nil
}

// SetAdmin implements store.UserStore.SetAdmin
func (s *PostgresUserStore) SetAdmin(ctx context.Context, userID int64, admin bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET is_admin = $2 WHERE id = $1`, userID, admin)
	if err != nil {
		return storeError("user", "set admin", err)
	}
	if err := CheckRowsAffected(result, store.ErrUserNotFound); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return err
		}
		return storeError("user", "set admin", err)
	}
	return nil
}

// TopPlayers implements store.UserStore.TopPlayers
func (s *PostgresUserStore) TopPlayers(ctx context.Context, limit int) ([]domain.PlayerStanding, error) {
	query := `
		SELECT u.id, u.name, u.class, COUNT(c.task_id) AS completed
		FROM users u
		LEFT JOIN completed_tasks c ON c.user_id = u.id
		GROUP BY u.id
		ORDER BY completed DESC, u.id
		LIMIT $1
	`
	return s.standings(ctx, query, limit)
}

// TopPlayersByClass implements store.UserStore.TopPlayersByClass
func (s *PostgresUserStore) TopPlayersByClass(ctx context.Context, class domain.Rank, limit int) ([]domain.PlayerStanding, error) {
	query := `
		SELECT u.id, u.name, u.class, COUNT(c.task_id) AS completed
		FROM users u
		LEFT JOIN completed_tasks c ON c.user_id = u.id
		WHERE u.class = $2
		GROUP BY u.id
		ORDER BY completed DESC, u.id
		LIMIT $1
	`
	return s.standings(ctx, query, limit, int16(class))
}

func (s *PostgresUserStore) standings(ctx context.Context, query string, args ...any) ([]domain.PlayerStanding, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to query leaderboard",
			slog.String("error", err.Error()))
		return nil, storeError("user", "leaderboard", err)
	}
	defer func() { _ = rows.Close() }()

	standings := make([]domain.PlayerStanding, 0)
	for rows.Next() {
		var (
			p     domain.PlayerStanding
			class int16
		)
		if err := rows.Scan(&p.UserID, &p.Name, &class, &p.Completed); err != nil {
			return nil, storeError("user", "leaderboard", err)
		}
		if p.Class, err = domain.ParseRank(int(class)); err != nil {
			return nil, storeError("user", "leaderboard", err)
		}
		standings = append(standings, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("user", "leaderboard", err)
	}
	return standings, nil
}
