package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/amp/internal/model"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

const userColumns = `id, email, password_hash, refresh_token_hash, refresh_token_expires_at, created_at, updated_at`

// PostgresUserRepo is a UserRepository backed by PostgreSQL.
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo creates a PostgresUserRepo.
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByEmail returns the user with the given email, or nil if none exists.
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// FindByID returns the user with the given ID, or nil if none exists.
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// CreateWithPassword inserts a new user with a password hash and no refresh token.
func (r *PostgresUserRepo) CreateWithPassword(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateRefreshTokenHash overwrites the stored refresh-token hash. Concurrent
// writers are not serialized; the last write wins.
func (r *PostgresUserRepo) UpdateRefreshTokenHash(ctx context.Context, id, hash string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET refresh_token_hash = $2, refresh_token_expires_at = $3, updated_at = now()
		 WHERE id = $1`,
		id, hash, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update refresh token hash: %w", err)
	}
	return nil
}

// ClearRefreshTokenHash sets the stored refresh-token hash to NULL.
func (r *PostgresUserRepo) ClearRefreshTokenHash(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET refresh_token_hash = NULL, refresh_token_expires_at = NULL, updated_at = now()
		 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to clear refresh token hash: %w", err)
	}
	return nil
}

// scanUser reads one user row. sql.ErrNoRows becomes (nil, nil).
func scanUser(row *sql.Row) (*model.User, error) {
	var (
		user      model.User
		hash      sql.NullString
		expiresAt sql.NullTime
	)
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &hash, &expiresAt, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if hash.Valid {
		user.RefreshTokenHash = &hash.String
	}
	if expiresAt.Valid {
		user.RefreshTokenExpiresAt = &expiresAt.Time
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
