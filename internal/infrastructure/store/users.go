package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/example/storefront/internal/domain/user"
	"github.com/lib/pq"
)

// UserStore is the persistence contract for accounts.
type UserStore interface {
	Create(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	UpdateProfile(ctx context.Context, id, name string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	// SetResetToken stores the hash of a freshly issued reset token with
	// its expiry, replacing any previous token.
	SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error
	// ConsumeResetToken validates a token hash and atomically clears it so
	// it can only be used once. It returns the user it belonged to.
	ConsumeResetToken(ctx context.Context, tokenHash string) (*user.User, error)
}

type PostgresUserStore struct {
	db *sql.DB
}

func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

const userColumns = `id, email, password_hash, name, role, reset_token_hash, reset_token_expires, created_at, updated_at`

// uniqueViolation is the Postgres error code for unique-constraint conflicts.
const uniqueViolation = "23505"

func (s *PostgresUserStore) Create(ctx context.Context, u *user.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, name, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, user.NormalizeEmail(u.Email), u.PasswordHash, u.Name, u.Role, u.CreatedAt, u.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return user.ErrEmailTaken
	}
	return err
}

func (s *PostgresUserStore) GetByID(ctx context.Context, id string) (*user.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *PostgresUserStore) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, user.NormalizeEmail(email))
	return scanUser(row)
}

func (s *PostgresUserStore) UpdateProfile(ctx context.Context, id, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = $2, updated_at = now() WHERE id = $1`, id, name)
	return requireUserRow(res, err)
}

func (s *PostgresUserStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, passwordHash)
	return requireUserRow(res, err)
}

func (s *PostgresUserStore) SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET reset_token_hash = $2, reset_token_expires = $3, updated_at = now() WHERE id = $1`,
		id, tokenHash, expires)
	return requireUserRow(res, err)
}

func (s *PostgresUserStore) ConsumeResetToken(ctx context.Context, tokenHash string) (*user.User, error) {
	if tokenHash == "" {
		return nil, user.ErrResetTokenInvalid
	}
	// Clearing the token in the same statement makes it single-use even
	// under concurrent reset attempts.
	row := s.db.QueryRowContext(ctx,
		`UPDATE users SET reset_token_hash = '', reset_token_expires = NULL, updated_at = now()
		 WHERE reset_token_hash = $1 AND reset_token_expires > now()
		 RETURNING `+userColumns, tokenHash)

	u, err := scanUser(row)
	if errors.Is(err, user.ErrUserNotFound) {
		return nil, user.ErrResetTokenInvalid
	}
	return u, err
}

func requireUserRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

func scanUser(row rowScanner) (*user.User, error) {
	var u user.User
	var expires sql.NullTime

	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role,
		&u.ResetTokenHash, &expires, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if expires.Valid {
		u.ResetTokenExpires = &expires.Time
	}
	return &u, nil
}
