package account

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/strokecare/strokecare/internal/platform/apperr"
)

const pgUniqueViolation = "23505"

type userRepoPG struct {
	pool *pgxpool.Pool
}

// NewUserRepoPG returns a UserRepository on PostgreSQL.
func NewUserRepoPG(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

const userCols = `id, username, email, password_hash, created_at`

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		u.Username, u.Email, u.PasswordHash,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return &DuplicateError{Field: duplicateField(pgErr.ConstraintName)}
		}
		return apperr.Store("user create", err)
	}
	return nil
}

func (r *userRepoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getOne(ctx, "user get by username", `SELECT `+userCols+` FROM users WHERE username = $1`, username)
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "user get by email", `SELECT `+userCols+` FROM users WHERE email = $1`, email)
}

func (r *userRepoPG) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *userRepoPG) getOne(ctx context.Context, op, query string, arg interface{}) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Store(op, err)
	}
	return &u, nil
}

// duplicateField maps a unique constraint name such as users_email_key to
// the form field it guards.
func duplicateField(constraint string) string {
	if strings.Contains(constraint, "email") {
		return "email"
	}
	return "username"
}

