package account

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/strokecare/strokecare/internal/platform/apperr"
)

type userRepoSQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewUserRepoSQLite returns a UserRepository on an embedded SQLite database.
func NewUserRepoSQLite(db *sql.DB) UserRepository {
	return &userRepoSQLite{db: db, now: time.Now}
}

func (r *userRepoSQLite) Create(ctx context.Context, u *User) error {
	created := r.now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, created.Format(time.RFC3339Nano),
	)
	if err != nil {
		// modernc reports "UNIQUE constraint failed: users.<column>"
		if msg := err.Error(); strings.Contains(msg, "UNIQUE constraint failed") {
			field := "username"
			if strings.Contains(msg, "users.email") {
				field = "email"
			}
			return &DuplicateError{Field: field}
		}
		return apperr.Store("user create", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return apperr.Store("user create", err)
	}
	u.ID = id
	u.CreatedAt = created
	return nil
}

func (r *userRepoSQLite) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getOne(ctx, "user get by username", `SELECT `+userCols+` FROM users WHERE username = ?`, username)
}

func (r *userRepoSQLite) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "user get by email", `SELECT `+userCols+` FROM users WHERE email = ?`, email)
}

func (r *userRepoSQLite) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *userRepoSQLite) getOne(ctx context.Context, op, query string, arg interface{}) (*User, error) {
	var u User
	var created string
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Store(op, err)
	}
	if u.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, apperr.Store(op, err)
	}
	return &u, nil
}
