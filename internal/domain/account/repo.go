package account

import (
	"context"
)

// UserRepository is the account store. Lookups return apperr.ErrNotFound for
// a missing user; Create returns a *DuplicateError when the username or email
// is taken.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Ping(ctx context.Context) error
}
