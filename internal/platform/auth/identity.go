package auth

import (
	"context"
	"time"

	"github.com/strokecare/strokecare/internal/platform/apperr"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated user attached to a request.
type Identity struct {
	UserID    int64
	Username  string
	TokenID   string
	ExpiresAt time.Time
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity attached to ctx, or nil for an
// anonymous request.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// RequireIdentity returns the identity attached to ctx or
// apperr.ErrLoginRequired. Every patient operation starts with it.
func RequireIdentity(ctx context.Context) (*Identity, error) {
	id := IdentityFromContext(ctx)
	if id == nil {
		return nil, apperr.ErrLoginRequired
	}
	return id, nil
}
