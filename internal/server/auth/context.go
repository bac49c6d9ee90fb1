package auth

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

type identityKey struct{}

// WithIdentity returns a child context carrying the validated caller.
func WithIdentity(ctx context.Context, id *models.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller attached by WithIdentity, if any.
func IdentityFrom(ctx context.Context) (*models.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*models.Identity)
	return id, ok && id != nil
}
