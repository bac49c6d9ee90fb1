package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository stores refresh token digests. Consume is the single-winner
// primitive of rotation: of any number of concurrent callers presenting the
// same live digest, exactly one gets the row back.
type Repository interface {
	Create(ctx context.Context, token *models.RefreshToken) error

	// Consume revokes the live token with the given digest at now and
	// returns it. It returns common.ErrorNotFound when no live row matched.
	Consume(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error)

	FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// Revoke marks one token revoked. It reports whether a live row changed.
	Revoke(ctx context.Context, tokenHash string, now time.Time) (bool, error)

	// RevokeAllForUser marks every live token of the user revoked.
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error)

	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]models.RefreshToken, error)

	// DeleteExpired removes rows whose expiry is before cutoff. Revoked rows
	// stay until then so a replayed secret is still recognised.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
