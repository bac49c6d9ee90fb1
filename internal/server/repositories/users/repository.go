// Package users declares the account repository contract and its
// PostgreSQL implementation.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository is the user store consumed by the session engine and the
// administration service. Every mutation is a single statement, so
// concurrent callers never lose updates.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)

	// RegisterFailedLogin increments the failure counter. When the
	// incremented value reaches threshold the account is locked until
	// lockUntil and the counter restarts at zero. It returns the stored
	// counter and lock.
	RegisterFailedLogin(ctx context.Context, id string, threshold int, lockUntil time.Time) (attempts int, lockedUntil *time.Time, err error)

	// RegisterSuccessfulLogin clears the counter and the lock and stamps
	// last_login_at.
	RegisterSuccessfulLogin(ctx context.Context, id string, now time.Time) error

	// IncrementTokenVersion invalidates every access token minted so far.
	IncrementTokenVersion(ctx context.Context, id string) (int64, error)

	// UpdatePassword stores a new hash, stamps password_changed_at and
	// bumps token_version.
	UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error

	// UpdateRole changes the role and bumps token_version.
	UpdateRole(ctx context.Context, id string, role models.Role) error

	// SetActive toggles the active flag and bumps token_version.
	SetActive(ctx context.Context, id string, active bool) error
}
