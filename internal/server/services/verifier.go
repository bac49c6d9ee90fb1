// Package services contains the session engine: credential verification
// with lockout, the refresh token vault, access token issuance and
// validation, the login/refresh/logout protocols and account administration.
package services

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
)

// CredentialVerifier checks a username and password against the stored hash
// and enforces the per-account lockout policy.
type CredentialVerifier struct {
	tx          dbx.Transactor
	repomanager repomanager.RepositoryManager
	hasher      cryptox.PasswordHasher
	threshold   int
	lockFor     time.Duration
	clock       timex.Clock
	log         logging.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewCredentialVerifier(tx dbx.Transactor, m repomanager.RepositoryManager, hasher cryptox.PasswordHasher,
	cfg *config.Config, clock timex.Clock, log logging.Logger) *CredentialVerifier {
	return &CredentialVerifier{
		tx:          tx,
		repomanager: m,
		hasher:      hasher,
		threshold:   cfg.LockoutThreshold,
		lockFor:     cfg.LockoutDuration,
		clock:       clock,
		log:         log.With("module", "verifier"),
	}
}

// Verify returns the user on success. Failures are common.ErrorNotFound,
// common.ErrAccountLocked, common.ErrAccountDisabled,
// common.ErrInvalidCredentials or common.ErrorInternal.
func (v *CredentialVerifier) Verify(ctx context.Context, username, password string) (*models.User, error) {
	users := v.repomanager.Users(v.tx.Conn())

	user, err := users.GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			v.burn(password)
			return nil, common.ErrorNotFound
		}
		v.log.Error(ctx, "user lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	now := v.clock()

	if user.IsLocked(now) {
		v.burn(password)
		return nil, common.ErrAccountLocked
	}
	if !user.Active {
		v.burn(password)
		return nil, common.ErrAccountDisabled
	}

	ok, err := v.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		v.log.Error(ctx, "stored password hash unusable", "user_id", user.ID, "error", err)
		return nil, common.ErrorInternal
	}

	if !ok {
		attempts, lockedUntil, err := users.RegisterFailedLogin(ctx, user.ID, v.threshold, now.Add(v.lockFor))
		switch {
		case err != nil:
			v.log.Warn(ctx, "failed to record failed login", "user_id", user.ID, "error", err)
		case lockedUntil != nil && lockedUntil.After(now):
			v.log.Warn(ctx, "account locked", "user_id", user.ID, "locked_until", lockedUntil)
		default:
			v.log.Debug(ctx, "failed login", "user_id", user.ID, "attempts", attempts)
		}
		return nil, common.ErrInvalidCredentials
	}

	if err := users.RegisterSuccessfulLogin(ctx, user.ID, now); err != nil {
		v.log.Warn(ctx, "failed to record successful login", "user_id", user.ID, "error", err)
	}

	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now

	return user, nil
}

// burn runs one hash verification so rejections that never reach the stored
// hash cost about as much as a wrong password.
func (v *CredentialVerifier) burn(password string) {
	v.dummyOnce.Do(func() {
		v.dummyHash, _ = v.hasher.Hash(hex.EncodeToString(common.GenerateRandByteArray(16)))
	})
	if v.dummyHash != "" {
		_, _ = v.hasher.Verify(password, v.dummyHash)
	}
}
