package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
)

// refreshSecretBytes is the entropy of a refresh secret (256 bits).
const refreshSecretBytes = 32

var (
	errNoLiveToken   = errors.New("no live refresh token")
	errOwnerUnusable = errors.New("refresh token owner missing or inactive")
)

// IssuedRefreshToken is a freshly minted session handle. Secret goes to the
// client and is never stored.
type IssuedRefreshToken struct {
	ID        string
	Secret    string
	ExpiresAt time.Time
}

// Rotation is the outcome of a successful Rotate: the owner as read inside
// the rotation and the replacement handle.
type Rotation struct {
	User  models.UserSnapshot
	Token IssuedRefreshToken
}

// ReuseHandler is called after a revoked refresh secret was presented again.
type ReuseHandler func(ctx context.Context, token *models.RefreshToken)

// RefreshTokenVault issues, rotates and revokes refresh tokens. Only the
// keyed digest of a secret reaches storage.
type RefreshTokenVault struct {
	tx          dbx.Transactor
	repomanager repomanager.RepositoryManager
	key         []byte
	ttl         time.Duration
	retention   time.Duration
	clock       timex.Clock
	log         logging.Logger
	onReuse     ReuseHandler
}

func NewRefreshTokenVault(tx dbx.Transactor, m repomanager.RepositoryManager, cfg *config.Config,
	clock timex.Clock, log logging.Logger) *RefreshTokenVault {
	v := &RefreshTokenVault{
		tx:          tx,
		repomanager: m,
		key:         []byte(cfg.RefreshSecret),
		ttl:         cfg.RefreshTokenTTL,
		retention:   cfg.PurgeRetention,
		clock:       clock,
		log:         log.With("module", "vault"),
	}
	if cfg.ReusePolicy == config.ReusePolicyRevokeAll {
		v.onReuse = v.revokeAllOnReuse
	}
	return v
}

// SetReuseHandler replaces the incident response run on reuse. nil means
// log only.
func (v *RefreshTokenVault) SetReuseHandler(h ReuseHandler) {
	v.onReuse = h
}

func (v *RefreshTokenVault) digest(secret string) string {
	return cryptox.Digest(secret, v.key)
}

// Issue creates a new session for userID.
func (v *RefreshTokenVault) Issue(ctx context.Context, userID string, meta models.ClientMetadata) (*IssuedRefreshToken, error) {
	issued, err := v.insert(ctx, v.repomanager.RefreshTokens(v.tx.Conn()), userID, meta, v.clock())
	if err != nil {
		v.log.Error(ctx, "refresh token insert failed", "user_id", userID, "error", err)
		return nil, common.ErrorInternal
	}
	return issued, nil
}

func (v *RefreshTokenVault) insert(ctx context.Context, repo refreshtokens.Repository, userID string,
	meta models.ClientMetadata, now time.Time) (*IssuedRefreshToken, error) {
	secret, err := common.MakeRandToken(refreshSecretBytes)
	if err != nil {
		return nil, err
	}

	row := &models.RefreshToken{
		UserID:    userID,
		TokenHash: v.digest(secret),
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		ExpiresAt: now.Add(v.ttl),
		CreatedAt: now,
	}
	if err := repo.Create(ctx, row); err != nil {
		return nil, err
	}

	return &IssuedRefreshToken{ID: row.ID, Secret: secret, ExpiresAt: row.ExpiresAt}, nil
}

// Rotate exchanges a live secret for a new one. Revoking the presented row
// and inserting its replacement happen in one transaction, and the revoke is
// a conditional update, so of several concurrent calls with the same secret
// exactly one succeeds. Every failure matches common.ErrorUnauthorized except
// storage failures, which are common.ErrorInternal.
func (v *RefreshTokenVault) Rotate(ctx context.Context, secret string, meta models.ClientMetadata) (*Rotation, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: missing refresh token", common.ErrorUnauthorized)
	}

	digest := v.digest(secret)
	now := v.clock()

	var result *Rotation

	err := v.tx.InTx(ctx, func(ctx context.Context, db dbx.DBTX) error {
		tokens := v.repomanager.RefreshTokens(db)

		// Owner first: a rejected rotation must not consume the token.
		current, err := tokens.FindByHash(ctx, digest)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return errNoLiveToken
			}
			return err
		}
		if !current.IsLive(now) {
			return errNoLiveToken
		}

		user, err := v.repomanager.Users(db).GetByID(ctx, current.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return errOwnerUnusable
			}
			return err
		}
		if !user.Active {
			return errOwnerUnusable
		}

		if _, err := tokens.Consume(ctx, digest, now); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return errNoLiveToken
			}
			return err
		}

		issued, err := v.insert(ctx, tokens, user.ID, meta, now)
		if err != nil {
			return err
		}

		result = &Rotation{
			User: models.UserSnapshot{
				UserID:       user.ID,
				UserName:     user.UserName,
				Role:         user.Role,
				TokenVersion: user.TokenVersion,
			},
			Token: *issued,
		}
		return nil
	})

	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, errNoLiveToken):
		return nil, v.classifyDead(ctx, digest)
	case errors.Is(err, errOwnerUnusable):
		return nil, fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	default:
		v.log.Error(ctx, "refresh token rotation failed", "error", err)
		return nil, common.ErrorInternal
	}
}

// classifyDead explains why a digest had no live row and fires the reuse
// handler when the row exists but was already revoked.
func (v *RefreshTokenVault) classifyDead(ctx context.Context, digest string) error {
	row, err := v.repomanager.RefreshTokens(v.tx.Conn()).FindByHash(ctx, digest)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			v.log.Error(ctx, "reuse lookup failed", "error", err)
		}
		return fmt.Errorf("%w: unknown refresh token", common.ErrorUnauthorized)
	}

	if row.RevokedAt == nil {
		return fmt.Errorf("%w: refresh token expired", common.ErrorUnauthorized)
	}

	v.log.Warn(ctx, "refresh token reuse detected", "user_id", row.UserID, "token_id", row.ID)
	if v.onReuse != nil {
		v.onReuse(ctx, row)
	}
	return common.ErrRefreshTokenReuse
}

func (v *RefreshTokenVault) revokeAllOnReuse(ctx context.Context, token *models.RefreshToken) {
	n, err := v.RevokeAll(ctx, token.UserID)
	if err != nil {
		v.log.Error(ctx, "reuse response failed", "user_id", token.UserID, "error", err)
		return
	}
	v.log.Warn(ctx, "revoked all sessions after reuse", "user_id", token.UserID, "revoked", n)
}

// Revoke ends the session behind secret. Unknown and already revoked
// secrets are not an error.
func (v *RefreshTokenVault) Revoke(ctx context.Context, secret string) error {
	if secret == "" {
		return nil
	}
	if _, err := v.repomanager.RefreshTokens(v.tx.Conn()).Revoke(ctx, v.digest(secret), v.clock()); err != nil {
		v.log.Error(ctx, "refresh token revoke failed", "error", err)
		return common.ErrorInternal
	}
	return nil
}

// RevokeAll ends every live session of the user.
func (v *RefreshTokenVault) RevokeAll(ctx context.Context, userID string) (int64, error) {
	n, err := v.repomanager.RefreshTokens(v.tx.Conn()).RevokeAllForUser(ctx, userID, v.clock())
	if err != nil {
		v.log.Error(ctx, "revoke all failed", "user_id", userID, "error", err)
		return 0, common.ErrorInternal
	}
	return n, nil
}

// ListActive returns the user's live sessions, newest first.
func (v *RefreshTokenVault) ListActive(ctx context.Context, userID string) ([]models.RefreshToken, error) {
	list, err := v.repomanager.RefreshTokens(v.tx.Conn()).ListActiveByUser(ctx, userID, v.clock())
	if err != nil {
		v.log.Error(ctx, "list sessions failed", "user_id", userID, "error", err)
		return nil, common.ErrorInternal
	}
	return list, nil
}

// PurgeExpired deletes rows that expired longer than the retention window
// ago. Revoked rows are never removed before they expire, so a replayed
// secret is reported as reuse for its whole lifetime.
func (v *RefreshTokenVault) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := v.clock().Add(-v.retention)
	n, err := v.repomanager.RefreshTokens(v.tx.Conn()).DeleteExpired(ctx, cutoff)
	if err != nil {
		v.log.Error(ctx, "purge failed", "error", err)
		return 0, common.ErrorInternal
	}
	return n, nil
}
