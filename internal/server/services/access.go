package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
)

// AccessToken is a signed access token and its lifetime.
type AccessToken struct {
	Token     string
	ExpiresIn time.Duration
	Claims    *auth.Claims
}

// AccessTokenService mints access tokens and validates them against the
// current state of the user row.
type AccessTokenService struct {
	codec       *auth.TokenCodec
	tx          dbx.Transactor
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewAccessTokenService(codec *auth.TokenCodec, tx dbx.Transactor, m repomanager.RepositoryManager,
	log logging.Logger) *AccessTokenService {
	return &AccessTokenService{
		codec:       codec,
		tx:          tx,
		repomanager: m,
		log:         log.With("module", "access"),
	}
}

// Issue signs a token for the user's current role and token version.
func (s *AccessTokenService) Issue(user *models.User) (*AccessToken, error) {
	token, claims, err := s.codec.Sign(user)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return &AccessToken{Token: token, ExpiresIn: s.codec.TTL(), Claims: claims}, nil
}

// IssueForSnapshot signs a token from the owner snapshot taken during a
// refresh token rotation.
func (s *AccessTokenService) IssueForSnapshot(u models.UserSnapshot) (*AccessToken, error) {
	return s.Issue(&models.User{
		ID:           u.UserID,
		UserName:     u.UserName,
		Role:         u.Role,
		TokenVersion: u.TokenVersion,
	})
}

// Validate verifies the token and then re-reads the user: the account must
// still be active, the token version must match, and the token must not
// predate the last password change. Every rejection matches
// common.ErrorUnauthorized.
func (s *AccessTokenService) Validate(ctx context.Context, token string) (*models.Identity, error) {
	claims, err := s.codec.Parse(token)
	if err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.tx.Conn()).GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", common.ErrInvalidToken)
		}
		s.log.Error(ctx, "user lookup failed", "user_id", claims.Subject, "error", err)
		return nil, common.ErrorInternal
	}

	if !user.Active {
		return nil, fmt.Errorf("%w: account disabled", common.ErrInvalidToken)
	}
	if claims.TokenVersion != user.TokenVersion {
		return nil, fmt.Errorf("%w: stale token version", common.ErrInvalidToken)
	}
	// iat has second precision, so compare whole seconds.
	if user.PasswordChangedAt != nil && claims.IssuedAt.Unix() < user.PasswordChangedAt.Unix() {
		return nil, fmt.Errorf("%w: issued before password change", common.ErrInvalidToken)
	}

	return &models.Identity{
		UserID:    user.ID,
		UserName:  claims.Username,
		Role:      models.Role(claims.Role),
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
