package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// TokenPair is what login and refresh hand back: the access token for the
// response body and the refresh secret for the cookie.
type TokenPair struct {
	AccessToken      string
	TokenType        string
	ExpiresIn        time.Duration
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// SessionService composes the verifier, the access token service and the
// vault into the login, refresh, logout and identity protocols.
type SessionService struct {
	verifier *CredentialVerifier
	access   *AccessTokenService
	vault    *RefreshTokenVault
	log      logging.Logger
}

func NewSessionService(verifier *CredentialVerifier, access *AccessTokenService, vault *RefreshTokenVault,
	log logging.Logger) *SessionService {
	return &SessionService{
		verifier: verifier,
		access:   access,
		vault:    vault,
		log:      log.With("module", "session"),
	}
}

// Login verifies credentials and opens a new session. Unknown user, wrong
// password, locked and disabled accounts all return an error matching
// common.ErrInvalidCredentials; the specific reason is wrapped alongside it.
func (s *SessionService) Login(ctx context.Context, username, password string, meta models.ClientMetadata) (*TokenPair, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrBadRequest)
	}

	user, err := s.verifier.Verify(ctx, username, password)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound),
			errors.Is(err, common.ErrInvalidCredentials),
			errors.Is(err, common.ErrAccountLocked),
			errors.Is(err, common.ErrAccountDisabled):
			s.log.Info(ctx, "login rejected", "username", username, "reason", err.Error())
			if errors.Is(err, common.ErrInvalidCredentials) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidCredentials, err)
		default:
			return nil, err
		}
	}

	access, err := s.access.Issue(user)
	if err != nil {
		return nil, err
	}

	refresh, err := s.vault.Issue(ctx, user.ID, meta)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "login", "user_id", user.ID, "session_id", refresh.ID)

	return pair(access, refresh), nil
}

// Refresh rotates the presented refresh secret and mints an access token
// from the owner snapshot read during rotation.
func (s *SessionService) Refresh(ctx context.Context, secret string, meta models.ClientMetadata) (*TokenPair, error) {
	rot, err := s.vault.Rotate(ctx, secret, meta)
	if err != nil {
		return nil, err
	}

	access, err := s.access.IssueForSnapshot(rot.User)
	if err != nil {
		return nil, err
	}

	return pair(access, &rot.Token), nil
}

// Logout revokes the session behind secret. Storage failures are logged and
// swallowed so the caller always clears the cookie.
func (s *SessionService) Logout(ctx context.Context, secret string) {
	if err := s.vault.Revoke(ctx, secret); err != nil {
		s.log.Warn(ctx, "logout revoke failed", "error", err)
	}
}

// Authenticate validates an access token; see AccessTokenService.Validate.
func (s *SessionService) Authenticate(ctx context.Context, token string) (*models.Identity, error) {
	return s.access.Validate(ctx, token)
}

// Me returns the identity attached to ctx by the authentication layer.
func (s *SessionService) Me(ctx context.Context) (*models.Identity, error) {
	id, ok := auth.IdentityFrom(ctx)
	if !ok {
		return nil, common.ErrorUnauthorized
	}
	return id, nil
}

func pair(access *AccessToken, refresh *IssuedRefreshToken) *TokenPair {
	return &TokenPair{
		AccessToken:      access.Token,
		TokenType:        common.BearerScheme,
		ExpiresIn:        access.ExpiresIn,
		RefreshToken:     refresh.Secret,
		RefreshExpiresAt: refresh.ExpiresAt,
	}
}
