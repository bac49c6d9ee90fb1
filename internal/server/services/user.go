package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
)

const minPasswordLen = 8

// UserService owns account lifecycle: creation, password and role changes,
// enabling and disabling, and forced logout. Every change that alters what
// an access token asserts bumps the token version.
type UserService struct {
	tx          dbx.Transactor
	repomanager repomanager.RepositoryManager
	hasher      cryptox.PasswordHasher
	vault       *RefreshTokenVault
	clock       timex.Clock
	log         logging.Logger
}

func NewUserService(tx dbx.Transactor, m repomanager.RepositoryManager, hasher cryptox.PasswordHasher,
	vault *RefreshTokenVault, clock timex.Clock, log logging.Logger) *UserService {
	return &UserService{
		tx:          tx,
		repomanager: m,
		hasher:      hasher,
		vault:       vault,
		clock:       clock,
		log:         log.With("module", "users"),
	}
}

func (s *UserService) CreateUser(ctx context.Context, username, password string, role models.Role) (*models.User, error) {
	if !models.IsValidUsername(username) {
		return nil, fmt.Errorf("%w: invalid username", common.ErrBadRequest)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrBadRequest, minPasswordLen)
	}
	if _, err := models.ParseRole(string(role)); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrBadRequest, err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.log.Error(ctx, "password hash failed", "error", err)
		return nil, common.ErrorInternal
	}

	user, err := s.repomanager.Users(s.tx.Conn()).Create(ctx, &models.User{
		UserName:     username,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	})
	if err != nil {
		if errors.Is(err, common.ErrUsernameExists) {
			return nil, err
		}
		s.log.Error(ctx, "create user failed", "error", err)
		return nil, common.ErrorInternal
	}

	s.log.Info(ctx, "user created", "user_id", user.ID, "role", role)
	return user, nil
}

// ChangePassword stores a new hash, invalidates outstanding access tokens
// and ends every session.
func (s *UserService) ChangePassword(ctx context.Context, userID, password string) error {
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrBadRequest, minPasswordLen)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.log.Error(ctx, "password hash failed", "error", err)
		return common.ErrorInternal
	}

	if err := s.mapErr(ctx, s.repomanager.Users(s.tx.Conn()).UpdatePassword(ctx, userID, hash, s.clock())); err != nil {
		return err
	}
	return s.endSessions(ctx, userID)
}

// ChangeRole takes effect on the next request: older access tokens carry
// the previous token version.
func (s *UserService) ChangeRole(ctx context.Context, userID string, role models.Role) error {
	if _, err := models.ParseRole(string(role)); err != nil {
		return fmt.Errorf("%w: %w", common.ErrBadRequest, err)
	}
	return s.mapErr(ctx, s.repomanager.Users(s.tx.Conn()).UpdateRole(ctx, userID, role))
}

// SetActive enables or disables the account. Disabling also ends every
// session.
func (s *UserService) SetActive(ctx context.Context, userID string, active bool) error {
	if err := s.mapErr(ctx, s.repomanager.Users(s.tx.Conn()).SetActive(ctx, userID, active)); err != nil {
		return err
	}
	if active {
		return nil
	}
	return s.endSessions(ctx, userID)
}

// ForceLogout invalidates every access token and refresh token of the user.
func (s *UserService) ForceLogout(ctx context.Context, userID string) error {
	if _, err := s.repomanager.Users(s.tx.Conn()).IncrementTokenVersion(ctx, userID); err != nil {
		return s.mapErr(ctx, err)
	}
	return s.endSessions(ctx, userID)
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	list, err := s.repomanager.Users(s.tx.Conn()).List(ctx)
	if err != nil {
		s.log.Error(ctx, "list users failed", "error", err)
		return nil, common.ErrorInternal
	}
	return list, nil
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := s.repomanager.Users(s.tx.Conn()).GetUserByLogin(ctx, username)
	if err != nil {
		return nil, s.mapErr(ctx, err)
	}
	return u, nil
}

func (s *UserService) Sessions(ctx context.Context, userID string) ([]models.RefreshToken, error) {
	return s.vault.ListActive(ctx, userID)
}

func (s *UserService) endSessions(ctx context.Context, userID string) error {
	n, err := s.vault.RevokeAll(ctx, userID)
	if err != nil {
		return err
	}
	s.log.Info(ctx, "sessions revoked", "user_id", userID, "revoked", n)
	return nil
}

func (s *UserService) mapErr(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrorNotFound):
		return err
	default:
		s.log.Error(ctx, "user update failed", "error", err)
		return common.ErrorInternal
	}
}
