package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser_Validation(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)

	tests := []struct {
		name     string
		username string
		password string
		role     models.Role
	}{
		{"bad username", "al ice", testPassword, models.RoleUser},
		{"empty username", "", testPassword, models.RoleUser},
		{"short password", "alice", "short", models.RoleUser},
		{"unknown role", "alice", testPassword, models.Role("root")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.users.CreateUser(ctx, tt.username, tt.password, tt.role)
			assert.ErrorIs(t, err, common.ErrBadRequest)
		})
	}

	e.mustCreateUser(t, "alice", models.RoleUser)
	_, err := e.users.CreateUser(ctx, "alice", testPassword, models.RoleUser)
	assert.ErrorIs(t, err, common.ErrUsernameExists)
}

func TestCreateUser_HashesPassword(t *testing.T) {
	e := newEngine(t, nil)
	u := e.mustCreateUser(t, "alice", models.RoleUser)

	assert.NotContains(t, u.PasswordHash, testPassword)
	assert.Contains(t, u.PasswordHash, "$argon2id$")
	assert.True(t, u.Active)
}

func TestChangePassword_EndsSessionsAndTokens(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	u := e.mustCreateUser(t, "alice", models.RoleUser)

	login, err := e.sessions.Login(ctx, "alice", testPassword, models.ClientMetadata{})
	require.NoError(t, err)

	require.NoError(t, e.users.ChangePassword(ctx, u.ID, "a brand new password"))

	_, err = e.sessions.Authenticate(ctx, login.AccessToken)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	_, err = e.sessions.Refresh(ctx, login.RefreshToken, models.ClientMetadata{})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = e.sessions.Login(ctx, "alice", testPassword, models.ClientMetadata{})
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	_, err = e.sessions.Login(ctx, "alice", "a brand new password", models.ClientMetadata{})
	assert.NoError(t, err)

	assert.ErrorIs(t, e.users.ChangePassword(ctx, u.ID, "short"), common.ErrBadRequest)
	assert.ErrorIs(t, e.users.ChangePassword(ctx, "missing", "long enough pw"), common.ErrorNotFound)
}

func TestChangeRole_InvalidatesAccessTokens(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	u := e.mustCreateUser(t, "alice", models.RoleUser)

	login, err := e.sessions.Login(ctx, "alice", testPassword, models.ClientMetadata{})
	require.NoError(t, err)

	require.NoError(t, e.users.ChangeRole(ctx, u.ID, models.RoleAdmin))
	_, err = e.sessions.Authenticate(ctx, login.AccessToken)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	refreshed, err := e.sessions.Refresh(ctx, login.RefreshToken, models.ClientMetadata{})
	require.NoError(t, err)
	id, err := e.sessions.Authenticate(ctx, refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, id.Role)

	assert.ErrorIs(t, e.users.ChangeRole(ctx, u.ID, "owner"), common.ErrBadRequest)
}

func TestSetActive(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	u := e.mustCreateUser(t, "alice", models.RoleUser)

	login, err := e.sessions.Login(ctx, "alice", testPassword, models.ClientMetadata{})
	require.NoError(t, err)

	require.NoError(t, e.users.SetActive(ctx, u.ID, false))
	sessions, err := e.users.Sessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	_, err = e.sessions.Refresh(ctx, login.RefreshToken, models.ClientMetadata{})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	require.NoError(t, e.users.SetActive(ctx, u.ID, true))
	_, err = e.sessions.Login(ctx, "alice", testPassword, models.ClientMetadata{})
	assert.NoError(t, err)
}

func TestForceLogoutAndList(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	u := e.mustCreateUser(t, "bob", models.RoleUser)
	e.mustCreateUser(t, "alice", models.RoleAdmin)

	for i := 0; i < 2; i++ {
		_, err := e.sessions.Login(ctx, "bob", testPassword, models.ClientMetadata{})
		require.NoError(t, err)
	}
	sessions, err := e.users.Sessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	require.NoError(t, e.users.ForceLogout(ctx, u.ID))
	sessions, err = e.users.Sessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	assert.ErrorIs(t, e.users.ForceLogout(ctx, "missing"), common.ErrorNotFound)

	list, err := e.users.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].UserName)
}
