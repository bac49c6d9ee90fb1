package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin_Success(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	u := e.mustCreateUser(t, "alice", models.RoleUser)

	pair, err := e.sessions.Login(ctx, "alice", testPassword, models.ClientMetadata{UserAgent: "test"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, 2*time.Hour, pair.ExpiresIn)
	assert.NotEmpty(t, pair.RefreshToken)

	id, err := e.sessions.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.UserID)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	e.mustCreateUser(t, "alice", models.RoleUser)
	disabled := e.mustCreateUser(t, "carol", models.RoleUser)
	require.NoError(t, e.users.SetActive(ctx, disabled.ID, false))

	_, err := e.sessions.Login(ctx, "ghost", testPassword, models.ClientMetadata{})
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = e.sessions.Login(ctx, "carol", testPassword, models.ClientMetadata{})
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.ErrorIs(t, err, common.ErrAccountDisabled)

	for i := 0; i < 5; i++ {
		_, err = e.sessions.Login(ctx, "alice", "bad password", models.ClientMetadata{})
		assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	}
	_, err = e.sessions.Login(ctx, "alice", testPassword, models.ClientMetadata{})
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.ErrorIs(t, err, common.ErrAccountLocked)
}

func TestLogin_BadRequest(t *testing.T) {
	e := newEngine(t, nil)
	_, err := e.sessions.Login(context.Background(), "", "x", models.ClientMetadata{})
	assert.ErrorIs(t, err, common.ErrBadRequest)
}

func TestRefresh_RotatesAndRejectsReuse(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	u := e.mustCreateUser(t, "alice", models.RoleUser)

	login, err := e.sessions.Login(ctx, "alice", testPassword, models.ClientMetadata{})
	require.NoError(t, err)

	e.clock.Advance(time.Minute)
	refreshed, err := e.sessions.Refresh(ctx, login.RefreshToken, models.ClientMetadata{})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	id, err := e.sessions.Authenticate(ctx, refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.UserID)

	_, err = e.sessions.Refresh(ctx, login.RefreshToken, models.ClientMetadata{})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	e.mustCreateUser(t, "alice", models.RoleUser)

	login, err := e.sessions.Login(ctx, "alice", testPassword, models.ClientMetadata{})
	require.NoError(t, err)

	e.sessions.Logout(ctx, login.RefreshToken)
	e.sessions.Logout(ctx, login.RefreshToken)
	e.sessions.Logout(ctx, "")

	_, err = e.sessions.Refresh(ctx, login.RefreshToken, models.ClientMetadata{})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestMe(t *testing.T) {
	e := newEngine(t, nil)

	_, err := e.sessions.Me(context.Background())
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	want := &models.Identity{UserID: "u-1", UserName: "alice", Role: models.RoleUser}
	got, err := e.sessions.Me(auth.WithIdentity(context.Background(), want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
