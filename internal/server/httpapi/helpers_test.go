package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct horse battery"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	cfg      *config.Config
	clock    *testClock
	users    *services.UserService
	sessions *services.SessionService
	handler  http.Handler
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.JWTSecret = "jjjjjjjjjjjjjjjjjjjjjjjjjjjjjjjj"
	cfg.RefreshSecret = "rrrrrrrrrrrrrrrrrrrrrrrrrrrrrrrr"
	if mutate != nil {
		mutate(cfg)
	}

	clock := &testClock{now: time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)}
	log := logging.Nop{}
	hasher := &cryptox.Argon2Hasher{Time: 1, Memory: 8 * 1024, Threads: 1}
	rm := repomanager.NewMemoryRepositoryManager(clock.Now)
	tx := dbx.DirectTransactor{}

	codec := auth.NewTokenCodec([]byte(cfg.JWTSecret), auth.CodecOptions{
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		TTL:      cfg.AccessTokenTTL,
		Leeway:   cfg.ClockSkewLeeway,
		Clock:    clock.Now,
	})
	verifier := services.NewCredentialVerifier(tx, rm, hasher, cfg, clock.Now, log)
	vault := services.NewRefreshTokenVault(tx, rm, cfg, clock.Now, log)
	access := services.NewAccessTokenService(codec, tx, rm, log)
	sessions := services.NewSessionService(verifier, access, vault, log)
	users := services.NewUserService(tx, rm, hasher, vault, clock.Now, log)

	return &fixture{
		cfg:      cfg,
		clock:    clock,
		users:    users,
		sessions: sessions,
		handler:  NewServer(cfg, sessions, users, nil, log).Handler(),
	}
}

func (f *fixture) mustCreateUser(t *testing.T, name string, role models.Role) *models.User {
	t.Helper()
	u, err := f.users.CreateUser(context.Background(), name, testPassword, role)
	require.NoError(t, err)
	return u
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func loginRequest(username, password string) *http.Request {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "httpapi-test")
	return req
}

// login returns the access token and the refresh cookie.
func (f *fixture) login(t *testing.T, username string) (string, *http.Cookie) {
	t.Helper()
	rec := f.do(loginRequest(username, testPassword))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.AccessToken, refreshCookie(t, rec, f.cfg.RefreshCookieName)
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func withBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) Error {
	t.Helper()
	var e Error
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}
