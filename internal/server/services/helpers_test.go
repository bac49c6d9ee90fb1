package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct horse battery"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)}
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

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.JWTSecret = "jjjjjjjjjjjjjjjjjjjjjjjjjjjjjjjj"
	cfg.RefreshSecret = "rrrrrrrrrrrrrrrrrrrrrrrrrrrrrrrr"
	return cfg
}

func fastHasher() cryptox.PasswordHasher {
	return &cryptox.Argon2Hasher{Time: 1, Memory: 8 * 1024, Threads: 1}
}

// engine is the whole session engine wired over a repository manager.
type engine struct {
	clock    *testClock
	cfg      *config.Config
	rm       repomanager.RepositoryManager
	verifier *CredentialVerifier
	vault    *RefreshTokenVault
	access   *AccessTokenService
	sessions *SessionService
	users    *UserService
}

func newEngineWith(t *testing.T, tx dbx.Transactor, rm repomanager.RepositoryManager, clock *testClock, mutate func(*config.Config)) *engine {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	log := logging.Nop{}
	hasher := fastHasher()

	codec := auth.NewTokenCodec([]byte(cfg.JWTSecret), auth.CodecOptions{
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		TTL:      cfg.AccessTokenTTL,
		Leeway:   cfg.ClockSkewLeeway,
		Clock:    clock.Now,
	})

	e := &engine{clock: clock, cfg: cfg, rm: rm}
	e.verifier = NewCredentialVerifier(tx, rm, hasher, cfg, clock.Now, log)
	e.vault = NewRefreshTokenVault(tx, rm, cfg, clock.Now, log)
	e.access = NewAccessTokenService(codec, tx, rm, log)
	e.sessions = NewSessionService(e.verifier, e.access, e.vault, log)
	e.users = NewUserService(tx, rm, hasher, e.vault, clock.Now, log)
	return e
}

func newEngine(t *testing.T, mutate func(*config.Config)) *engine {
	t.Helper()
	clock := newTestClock()
	return newEngineWith(t, dbx.DirectTransactor{}, repomanager.NewMemoryRepositoryManager(clock.Now), clock, mutate)
}

func (e *engine) mustCreateUser(t *testing.T, name string, role models.Role) *models.User {
	t.Helper()
	u, err := e.users.CreateUser(context.Background(), name, testPassword, role)
	require.NoError(t, err)
	return u
}

// fakeRepoManager lets a test swap one repository for a stub.
type fakeRepoManager struct {
	u users.Repository
	r refreshtokens.Repository
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return m.r }
