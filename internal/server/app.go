// Package server wires configuration, storage and the session engine into
// the HTTP and gRPC servers and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/dmitrijs2005/authkeeper/internal/timex"

	gs "github.com/dmitrijs2005/authkeeper/internal/server/grpc"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const shutdownTimeout = 10 * time.Second

// Storage is an opened backend: the repositories, the transaction runner
// and the handle to close on shutdown.
type Storage struct {
	DB          *sql.DB
	RepoManager repomanager.RepositoryManager
	Tx          dbx.Transactor
}

func (s *Storage) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// OpenStorage opens the configured backend and applies migrations when asked.
func OpenStorage(ctx context.Context, cfg *config.Config, clock timex.Clock) (*Storage, error) {
	if cfg.Storage == config.StorageMemory {
		return &Storage{
			RepoManager: repomanager.NewMemoryRepositoryManager(clock),
			Tx:          dbx.DirectTransactor{},
		}, nil
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if cfg.MigrateOnStart {
		if err := rm.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &Storage{DB: db, RepoManager: rm, Tx: dbx.NewSQLTransactor(db)}, nil
}

// Engine is the set of services built over one storage backend.
type Engine struct {
	Verifier *services.CredentialVerifier
	Vault    *services.RefreshTokenVault
	Access   *services.AccessTokenService
	Sessions *services.SessionService
	Users    *services.UserService
}

func NewEngine(cfg *config.Config, st *Storage, clock timex.Clock, logger logging.Logger) *Engine {
	hasher := cryptox.NewArgon2Hasher()
	codec := auth.NewTokenCodec([]byte(cfg.JWTSecret), auth.CodecOptions{
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		TTL:      cfg.AccessTokenTTL,
		Leeway:   cfg.ClockSkewLeeway,
		Clock:    clock,
	})

	e := &Engine{}
	e.Verifier = services.NewCredentialVerifier(st.Tx, st.RepoManager, hasher, cfg, clock, logger)
	e.Vault = services.NewRefreshTokenVault(st.Tx, st.RepoManager, cfg, clock, logger)
	e.Access = services.NewAccessTokenService(codec, st.Tx, st.RepoManager, logger)
	e.Sessions = services.NewSessionService(e.Verifier, e.Access, e.Vault, logger)
	e.Users = services.NewUserService(st.Tx, st.RepoManager, hasher, e.Vault, clock, logger)
	return e
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	storage *Storage
	engine  *Engine
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	st, err := OpenStorage(ctx, c, timex.SystemClock)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	return &App{
		config:  c,
		logger:  logger,
		storage: st,
		engine:  NewEngine(c, st, timex.SystemClock, logger),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.GRPCAddr, app.engine.Sessions, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "gRPC server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	var pinger httpapi.Pinger
	if app.storage.DB != nil {
		pinger = app.storage.DB
	}
	api := httpapi.NewServer(app.config, app.engine.Sessions, app.engine.Users, pinger, app.logger)

	srv := &http.Server{
		Addr:              app.config.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "HTTP server failed", "error", err)
		cancelFunc()
	}
}

// Run blocks until a signal arrives or a server fails, then waits for every
// component to stop.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.Storage)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		NewSweeper(app.engine.Vault, app.config.SweepInterval, app.logger).Run(ctx)
	}()

	wg.Wait()

	if err := app.storage.Close(); err != nil {
		app.logger.Error(ctx, "storage close failed", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
