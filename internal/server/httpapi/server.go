// Package httpapi exposes the session protocols and the admin listing over
// HTTP using chi.
package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
)

// Pinger reports storage health. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	cfg      *config.Config
	sessions *services.SessionService
	users    *services.UserService
	pinger   Pinger
	log      logging.Logger
}

// NewServer builds the handler set. pinger may be nil when there is no
// external store.
func NewServer(cfg *config.Config, sessions *services.SessionService, users *services.UserService,
	pinger Pinger, log logging.Logger) *Server {
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		users:    users,
		pinger:   pinger,
		log:      log.With("module", "http"),
	}
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}
