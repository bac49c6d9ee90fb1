package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/services"
)

func (s *Server) refreshSecret(r *http.Request) string {
	c, err := r.Cookie(s.cfg.RefreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// setRefreshCookie scopes the secret to the auth path; scripts cannot read it.
func (s *Server) setRefreshCookie(w http.ResponseWriter, p *services.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.RefreshCookieName,
		Value:    p.RefreshToken,
		Path:     s.cfg.RefreshCookiePath,
		Expires:  p.RefreshExpiresAt,
		MaxAge:   int(s.cfg.RefreshTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.RefreshCookieName,
		Value:    "",
		Path:     s.cfg.RefreshCookiePath,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
