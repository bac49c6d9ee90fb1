package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type identityResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	TokenID   string    `json:"token_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	pair, err := s.sessions.Login(r.Context(), req.Username, req.Password, clientMetadata(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.setRefreshCookie(w, pair)
	writeJSON(w, http.StatusOK, toTokenResponse(pair))
}

// handleRefresh never sets a cookie on failure.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	secret := s.refreshSecret(r)
	if secret == "" {
		writeUnauthorized(w, "missing refresh token")
		return
	}

	pair, err := s.sessions.Refresh(r.Context(), secret, clientMetadata(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.setRefreshCookie(w, pair)
	writeJSON(w, http.StatusOK, toTokenResponse(pair))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if secret := s.refreshSecret(r); secret != "" {
		s.sessions.Logout(r.Context(), secret)
	}
	s.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, err := s.sessions.Me(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, identityResponse{
		ID:        id.UserID,
		Username:  id.UserName,
		Role:      id.Role.String(),
		TokenID:   id.TokenID,
		IssuedAt:  id.IssuedAt,
		ExpiresAt: id.ExpiresAt,
	})
}

func toTokenResponse(p *services.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken: p.AccessToken,
		TokenType:   p.TokenType,
		ExpiresIn:   int64(p.ExpiresIn.Seconds()),
	}
}

func clientMetadata(r *http.Request) models.ClientMetadata {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return models.ClientMetadata{UserAgent: r.UserAgent(), IPAddress: ip}
}
