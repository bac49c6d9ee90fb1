package models

import "time"

// RefreshToken is one session handle. TokenHash is the keyed digest of the
// secret handed to the client; the secret itself is never stored.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	UserAgent string
	IPAddress string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// IsLive reports whether the token is neither revoked nor expired at now.
func (t *RefreshToken) IsLive(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}

// ClientMetadata is optional information recorded with a session.
type ClientMetadata struct {
	UserAgent string
	IPAddress string
}

// UserSnapshot is the part of a user read at rotation time.
type UserSnapshot struct {
	UserID       string
	UserName     string
	Role         Role
	TokenVersion int64
}
