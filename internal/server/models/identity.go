package models

import "time"

// Identity is the validated caller attached to a request context after an
// access token passed every check.
type Identity struct {
	UserID    string
	UserName  string
	Role      Role
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
