// Package models defines server-side data models persisted in the database
// and the identity projection derived from access tokens.
package models

import (
	"fmt"
	"regexp"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

// Role is a closed set of authorisation tiers.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole accepts only known roles.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", common.ErrInvalidRole, s)
	}
}

func (r Role) String() string { return string(r) }

// RoleSet is the set of roles allowed to use a capability.
type RoleSet map[Role]struct{}

func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// IsValidUsername reports whether username is 1-64 characters of
// letters, digits, dots, hyphens and underscores.
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// User is an account row. Lifecycle (creation, deletion) is owned by
// administration tooling; the session engine only mutates the lockout
// counters, last login and token version.
type User struct {
	ID                  string
	UserName            string
	PasswordHash        string
	Role                Role
	Active              bool
	TokenVersion        int64
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLoginAt         *time.Time
	PasswordChangedAt   *time.Time
	CreatedAt           time.Time
}

// IsLocked compares against now on every call; the lock is never cached.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}
