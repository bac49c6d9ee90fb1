// Package common defines shared constants and sentinel errors used across
// the authkeeper server and its tools. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")

	// Credential verification outcomes. At the transport edge all of them
	// collapse into the same unauthenticated response.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrAccountDisabled    = errors.New("account disabled")

	// Access token errors (invalid signature, claims or stale version).
	ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrorUnauthorized)

	// ErrRefreshTokenReuse marks presentation of an already rotated refresh
	// secret. It matches ErrorUnauthorized.
	ErrRefreshTokenReuse = fmt.Errorf("%w: refresh token reuse detected", ErrorUnauthorized)

	// Account administration errors.
	ErrUsernameExists = errors.New("username already exists")
	ErrInvalidRole    = errors.New("invalid role")
)
