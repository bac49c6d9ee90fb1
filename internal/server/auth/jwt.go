// Package auth signs and verifies access tokens and carries the validated
// identity through request contexts.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	MinAccessTTL     = time.Minute
	MaxAccessTTL     = 120 * time.Minute
	DefaultAccessTTL = 2 * time.Hour
	DefaultLeeway    = 30 * time.Second
)

// Claims is the access token payload. Subject holds the user id and ID the jti.
type Claims struct {
	jwt.RegisteredClaims
	Username     string `json:"username"`
	Role         string `json:"role"`
	TokenVersion int64  `json:"token_version"`
}

// ClampAccessTTL keeps an access token lifetime within [MinAccessTTL, MaxAccessTTL].
func ClampAccessTTL(d time.Duration) time.Duration {
	switch {
	case d < MinAccessTTL:
		return MinAccessTTL
	case d > MaxAccessTTL:
		return MaxAccessTTL
	default:
		return d
	}
}

type CodecOptions struct {
	Issuer   string
	Audience string
	TTL      time.Duration
	Leeway   time.Duration
	Clock    timex.Clock
}

// TokenCodec is an HS256 signer/verifier bound to one key, issuer and audience.
type TokenCodec struct {
	key    []byte
	opts   CodecOptions
	parser *jwt.Parser
}

func NewTokenCodec(key []byte, opts CodecOptions) *TokenCodec {
	if opts.Clock == nil {
		opts.Clock = timex.SystemClock
	}
	if opts.TTL == 0 {
		opts.TTL = DefaultAccessTTL
	}
	opts.TTL = ClampAccessTTL(opts.TTL)
	if opts.Leeway == 0 {
		opts.Leeway = DefaultLeeway
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(opts.Leeway),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(opts.Clock),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}

	return &TokenCodec{key: key, opts: opts, parser: jwt.NewParser(parserOpts...)}
}

// TTL is the effective, clamped access token lifetime.
func (c *TokenCodec) TTL() time.Duration {
	return c.opts.TTL
}

// Sign mints an access token for the user's current role and token version.
func (c *TokenCodec) Sign(user *models.User) (string, *Claims, error) {
	now := c.opts.Clock()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    c.opts.Issuer,
			Audience:  jwt.ClaimStrings{c.opts.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.opts.TTL)),
			ID:        uuid.NewString(),
		},
		Username:     user.UserName,
		Role:         string(user.Role),
		TokenVersion: user.TokenVersion,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// Parse verifies signature, expiry (with leeway), issuer and audience. It
// does not consult storage.
func (c *TokenCodec) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := c.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return c.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, common.ErrInvalidToken
	}
	if claims.Subject == "" || claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing subject or iat", common.ErrInvalidToken)
	}
	if _, err := models.ParseRole(claims.Role); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	return claims, nil
}

// IsExpired reports whether err came from an expired token.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
