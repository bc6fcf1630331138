package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures a JWTAuthenticator.
type JWTConfig struct {
	// Secret is the HS256 signing key. Required.
	Secret []byte
	// Issuer, when set, must match the iss claim.
	Issuer string
	// Leeway tolerates clock skew on exp and nbf. Default: 30 seconds
	Leeway time.Duration
}

const bearerPrefix = "Bearer "

// JWTAuthenticator validates HS256 bearer tokens from the Authorization header.
type JWTAuthenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTAuthenticator creates a JWTAuthenticator.
func NewJWTAuthenticator(config JWTConfig) *JWTAuthenticator {
	if config.Leeway <= 0 {
		config.Leeway = 30 * time.Second
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(config.Leeway),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	return &JWTAuthenticator{secret: config.Secret, parser: jwt.NewParser(opts...)}
}

// Name returns "jwt".
func (a *JWTAuthenticator) Name() string { return string(MethodJWT) }

// Supports reports whether a bearer token is present.
func (a *JWTAuthenticator) Supports(h http.Header) bool {
	return strings.HasPrefix(h.Get("Authorization"), bearerPrefix)
}

// Authenticate parses and verifies the bearer token.
func (a *JWTAuthenticator) Authenticate(_ context.Context, h http.Header) (Result, error) {
	raw, ok := strings.CutPrefix(h.Get("Authorization"), bearerPrefix)
	if !ok || strings.TrimSpace(raw) == "" {
		return failure(ErrMissingCredentials), nil
	}

	claims := jwt.MapClaims{}
	_, err := a.parser.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return failure(ErrTokenExpired), nil
	case errors.Is(err, jwt.ErrTokenMalformed):
		return failure(ErrTokenMalformed), nil
	case err != nil:
		return failure(ErrInvalidCredentials), nil
	}

	id := &Identity{Method: MethodJWT, Claims: map[string]any(claims)}
	if sub, err := claims.GetSubject(); err == nil {
		id.Principal = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	if id.Principal == "" {
		return failure(ErrInvalidCredentials), nil
	}
	return success(id), nil
}

var _ Authenticator = (*JWTAuthenticator)(nil)
