package auth

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Sentinel errors reported in failed Results.
var (
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenMalformed     = errors.New("auth: token malformed")
)

// Method names how a caller authenticated.
type Method string

const (
	MethodAPIKey    Method = "api_key"
	MethodJWT       Method = "jwt"
	MethodAnonymous Method = "anonymous"
)

// Identity is an authenticated caller.
type Identity struct {
	Principal string
	Method    Method
	Claims    map[string]any
	ExpiresAt time.Time
}

// Anonymous is the identity attached when authentication is disabled.
func Anonymous() *Identity {
	return &Identity{Principal: "anonymous", Method: MethodAnonymous, Claims: map[string]any{}}
}

// Result is the outcome of one authentication attempt.
type Result struct {
	Identity *Identity
	// Err is set when authentication failed.
	Err error
}

// OK reports whether authentication succeeded.
func (r Result) OK() bool { return r.Err == nil && r.Identity != nil }

func success(id *Identity) Result { return Result{Identity: id} }

func failure(err error) Result { return Result{Err: err} }

// Authenticator checks the credentials carried by request headers.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: a rejected credential is a failed Result; the error return is
//     reserved for internal failures.
type Authenticator interface {
	Name() string
	// Supports reports whether h carries a credential this authenticator reads.
	Supports(h http.Header) bool
	Authenticate(ctx context.Context, h http.Header) (Result, error)
}

type identityKey struct{}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity attached by Middleware, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
