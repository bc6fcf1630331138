package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// DefaultAPIKeyHeader carries API keys.
const DefaultAPIKeyHeader = "X-API-Key"

// APIKeyAuthenticator accepts a fixed set of keys. Only SHA-256 digests of
// the keys are kept in memory.
type APIKeyAuthenticator struct {
	header  string
	digests [][sha256.Size]byte
}

// NewAPIKeyAuthenticator accepts keys sent in header. An empty header uses
// DefaultAPIKeyHeader; blank keys are ignored.
func NewAPIKeyAuthenticator(header string, keys ...string) *APIKeyAuthenticator {
	if header == "" {
		header = DefaultAPIKeyHeader
	}
	a := &APIKeyAuthenticator{header: header}
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			a.digests = append(a.digests, sha256.Sum256([]byte(k)))
		}
	}
	return a
}

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string { return string(MethodAPIKey) }

// Len returns how many keys are accepted.
func (a *APIKeyAuthenticator) Len() int { return len(a.digests) }

// Supports reports whether the key header is present.
func (a *APIKeyAuthenticator) Supports(h http.Header) bool {
	return h.Get(a.header) != ""
}

// Authenticate compares the presented key against every accepted key in
// constant time.
func (a *APIKeyAuthenticator) Authenticate(_ context.Context, h http.Header) (Result, error) {
	key := strings.TrimSpace(h.Get(a.header))
	if key == "" {
		return failure(ErrMissingCredentials), nil
	}
	digest := sha256.Sum256([]byte(key))

	matched := 0
	for _, d := range a.digests {
		matched |= subtle.ConstantTimeCompare(digest[:], d[:])
	}
	if matched != 1 {
		return failure(ErrInvalidCredentials), nil
	}
	return success(&Identity{
		// The principal names the key without revealing it.
		Principal: "key:" + hex.EncodeToString(digest[:4]),
		Method:    MethodAPIKey,
		Claims:    map[string]any{},
	}), nil
}

var _ Authenticator = (*APIKeyAuthenticator)(nil)
