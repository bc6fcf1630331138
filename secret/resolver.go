package secret

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for resolution.
var (
	ErrUnknownProvider = errors.New("secret: provider is not registered")
	ErrEmptySecret     = errors.New("secret: resolved value is empty")
)

const refPrefix = "secretref:"

// Resolver resolves configuration values into secrets.
type Resolver struct {
	providers map[string]Provider
	strict    bool
}

// NewResolver creates a resolver. In strict mode an empty resolved value is
// an error (ErrEmptySecret).
func NewResolver(strict bool, providers ...Provider) *Resolver {
	r := &Resolver{
		providers: make(map[string]Provider),
		strict:    strict,
	}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// DefaultResolver is a strict resolver with the env and file providers.
func DefaultResolver() *Resolver {
	return NewResolver(true, EnvProvider{}, FileProvider{})
}

// Register adds or replaces a provider.
func (r *Resolver) Register(p Provider) {
	if r == nil || p == nil {
		return
	}
	if r.providers == nil {
		r.providers = make(map[string]Provider)
	}
	r.providers[p.Name()] = p
}

// Resolve expands value against the environment and, if the result is a
// secretref, resolves it through the named provider.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil {
		return "", err
	}

	out := expanded
	if providerName, ref, ok := ParseSecretRef(expanded); ok {
		if r == nil {
			return "", fmt.Errorf("%w: %q", ErrUnknownProvider, providerName)
		}
		provider, found := r.providers[providerName]
		if !found {
			return "", fmt.Errorf("%w: %q", ErrUnknownProvider, providerName)
		}
		out, err = provider.Resolve(ctx, ref)
		if err != nil {
			return "", err
		}
	}

	if (r == nil || r.strict) && strings.TrimSpace(out) == "" {
		return "", ErrEmptySecret
	}
	return out, nil
}

// ParseSecretRef parses a full secret reference of the form:
//
//	secretref:<provider>:<ref>
func ParseSecretRef(value string) (provider string, ref string, ok bool) {
	if !strings.HasPrefix(value, refPrefix) {
		return "", "", false
	}
	parts := strings.SplitN(strings.TrimPrefix(value, refPrefix), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
