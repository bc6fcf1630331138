package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/secret"
)

// DefaultCredentialRef reads the Messages API key from the environment.
const DefaultCredentialRef = "${ANTHROPIC_API_KEY}"

// Credential resolves the service credential once and remembers it.
// A failed resolution is not remembered: the next call tries again and,
// if the credential is still absent, fails again with ErrMissingCredential.
type Credential struct {
	ref      string
	resolver *secret.Resolver

	mu    sync.Mutex
	value string
}

// NewCredential creates a credential for a configured reference such as
// "${ANTHROPIC_API_KEY}" or "secretref:file:/run/secrets/llm". A nil resolver
// uses secret.DefaultResolver.
func NewCredential(ref string, resolver *secret.Resolver) *Credential {
	if resolver == nil {
		resolver = secret.DefaultResolver()
	}
	return &Credential{ref: ref, resolver: resolver}
}

// StaticCredential wraps an already-known value.
func StaticCredential(value string) *Credential {
	return &Credential{value: value}
}

// Value returns the credential or an error wrapping ErrMissingCredential.
func (c *Credential) Value(ctx context.Context) (string, error) {
	if c == nil {
		return "", ErrMissingCredential
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.value != "" {
		return c.value, nil
	}
	if c.ref == "" {
		return "", ErrMissingCredential
	}

	v, err := c.resolver.Resolve(ctx, c.ref)
	if err != nil {
		if errors.Is(err, secret.ErrMissingEnv) || errors.Is(err, secret.ErrEmptySecret) {
			return "", fmt.Errorf("%w: %v", ErrMissingCredential, err)
		}
		return "", fmt.Errorf("%w: resolve: %v", ErrMissingCredential, err)
	}
	c.value = v
	return v, nil
}

// Configured reports whether the credential currently resolves.
func (c *Credential) Configured(ctx context.Context) bool {
	_, err := c.Value(ctx)
	return err == nil
}
