package auth

import (
	"context"
	"net/http"
)

// Composite tries its authenticators in order and returns the first success.
type Composite struct {
	authenticators []Authenticator
}

// NewComposite creates a Composite. Nil authenticators are skipped.
func NewComposite(auths ...Authenticator) *Composite {
	c := &Composite{}
	for _, a := range auths {
		if a != nil {
			c.authenticators = append(c.authenticators, a)
		}
	}
	return c
}

// Name returns "composite".
func (c *Composite) Name() string { return "composite" }

// Len returns the number of authenticators.
func (c *Composite) Len() int { return len(c.authenticators) }

// Supports reports whether any authenticator reads h.
func (c *Composite) Supports(h http.Header) bool {
	for _, a := range c.authenticators {
		if a.Supports(h) {
			return true
		}
	}
	return false
}

// Authenticate runs every authenticator that supports h until one succeeds.
// The last failure is returned when none does.
func (c *Composite) Authenticate(ctx context.Context, h http.Header) (Result, error) {
	last := failure(ErrMissingCredentials)
	for _, a := range c.authenticators {
		if !a.Supports(h) {
			continue
		}
		res, err := a.Authenticate(ctx, h)
		if err != nil {
			return Result{}, err
		}
		if res.OK() {
			return res, nil
		}
		last = res
	}
	return last, nil
}

var _ Authenticator = (*Composite)(nil)
