package cache

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/singleflight"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/module"
)

// ComputeFunc produces the encoded output for one module run.
type ComputeFunc func(ctx context.Context) (json.RawMessage, error)

// Result is what Execute returns.
type Result struct {
	Output json.RawMessage
	// Cached reports whether Output came from the cache.
	Cached bool
	// Entry is the stored entry; zero when the module is not cached.
	Entry Entry
}

// Middleware composes cache lookup, computation and write-back.
type Middleware struct {
	cache  *Cache
	policy Policy
	flight singleflight.Group
}

// NewMiddleware creates a middleware over c.
func NewMiddleware(c *Cache, policy Policy) *Middleware {
	return &Middleware{cache: c, policy: policy}
}

// Cache returns the underlying cache.
func (m *Middleware) Cache() *Cache { return m.cache }

// Policy returns the caching policy.
func (m *Middleware) Policy() Policy { return m.policy }

// Execute returns the cached output for (moduleID, entityID) when its source
// hash matches, otherwise runs compute and stores the result.
//
// Modules outside the policy and unhashable inputs are computed directly.
// Concurrent misses for the same key and source hash share one computation;
// a caller whose context ends stops waiting without failing the others.
// Compute errors are returned and never cached; a prior entry is left as is.
func (m *Middleware) Execute(
	ctx context.Context,
	moduleID module.ID,
	entityID string,
	sourceHash string,
	compute ComputeFunc,
) (Result, error) {
	if !m.policy.ShouldCache(moduleID) || sourceHash == UnhashableSource {
		out, err := compute(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{Output: out}, nil
	}

	k := Key{Module: moduleID, Entity: entityID}
	if err := k.Validate(); err != nil {
		return Result{}, err
	}

	if entry, ok := m.cache.Get(ctx, moduleID, entityID, sourceHash); ok {
		return Result{Output: entry.Output, Cached: true, Entry: entry}, nil
	}

	// The shared computation outlives any one caller: it runs detached from
	// the caller's cancellation, and each caller stops waiting on its own.
	flightKey := m.cache.keyer.Key(k) + "\x00" + sourceHash
	detached := context.WithoutCancel(ctx)
	ch := m.flight.DoChan(flightKey, func() (any, error) {
		// A flight that finished between Get and DoChan already stored the result.
		if entry, ok := m.cache.peek(k, sourceHash); ok {
			return entry, nil
		}
		out, err := compute(detached)
		if err != nil {
			return nil, err
		}
		return m.cache.Set(detached, moduleID, entityID, out, sourceHash)
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		entry := res.Val.(Entry).clone()
		return Result{Output: entry.Output, Entry: entry}, nil
	}
}
