package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/cache"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/gateway"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/module"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/observe"
)

// Sentinel errors.
var (
	// ErrUnknownModule is returned for module ids that are not registered.
	ErrUnknownModule = errors.New("service: unknown module")

	// ErrInvalidInput wraps input that cannot be decoded for a module.
	ErrInvalidInput = errors.New("service: invalid module input")
)

// Service composes the cache middleware, the gateway and run instrumentation.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: only gateway errors and invalid ids reach callers; storage
//     failures degrade to recomputation.
type Service struct {
	cache   *cache.Middleware
	gateway gateway.Gateway
	runs    *observe.Middleware
	logger  observe.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithObserveMiddleware instruments module runs.
func WithObserveMiddleware(mw *observe.Middleware) Option {
	return func(s *Service) { s.runs = mw }
}

// WithLogger sets the logger used for cache anomalies.
func WithLogger(l observe.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service. Caching is bypassed entirely when mw is nil.
func New(mw *cache.Middleware, gw gateway.Gateway, opts ...Option) *Service {
	if mw == nil {
		mw = cache.NewMiddleware(cache.New(), cache.NoCachePolicy())
	}
	s := &Service{cache: mw, gateway: gw}
	for _, opt := range opts {
		opt(s)
	}
	if s.runs == nil {
		s.runs = observe.NewMiddleware(nil, nil, nil)
	}
	if s.logger == nil {
		s.logger = s.runs.Logger()
	}
	return s
}

// Cache returns the underlying cache.
func (s *Service) Cache() *cache.Cache { return s.cache.Cache() }

// Invalidate drops the cached output of one module for entityID.
func (s *Service) Invalidate(ctx context.Context, id module.ID, entityID string) error {
	if !id.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownModule, id)
	}
	s.cache.Cache().Invalidate(ctx, id, entityID)
	return nil
}

// InvalidateAll drops every cached output for entityID, across all modules.
func (s *Service) InvalidateAll(ctx context.Context, entityID string) {
	s.cache.Cache().InvalidateAll(ctx, entityID)
}

// Result is a module output together with its cache provenance.
type Result[S any] struct {
	Output module.Output[S]
	// Cached reports whether Output was served from the cache.
	Cached bool
	// GeneratedAt is when the cached entry was written; zero for modules that
	// are never cached.
	GeneratedAt time.Time
	// SourceHash fingerprints the input fields that decide staleness.
	SourceHash string
}

// GetOrCompute returns the cached output of def for entityID when the
// relevant input fields are unchanged, and runs the module otherwise.
func GetOrCompute[I, S any](ctx context.Context, s *Service, def module.Definition[I, S], entityID string, in I) (Result[S], error) {
	hash := cache.SourceHash(def.SourceInput(in))
	meta := observe.ModuleMeta{
		ID:       string(def.ID),
		Name:     def.Name,
		EntityID: entityID,
		Cached:   s.cache.Policy().ShouldCache(def.ID),
	}
	run := s.runs.Wrap(func(ctx context.Context, _ observe.ModuleMeta) ([]byte, error) {
		out, err := def.Run(ctx, s.gateway, in)
		if err != nil {
			return nil, err
		}
		return json.Marshal(out)
	})
	compute := func(ctx context.Context) (json.RawMessage, error) {
		return run(ctx, meta)
	}

	res, err := s.cache.Execute(ctx, def.ID, entityID, hash, compute)
	if err != nil {
		return Result[S]{}, err
	}
	out, err := decodeOutput[S](res.Output)
	if err != nil && res.Cached {
		// The entry predates a change to the result type.
		s.logger.Warn(ctx, "discarding undecodable cached output",
			observe.Field{Key: "module.id", Value: string(def.ID)},
			observe.Field{Key: "entity.id", Value: entityID},
			observe.Field{Key: "error", Value: err.Error()},
		)
		s.cache.Cache().Invalidate(ctx, def.ID, entityID)
		if res, err = s.cache.Execute(ctx, def.ID, entityID, hash, compute); err != nil {
			return Result[S]{}, err
		}
		out, err = decodeOutput[S](res.Output)
	}
	if err != nil {
		return Result[S]{}, fmt.Errorf("module %s: decode output: %w", def.ID, err)
	}
	return Result[S]{
		Output:      out,
		Cached:      res.Cached,
		GeneratedAt: res.Entry.GeneratedAt,
		SourceHash:  hash,
	}, nil
}

// PeekCached returns the cached output of def for entityID without computing
// anything. A cached output whose source hash no longer matches in is stale;
// it is deleted and reported absent.
func PeekCached[I, S any](ctx context.Context, s *Service, def module.Definition[I, S], entityID string, in I) (Result[S], bool) {
	if !s.cache.Policy().ShouldCache(def.ID) {
		return Result[S]{}, false
	}
	hash := cache.SourceHash(def.SourceInput(in))
	entry, ok := s.cache.Cache().Get(ctx, def.ID, entityID, hash)
	if !ok {
		return Result[S]{}, false
	}
	out, err := decodeOutput[S](entry.Output)
	if err != nil {
		s.cache.Cache().Invalidate(ctx, def.ID, entityID)
		return Result[S]{}, false
	}
	return Result[S]{
		Output:      out,
		Cached:      true,
		GeneratedAt: entry.GeneratedAt,
		SourceHash:  hash,
	}, true
}

func decodeOutput[S any](raw json.RawMessage) (module.Output[S], error) {
	var out module.Output[S]
	if err := json.Unmarshal(raw, &out); err != nil {
		return module.Output[S]{}, err
	}
	if !out.Complete() {
		return module.Output[S]{}, errors.New("incomplete output envelope")
	}
	return out, nil
}
