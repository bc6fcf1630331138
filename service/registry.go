package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/module"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/modules"
)

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	ID              module.ID `json:"id"`
	Name            string    `json:"name"`
	Cached          bool      `json:"cached"`
	MaxOutputTokens int       `json:"maxOutputTokens"`
}

// Reply is a type-erased module result.
type Reply struct {
	Module      module.ID       `json:"module"`
	Entity      string          `json:"entity"`
	Output      json.RawMessage `json:"output"`
	Cached      bool            `json:"cached"`
	GeneratedAt *time.Time      `json:"generatedAt,omitempty"`
	SourceHash  string          `json:"sourceHash"`
}

type handler struct {
	info    ModuleInfo
	compute func(ctx context.Context, s *Service, entityID string, input json.RawMessage) (Reply, error)
	peek    func(ctx context.Context, s *Service, entityID string, input json.RawMessage) (Reply, bool, error)
}

// Registry exposes modules by id with JSON input and output.
type Registry struct {
	svc      *Service
	mu       sync.RWMutex
	handlers map[module.ID]handler
}

// NewRegistry creates an empty registry over svc.
func NewRegistry(svc *Service) *Registry {
	return &Registry{svc: svc, handlers: make(map[module.ID]handler)}
}

// DefaultRegistry creates a registry with all eight modules.
func DefaultRegistry(svc *Service) *Registry {
	r := NewRegistry(svc)
	Register(r, modules.DatasetIntelligence())
	Register(r, modules.AnalysisRecommendation())
	Register(r, modules.Interpretation())
	Register(r, modules.MethodsSection())
	Register(r, modules.ResultsNarrative())
	Register(r, modules.ConsistencyCheck())
	Register(r, modules.ReproducibilitySummary())
	Register(r, modules.IndicatorDetection())
	return r
}

// Register adds def to r, replacing any module with the same id.
func Register[I, S any](r *Registry, def module.Definition[I, S]) {
	h := handler{
		info: ModuleInfo{
			ID:              def.ID,
			Name:            def.Name,
			Cached:          r.svc.cache.Policy().ShouldCache(def.ID),
			MaxOutputTokens: def.MaxOutputTokens,
		},
		compute: func(ctx context.Context, s *Service, entityID string, input json.RawMessage) (Reply, error) {
			in, err := decodeInput[I](def.ID, input)
			if err != nil {
				return Reply{}, err
			}
			res, err := GetOrCompute(ctx, s, def, entityID, in)
			if err != nil {
				return Reply{}, err
			}
			return reply(def.ID, entityID, res)
		},
		peek: func(ctx context.Context, s *Service, entityID string, input json.RawMessage) (Reply, bool, error) {
			in, err := decodeInput[I](def.ID, input)
			if err != nil {
				return Reply{}, false, err
			}
			res, ok := PeekCached(ctx, s, def, entityID, in)
			if !ok {
				return Reply{}, false, nil
			}
			rep, err := reply(def.ID, entityID, res)
			return rep, err == nil, err
		},
	}

	r.mu.Lock()
	r.handlers[def.ID] = h
	r.mu.Unlock()
}

// Compute runs GetOrCompute for the module registered under id.
func (r *Registry) Compute(ctx context.Context, id module.ID, entityID string, input json.RawMessage) (Reply, error) {
	h, err := r.lookup(id)
	if err != nil {
		return Reply{}, err
	}
	return h.compute(ctx, r.svc, entityID, input)
}

// Peek runs PeekCached for the module registered under id.
func (r *Registry) Peek(ctx context.Context, id module.ID, entityID string, input json.RawMessage) (Reply, bool, error) {
	h, err := r.lookup(id)
	if err != nil {
		return Reply{}, false, err
	}
	return h.peek(ctx, r.svc, entityID, input)
}

// Modules lists the registered modules sorted by id.
func (r *Registry) Modules() []ModuleInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModuleInfo, 0, len(r.handlers))
	for _, h := range r.handlers {
		out = append(out, h.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Service returns the service the registry dispatches to.
func (r *Registry) Service() *Service { return r.svc }

func (r *Registry) lookup(id module.ID) (handler, error) {
	r.mu.RLock()
	h, ok := r.handlers[id]
	r.mu.RUnlock()
	if !ok {
		return handler{}, fmt.Errorf("%w: %q", ErrUnknownModule, id)
	}
	return h, nil
}

func decodeInput[I any](id module.ID, input json.RawMessage) (I, error) {
	var in I
	if len(bytes.TrimSpace(input)) == 0 {
		return in, nil
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return in, fmt.Errorf("%w for %s: %v", ErrInvalidInput, id, err)
	}
	return in, nil
}

func reply[S any](id module.ID, entityID string, res Result[S]) (Reply, error) {
	encoded, err := json.Marshal(res.Output)
	if err != nil {
		return Reply{}, fmt.Errorf("module %s: encode output: %w", id, err)
	}
	rep := Reply{
		Module:     id,
		Entity:     entityID,
		Output:     encoded,
		Cached:     res.Cached,
		SourceHash: res.SourceHash,
	}
	if !res.GeneratedAt.IsZero() {
		t := res.GeneratedAt
		rep.GeneratedAt = &t
	}
	return rep, nil
}
