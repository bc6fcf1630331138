package cache

import "github.com/n2kfchd42b-glitch/researchflow-sub002/module"

// Policy decides which modules are cached.
type Policy struct {
	// Never lists modules whose output is always recomputed.
	Never []module.ID

	// Disabled turns caching off for every module.
	Disabled bool
}

// DefaultPolicy never caches the methods section, the results narrative and
// the consistency check. Drafts are regenerated on demand and a submission
// check must not be served stale.
func DefaultPolicy() Policy {
	return Policy{Never: []module.ID{
		module.MethodsSection,
		module.ResultsNarrative,
		module.ConsistencyCheck,
	}}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{Disabled: true}
}

// ShouldCache reports whether outputs of id are cached.
func (p Policy) ShouldCache(id module.ID) bool {
	if p.Disabled {
		return false
	}
	for _, never := range p.Never {
		if never == id {
			return false
		}
	}
	return true
}
