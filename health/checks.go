package health

import (
	"context"
	"fmt"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/cache"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/store"
)

// usageWarning is the fraction of the quota above which the store is degraded.
const usageWarning = 0.9

type pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker checks the persistent cache store. A failing store only
// degrades the daemon: the cache falls back to its in-process tier.
type StoreChecker struct {
	store store.Store
	quota int64
}

// NewStoreChecker creates a checker for s. quota <= 0 disables the usage check.
func NewStoreChecker(s store.Store, quota int64) *StoreChecker {
	return &StoreChecker{store: s, quota: quota}
}

// Name returns "store".
func (c *StoreChecker) Name() string { return "store" }

// Check pings the store when it supports it and compares usage with the quota.
func (c *StoreChecker) Check(ctx context.Context) Result {
	if c.store == nil {
		return Healthy("persistent store disabled")
	}
	if p, ok := c.store.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return Degraded("persistent store unreachable", err)
		}
	}
	usage, err := c.store.Usage(ctx)
	if err != nil {
		return Degraded("persistent store usage unavailable", err)
	}

	details := map[string]any{"usage_bytes": usage}
	if c.quota <= 0 {
		return Healthy("persistent store reachable").WithDetails(details)
	}
	ratio := float64(usage) / float64(c.quota)
	details["quota_bytes"] = c.quota
	details["usage_percent"] = ratio * 100
	if ratio >= usageWarning {
		return Degraded(fmt.Sprintf("persistent store %.1f%% full", ratio*100), nil).WithDetails(details)
	}
	return Healthy("persistent store reachable").WithDetails(details)
}

// credential is satisfied by *gateway.Credential.
type credential interface {
	Configured(ctx context.Context) bool
}

// CredentialChecker checks that the generative service credential resolves.
// A missing credential fails every module run, so it is unhealthy.
type CredentialChecker struct {
	cred credential
}

// NewCredentialChecker creates a checker for cred.
func NewCredentialChecker(cred credential) *CredentialChecker {
	return &CredentialChecker{cred: cred}
}

// Name returns "credential".
func (c *CredentialChecker) Name() string { return "credential" }

// Check resolves the credential. The value itself is never reported.
func (c *CredentialChecker) Check(ctx context.Context) Result {
	if c.cred == nil || !c.cred.Configured(ctx) {
		return Unhealthy("service credential is not configured", ErrCheckFailed)
	}
	return Healthy("service credential configured")
}

// cacheStats is satisfied by *cache.Cache.
type cacheStats interface {
	Stats() cache.Stats
}

// CacheChecker reports the cache degraded while its persistent tier is skipped.
type CacheChecker struct {
	cache cacheStats
}

// NewCacheChecker creates a checker for c.
func NewCacheChecker(c cacheStats) *CacheChecker {
	return &CacheChecker{cache: c}
}

// Name returns "cache".
func (c *CacheChecker) Name() string { return "cache" }

// Check reads the cache counters.
func (c *CacheChecker) Check(ctx context.Context) Result {
	s := c.cache.Stats()
	details := map[string]any{
		"hits":             s.Hits,
		"misses":           s.Misses,
		"stale":            s.Stale,
		"writes":           s.Writes,
		"persist_failures": s.PersistFailures,
		"memory_entries":   s.MemoryEntries,
		"pending_removals": s.PendingRemovals,
	}
	if s.Degraded {
		return Degraded("persistent tier circuit open; serving from memory", nil).WithDetails(details)
	}
	return Healthy("cache operating normally").WithDetails(details)
}

var (
	_ Checker = (*StoreChecker)(nil)
	_ Checker = (*CredentialChecker)(nil)
	_ Checker = (*CacheChecker)(nil)
)
