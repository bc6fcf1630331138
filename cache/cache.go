package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/module"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/observe"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/resilience"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/store"
)

// MaxKeyLength bounds len(module id)+len(entity id).
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)

// errNoStore marks calls made without a persistent tier.
var errNoStore = errors.New("cache: no persistent store")

// Entry is the unit of storage. Output holds the encoded module output.
type Entry struct {
	ModuleID    module.ID       `json:"moduleId"`
	EntityID    string          `json:"entityId"`
	Output      json.RawMessage `json:"output"`
	GeneratedAt time.Time       `json:"generatedAt"`
	SourceHash  string          `json:"sourceHash"`
}

// Key returns the entry's address.
func (e Entry) Key() Key {
	return Key{Module: e.ModuleID, Entity: e.EntityID}
}

func (e Entry) clone() Entry {
	e.Output = append(json.RawMessage(nil), e.Output...)
	return e
}

// Stats are cumulative counters since the cache was created.
type Stats struct {
	Hits            int64
	Misses          int64
	Stale           int64
	Writes          int64
	PersistFailures int64
	MemoryEntries   int
	// PendingRemovals counts persistent keys and entities whose deletion
	// has not succeeded yet. Reads of them are misses until it does.
	PendingRemovals int
	Degraded        bool
}

// Cache is the two-tier cache.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: storage failures are logged and counted, never returned.
// - Ownership: returned entries are copies; callers cannot mutate cached state.
type Cache struct {
	keyer   Keyer
	mem     *memoryTier
	persist store.Store
	breaker *resilience.CircuitBreaker
	pending *removals
	logger  observe.Logger
	metrics observe.Metrics
	now     func() time.Time

	hits, misses, stale, writes, persistFailures atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithPrefix sets the key prefix. Default: DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(c *Cache) { c.keyer = NewKeyer(prefix) }
}

// WithStore attaches the persistent tier. Without it the cache is in-process only.
func WithStore(s store.Store) Option {
	return func(c *Cache) { c.persist = s }
}

// WithBreaker replaces the circuit breaker guarding the persistent tier.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Cache) { c.breaker = cb }
}

// WithLogger sets the logger for swallowed storage failures.
func WithLogger(l observe.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithMetrics sets the metrics sink for cache events.
func WithMetrics(m observe.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithClock overrides the clock used for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache. It is an explicitly owned value; callers inject it
// where it is needed rather than sharing a process-wide instance.
func New(opts ...Option) *Cache {
	c := &Cache{
		keyer:   NewKeyer(DefaultPrefix),
		mem:     newMemoryTier(),
		pending: newRemovals(),
		logger:  observe.NopLogger(),
		metrics: observe.NopMetrics(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})
	}
	return c
}

// Keyer returns the keyer used for persistent keys.
func (c *Cache) Keyer() Keyer { return c.keyer }

// Get returns the entry for (moduleID, entityID) if its source hash equals
// currentHash. A mismatched entry is deleted from both tiers.
func (c *Cache) Get(ctx context.Context, moduleID module.ID, entityID, currentHash string) (Entry, bool) {
	k := Key{Module: moduleID, Entity: entityID}
	if k.Validate() != nil || currentHash == UnhashableSource {
		c.record(ctx, moduleID, observe.CacheMiss, &c.misses)
		return Entry{}, false
	}
	key := c.keyer.Key(k)

	entry, ok := c.mem.get(key)
	if !ok {
		entry, ok = c.loadPersistent(ctx, key, k)
		if !ok {
			c.record(ctx, moduleID, observe.CacheMiss, &c.misses)
			return Entry{}, false
		}
		c.mem.set(key, entry)
	}

	if entry.SourceHash != currentHash {
		c.mem.deleteIf(key, entry.SourceHash)
		c.removePersistent(ctx, key)
		c.record(ctx, moduleID, observe.CacheStale, &c.stale)
		return Entry{}, false
	}

	c.record(ctx, moduleID, observe.CacheHit, &c.hits)
	return entry.clone(), true
}

// Set stores output under (moduleID, entityID), replacing any previous entry.
// The in-process write always happens; a persistent failure is swallowed.
// The only error is ErrInvalidKey or ErrKeyTooLong for unusable ids.
func (c *Cache) Set(ctx context.Context, moduleID module.ID, entityID string, output json.RawMessage, sourceHash string) (Entry, error) {
	k := Key{Module: moduleID, Entity: entityID}
	if err := k.Validate(); err != nil {
		return Entry{}, err
	}
	key := c.keyer.Key(k)

	entry := Entry{
		ModuleID:    moduleID,
		EntityID:    entityID,
		Output:      append(json.RawMessage(nil), output...),
		GeneratedAt: c.now().UTC(),
		SourceHash:  sourceHash,
	}
	c.mem.set(key, entry)
	c.record(ctx, moduleID, observe.CacheWrite, &c.writes)

	if c.persist == nil || !c.settlePending(ctx, key, entityID) {
		return entry.clone(), nil
	}
	encoded, err := json.Marshal(entry)
	if err != nil {
		c.persistFailed(ctx, "encode", key, err)
		return entry.clone(), nil
	}
	_ = c.withPersistent(ctx, "set", key, func(ctx context.Context) error {
		return c.persist.Set(ctx, key, string(encoded))
	})
	return entry.clone(), nil
}

// Invalidate deletes (moduleID, entityID) from both tiers. Absent keys are not an error.
func (c *Cache) Invalidate(ctx context.Context, moduleID module.ID, entityID string) {
	k := Key{Module: moduleID, Entity: entityID}
	if k.Validate() != nil {
		return
	}
	key := c.keyer.Key(k)
	c.mem.delete(key)
	c.removePersistent(ctx, key)
}

// InvalidateAll deletes every entry for entityID across all modules in both
// tiers.
func (c *Cache) InvalidateAll(ctx context.Context, entityID string) {
	if entityID == "" {
		return
	}
	c.mem.deleteEntity(entityID)
	c.purgeEntity(ctx, entityID)
}

// Degraded reports whether the persistent tier is currently being skipped.
func (c *Cache) Degraded() bool {
	return c.persist != nil && c.breaker.State() == resilience.StateOpen
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:            c.hits.Load(),
		Misses:          c.misses.Load(),
		Stale:           c.stale.Load(),
		Writes:          c.writes.Load(),
		PersistFailures: c.persistFailures.Load(),
		MemoryEntries:   c.mem.len(),
		PendingRemovals: c.pending.len(),
		Degraded:        c.Degraded(),
	}
}

// peek returns the in-process entry for k when it carries sourceHash, without
// touching counters or the persistent tier.
func (c *Cache) peek(k Key, sourceHash string) (Entry, bool) {
	entry, ok := c.mem.get(c.keyer.Key(k))
	if !ok || entry.SourceHash != sourceHash {
		return Entry{}, false
	}
	return entry, true
}

func (c *Cache) loadPersistent(ctx context.Context, key string, want Key) (Entry, bool) {
	if c.persist == nil || !c.settlePending(ctx, key, want.Entity) {
		return Entry{}, false
	}
	var (
		raw   string
		found bool
	)
	err := c.withPersistent(ctx, "get", key, func(ctx context.Context) error {
		var err error
		raw, found, err = c.persist.Get(ctx, key)
		return err
	})
	if err != nil || !found {
		return Entry{}, false
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil || entry.Key() != want || len(entry.Output) == 0 {
		c.logger.Warn(ctx, "discarding undecodable persisted entry", observe.Field{Key: "key", Value: key})
		c.removePersistent(ctx, key)
		return Entry{}, false
	}
	return entry, true
}

// removePersistent deletes key from the persistent tier. Deletes bypass the
// breaker and the caller's cancellation. A failed delete is remembered and
// retried before the key is read or written again.
func (c *Cache) removePersistent(ctx context.Context, key string) bool {
	if c.persist == nil {
		return true
	}
	if err := c.persist.Remove(context.WithoutCancel(ctx), key); err != nil {
		c.pending.addKey(key)
		c.persistFailed(ctx, "remove", key, err)
		return false
	}
	c.pending.dropKey(key)
	return true
}

// purgeEntity removes every persistent key of entityID. The persistent tier
// has no entity index, so keys are scanned by suffix and each candidate is
// parsed to confirm the entity exactly.
func (c *Cache) purgeEntity(ctx context.Context, entityID string) bool {
	if c.persist == nil {
		return true
	}
	keys, err := c.persist.Keys(context.WithoutCancel(ctx))
	if err != nil {
		c.pending.addEntity(entityID)
		c.persistFailed(ctx, "keys", "", err)
		return false
	}

	ok := true
	suffix := entitySuffix(entityID)
	for _, key := range keys {
		if !strings.HasPrefix(key, c.keyer.Prefix) || !strings.HasSuffix(key, suffix) {
			continue
		}
		parsed, valid := c.keyer.ParseKey(key)
		if !valid || parsed.Entity != entityID {
			continue
		}
		if !c.removePersistent(ctx, key) {
			ok = false
		}
	}
	if ok {
		c.pending.dropEntity(entityID)
	} else {
		c.pending.addEntity(entityID)
	}
	return ok
}

// settlePending retries outstanding deletes that cover key. It reports
// whether key may be read from or written to the persistent tier.
func (c *Cache) settlePending(ctx context.Context, key, entityID string) bool {
	entityPending, keyPending := c.pending.covers(key, entityID)
	if entityPending && !c.purgeEntity(ctx, entityID) {
		return false
	}
	if keyPending && !c.removePersistent(ctx, key) {
		return false
	}
	return true
}

// withPersistent runs a read or write against the persistent tier through
// the circuit breaker. Quota rejections and the caller's own cancellation do
// not count against the breaker.
func (c *Cache) withPersistent(ctx context.Context, op, key string, fn func(context.Context) error) error {
	if c.persist == nil {
		return errNoStore
	}
	if !c.breaker.Allow() {
		return resilience.ErrCircuitOpen
	}
	err := fn(ctx)
	switch {
	case err == nil, errors.Is(err, store.ErrQuotaExceeded):
		c.breaker.Record(nil)
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		c.breaker.Record(nil)
		return err
	default:
		c.breaker.Record(err)
	}
	if err != nil {
		c.persistFailed(ctx, op, key, err)
	}
	return err
}

func (c *Cache) persistFailed(ctx context.Context, op, key string, err error) {
	c.persistFailures.Add(1)
	mod := ""
	if k, ok := c.keyer.ParseKey(key); ok {
		mod = string(k.Module)
	}
	c.metrics.RecordCache(ctx, mod, observe.CachePersistFailure)
	c.logger.Warn(ctx, "persistent cache tier failed",
		observe.Field{Key: "op", Value: op},
		observe.Field{Key: "key", Value: key},
		observe.Field{Key: "error", Value: err.Error()},
	)
}

func (c *Cache) record(ctx context.Context, moduleID module.ID, outcome observe.CacheOutcome, counter *atomic.Int64) {
	counter.Add(1)
	c.metrics.RecordCache(ctx, string(moduleID), outcome)
}
