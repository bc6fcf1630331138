package cache

import (
	"sync"
)

// memoryTier is the in-process tier: one entry per key string, owned by Cache.
type memoryTier struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func newMemoryTier() *memoryTier {
	return &memoryTier{entries: make(map[string]Entry)}
}

func (m *memoryTier) get(key string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return e, ok
}

func (m *memoryTier) set(key string, e Entry) {
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
}

func (m *memoryTier) delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// deleteIf removes the entry at key only if it still carries sourceHash, so a
// stale read does not discard a fresh write that landed in between.
func (m *memoryTier) deleteIf(key, sourceHash string) {
	m.mu.Lock()
	if e, ok := m.entries[key]; ok && e.SourceHash == sourceHash {
		delete(m.entries, key)
	}
	m.mu.Unlock()
}

// deleteEntity removes every entry for entity and returns how many it removed.
func (m *memoryTier) deleteEntity(entity string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key, e := range m.entries {
		if e.EntityID == entity {
			delete(m.entries, key)
			n++
		}
	}
	return n
}

func (m *memoryTier) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// removals tracks persistent deletes that have not succeeded yet, by key and
// by entity. A covered key is never reloaded from the persistent tier.
type removals struct {
	mu       sync.Mutex
	keys     map[string]struct{}
	entities map[string]struct{}
}

func newRemovals() *removals {
	return &removals{keys: make(map[string]struct{}), entities: make(map[string]struct{})}
}

func (r *removals) addKey(key string) {
	r.mu.Lock()
	r.keys[key] = struct{}{}
	r.mu.Unlock()
}

func (r *removals) dropKey(key string) {
	r.mu.Lock()
	delete(r.keys, key)
	r.mu.Unlock()
}

func (r *removals) addEntity(entity string) {
	r.mu.Lock()
	r.entities[entity] = struct{}{}
	r.mu.Unlock()
}

func (r *removals) dropEntity(entity string) {
	r.mu.Lock()
	delete(r.entities, entity)
	r.mu.Unlock()
}

// covers reports whether a delete is outstanding for entity or for key.
func (r *removals) covers(key, entity string) (entityPending, keyPending bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, entityPending = r.entities[entity]
	_, keyPending = r.keys[key]
	return entityPending, keyPending
}

func (r *removals) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys) + len(r.entities)
}
