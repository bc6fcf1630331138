// Package cache provides the two-tier cache for module outputs.
//
// Entries are addressed by (module id, entity id) and carry the source hash of
// the input they were computed from. The in-process tier is authoritative; the
// persistent tier (a store.Store) survives restarts but is fallible and size
// limited, so its failures degrade to cache misses and are never returned.
//
// A read whose source hash differs from the stored one deletes the entry from
// both tiers. Middleware composes lookup, computation and write-back, and
// collapses concurrent misses for the same key into one computation.
package cache
