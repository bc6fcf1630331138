// Package store defines the persistent key/value tier behind the cache.
//
// A Store maps string keys to string values under a byte quota. It is shared:
// unrelated data may live in the same namespace, so callers prefix their keys.
// Every operation is fallible. Package cache treats any error as a miss and
// never surfaces it.
package store
