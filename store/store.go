package store

import (
	"context"
	"errors"
)

// Sentinel errors for store operations.
var (
	// ErrQuotaExceeded is returned by Set when the write would exceed the byte quota.
	ErrQuotaExceeded = errors.New("store: quota exceeded")

	// ErrUnavailable indicates the backing storage cannot be reached.
	ErrUnavailable = errors.New("store: unavailable")

	// ErrInvalidKey is returned for empty keys.
	ErrInvalidKey = errors.New("store: key is empty")
)

// Store is a namespaced key/value mapping with a byte quota.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Get returns ("", false, nil) for a missing key.
// - Set replaces any existing value; a failed Set leaves the old value in place.
// - Remove is idempotent.
// - Usage counts len(key)+len(value) over all stored pairs.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Usage(ctx context.Context) (int64, error)
}

// DefaultQuotaBytes mirrors the per-origin limit of browser local storage.
const DefaultQuotaBytes int64 = 5 << 20

// Fits reports whether replacing a value of oldSize bytes with a pair of
// newSize bytes keeps usage within quota. A quota <= 0 is unlimited.
func Fits(quota, usage, oldSize, newSize int64) bool {
	if quota <= 0 {
		return true
	}
	return usage-oldSize+newSize <= quota
}

// PairSize is the quota cost of one stored pair.
func PairSize(key, value string) int64 {
	return int64(len(key) + len(value))
}
