package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process Store. It keeps nothing across restarts and is used
// when no database is configured and in tests.
type Memory struct {
	mu    sync.RWMutex
	data  map[string]string
	usage int64
	quota int64
}

// NewMemory creates a Memory store. quota <= 0 means unlimited.
func NewMemory(quota int64) *Memory {
	return &Memory{data: make(map[string]string), quota: quota}
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var oldSize int64
	if old, ok := m.data[key]; ok {
		oldSize = PairSize(key, old)
	}
	newSize := PairSize(key, value)
	if !Fits(m.quota, m.usage, oldSize, newSize) {
		return fmt.Errorf("%w: %d of %d bytes used, write needs %d", ErrQuotaExceeded, m.usage, m.quota, newSize-oldSize)
	}
	m.data[key] = value
	m.usage += newSize - oldSize
	return nil
}

func (m *Memory) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.data[key]; ok {
		m.usage -= PairSize(key, old)
		delete(m.data, key)
	}
	return nil
}

// Keys returns all keys in lexical order.
func (m *Memory) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) Usage(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usage, nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

var _ Store = (*Memory)(nil)
