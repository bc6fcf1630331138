package store

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
)

func TestMemory_GetSetRemove(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	if _, ok, err := m.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("Get on empty store = %v, %v", ok, err)
	}
	if err := m.Set(ctx, "k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := m.Set(ctx, "k", "v2"); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := m.Get(ctx, "k"); !ok || v != "v2" {
		t.Errorf("Get = %q, %v; want v2", v, ok)
	}
	if err := m.Remove(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := m.Remove(ctx, "k"); err != nil {
		t.Errorf("second Remove should be a no-op: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Error("key still present after Remove")
	}
}

func TestMemory_UsageTracksReplacements(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	_ = m.Set(ctx, "ab", "1234")  // 6
	_ = m.Set(ctx, "cd", "12")    // 4
	_ = m.Set(ctx, "ab", "12345") // 7 replaces 6
	if got, _ := m.Usage(ctx); got != 11 {
		t.Errorf("Usage = %d, want 11", got)
	}
	_ = m.Remove(ctx, "cd")
	if got, _ := m.Usage(ctx); got != 7 {
		t.Errorf("Usage after Remove = %d, want 7", got)
	}
}

func TestMemory_Quota(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)

	if err := m.Set(ctx, "a", "123456789"); err != nil { // exactly 10
		t.Fatalf("write at quota should succeed: %v", err)
	}
	err := m.Set(ctx, "b", "1")
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if _, ok, _ := m.Get(ctx, "b"); ok {
		t.Error("rejected write was stored")
	}

	// Replacing with a smaller value frees room; a larger one leaves the old value.
	if err := m.Set(ctx, "a", strings.Repeat("x", 10)); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded on growth, got %v", err)
	}
	if v, _, _ := m.Get(ctx, "a"); v != "123456789" {
		t.Errorf("failed Set replaced the old value: %q", v)
	}
	if err := m.Set(ctx, "a", "1"); err != nil {
		t.Fatalf("shrinking write failed: %v", err)
	}
	if err := m.Set(ctx, "b", "1"); err != nil {
		t.Fatalf("write after shrink failed: %v", err)
	}
}

func TestMemory_KeysSorted(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	for _, k := range []string{"c", "a", "b"} {
		_ = m.Set(ctx, k, "v")
	}
	keys, err := m.Keys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(keys, []string{"a", "b", "c"}) {
		t.Errorf("Keys = %v", keys)
	}
}

func TestMemory_EmptyKey(t *testing.T) {
	if err := NewMemory(0).Set(context.Background(), "", "v"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestMemory_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMemory(0)
	if err := m.Set(ctx, "k", "v"); !errors.Is(err, context.Canceled) {
		t.Errorf("Set with canceled context: %v", err)
	}
	if _, _, err := m.Get(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get with canceled context: %v", err)
	}
}

func TestMemory_Concurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i))
			_ = m.Set(ctx, key, "value")
			_, _, _ = m.Get(ctx, key)
			_, _ = m.Keys(ctx)
		}(i)
	}
	wg.Wait()
	if got, _ := m.Usage(ctx); got != 16*6 {
		t.Errorf("Usage = %d, want %d", got, 16*6)
	}
}

func TestFits(t *testing.T) {
	tests := []struct {
		quota, usage, old, new int64
		want                   bool
	}{
		{0, 1 << 40, 0, 100, true},
		{100, 90, 0, 10, true},
		{100, 90, 0, 11, false},
		{100, 100, 20, 20, true},
		{100, 100, 20, 21, false},
	}
	for _, tt := range tests {
		if got := Fits(tt.quota, tt.usage, tt.old, tt.new); got != tt.want {
			t.Errorf("Fits(%d, %d, %d, %d) = %v, want %v", tt.quota, tt.usage, tt.old, tt.new, got, tt.want)
		}
	}
}
