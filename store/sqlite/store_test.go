package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/store"
)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"), opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_RequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, ok, err := s.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("Get missing = %v, %v", ok, err)
	}
	if err := s.Set(ctx, "rf-ai-cache:interpretation::study-1", `{"a":1}`); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "rf-ai-cache:interpretation::study-1", `{"a":2}`); err != nil {
		t.Fatal(err)
	}
	v, ok, err := s.Get(ctx, "rf-ai-cache:interpretation::study-1")
	if err != nil || !ok || v != `{"a":2}` {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}
	if err := s.Remove(ctx, "rf-ai-cache:interpretation::study-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(ctx, "rf-ai-cache:interpretation::study-1"); err != nil {
		t.Fatalf("Remove is not idempotent: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "rf-ai-cache:interpretation::study-1"); ok {
		t.Error("value survived Remove")
	}
}

func TestStore_KeysAndUsage(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, WithQuota(0))

	_ = s.Set(ctx, "b", "12")
	_ = s.Set(ctx, "a", "é") // two bytes in UTF-8

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(keys, []string{"a", "b"}) {
		t.Errorf("Keys = %v", keys)
	}
	usage, err := s.Usage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if usage != 6 {
		t.Errorf("Usage = %d, want 6 bytes", usage)
	}
}

func TestStore_Quota(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, WithQuota(10))

	if err := s.Set(ctx, "a", "123456789"); err != nil {
		t.Fatalf("write at quota: %v", err)
	}
	if err := s.Set(ctx, "b", "1"); !errors.Is(err, store.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if err := s.Set(ctx, "a", "1234567890"); !errors.Is(err, store.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded on growth, got %v", err)
	}
	if v, _, _ := s.Get(ctx, "a"); v != "123456789" {
		t.Errorf("failed Set changed the stored value: %q", v)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	s, err := Open(path, WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if v, ok, _ := s.Get(ctx, "k"); !ok || v != "v" {
		t.Fatalf("value lost across reopen: %q, %v", v, ok)
	}

	var updatedAt int64
	if err := s.db.QueryRowContext(ctx, `SELECT updated_at FROM kv WHERE key = 'k'`).Scan(&updatedAt); err != nil {
		t.Fatal(err)
	}
	if updatedAt != fixed.UnixMilli() {
		t.Errorf("updated_at = %d, want %d", updatedAt, fixed.UnixMilli())
	}
}

func TestStore_ClosedIsUnavailable(t *testing.T) {
	s := openTestStore(t)
	_ = s.Close()

	ctx := context.Background()
	if _, _, err := s.Get(ctx, "k"); !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("Get on closed store: %v", err)
	}
	if err := s.Set(ctx, "k", "v"); !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("Set on closed store: %v", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("Ping on closed store: %v", err)
	}
}
