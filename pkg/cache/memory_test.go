package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCache_SetGet(t *testing.T) {
	cache := NewMemoryCache(&Options{
		DefaultTTL: 1 * time.Minute,
		MaxEntries: 100,
	})
	defer cache.Close()

	ctx := context.Background()
	key := "test-key"
	value := []byte("test-value")

	if err := cache.Set(ctx, key, value, 0); err != nil {
		t.Fatalf("failed to set: %v", err)
	}

	got, err := cache.Get(ctx, key)
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}

	if string(got) != string(value) {
		t.Errorf("expected %s, got %s", value, got)
	}
}

func TestMemoryCache_GetNotFound(t *testing.T) {
	cache := NewMemoryCache(nil)
	defer cache.Close()

	_, err := cache.Get(context.Background(), "nonexistent")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	cache := NewMemoryCache(nil)
	defer cache.Close()

	ctx := context.Background()
	key := "test-key"

	cache.Set(ctx, key, []byte("value"), 0)

	if err := cache.Delete(ctx, key); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}

	if _, err := cache.Get(ctx, key); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound after delete, got %v", err)
	}
}

func TestMemoryCache_TTL(t *testing.T) {
	cache := NewMemoryCache(&Options{
		DefaultTTL:      100 * time.Millisecond,
		CleanupInterval: 50 * time.Millisecond,
	})
	defer cache.Close()

	ctx := context.Background()
	key := "test-key"

	cache.Set(ctx, key, []byte("value"), 100*time.Millisecond)

	if _, err := cache.Get(ctx, key); err != nil {
		t.Fatalf("expected key to exist: %v", err)
	}

	time.Sleep(150 * time.Millisecond)

	if _, err := cache.Get(ctx, key); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound after TTL, got %v", err)
	}
}

func TestMemoryCache_MaxEntriesEviction(t *testing.T) {
	cache := NewMemoryCache(&Options{
		DefaultTTL: time.Minute,
		MaxEntries: 3,
	})
	defer cache.Close()

	ctx := context.Background()
	cache.Set(ctx, "a", []byte("1"), 0)
	cache.Set(ctx, "b", []byte("2"), 0)
	cache.Set(ctx, "c", []byte("3"), 0)
	cache.Set(ctx, "d", []byte("4"), 0)

	stats, err := cache.Stats(ctx)
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if stats.TotalKeys > 3 {
		t.Errorf("expected at most 3 keys after eviction, got %d", stats.TotalKeys)
	}
}

func TestMemoryCache_DeleteByPattern(t *testing.T) {
	cache := NewMemoryCache(nil)
	defer cache.Close()

	ctx := context.Background()
	cache.Set(ctx, "routes:1:10", []byte("a"), 0)
	cache.Set(ctx, "routes:1:11", []byte("b"), 0)
	cache.Set(ctx, "routes:2:10", []byte("c"), 0)

	n, err := cache.DeleteByPattern(ctx, "routes:1:*")
	if err != nil {
		t.Fatalf("failed to delete by pattern: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deletions, got %d", n)
	}

	if ok, _ := cache.Exists(ctx, "routes:2:10"); !ok {
		t.Error("expected key routes:2:10 to survive")
	}
}

func TestMemoryCache_ClosedOperations(t *testing.T) {
	cache := NewMemoryCache(nil)
	cache.Close()

	ctx := context.Background()
	if err := cache.Set(ctx, "k", []byte("v"), 0); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("expected ErrCacheClosed, got %v", err)
	}
	if _, err := cache.Get(ctx, "k"); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("expected ErrCacheClosed, got %v", err)
	}
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"*", "anything", true},
		{"routes:*", "routes:1:10", true},
		{"routes:*", "stats:1", false},
		{"*:10", "routes:1:10", true},
		{"routes:*:10", "routes:1:10", true},
		{"exact", "exact", true},
		{"exact", "exact2", false},
	}
	for _, tt := range tests {
		if got := matchPattern(tt.pattern, tt.key); got != tt.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.key, got, tt.want)
		}
	}
}
