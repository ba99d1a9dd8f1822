package actor

import (
	"context"
	"testing"
	"time"

	"tribuna.org/internal/kv"
)

func TestCacheReadThrough(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	store := kv.NewMemory()

	a := &Actor{Kind: KindUser, Email: "u@example.org", Name: "U", PasswordHash: "x"}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	cache, err := NewCache(store, repo, 5*time.Minute)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	got, err := cache.Find(ctx, KindUser, a.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Email != a.Email || got.Status != StatusActive {
		t.Fatalf("unexpected actor: %+v", got)
	}
	if store.Len() != 1 {
		t.Fatalf("expected cache population, got %d entries", store.Len())
	}
}

func TestCacheStalenessWindowBoundedByTTL(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	store := kv.NewMemory()

	now := time.Unix(1_700_000_000, 0)
	store.SetClock(func() time.Time { return now })

	a := &Actor{Kind: KindUser, Email: "u@example.org", PasswordHash: "x"}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ttl := 300 * time.Second
	cache, err := NewCache(store, repo, ttl)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	if _, err := cache.Find(ctx, KindUser, a.ID); err != nil {
		t.Fatalf("warm read: %v", err)
	}

	// Suspend behind the cache's back. Within the TTL the stale entry wins.
	repo.SetStatus(a.ID, StatusSuspended)

	got, err := cache.Find(ctx, KindUser, a.ID)
	if err != nil {
		t.Fatalf("cached read: %v", err)
	}
	if got.Status != StatusActive {
		t.Fatalf("expected stale active status inside TTL, got %s", got.Status)
	}

	// One tick past the TTL the repository is consulted again.
	now = now.Add(ttl + time.Second)
	got, err = cache.Find(ctx, KindUser, a.ID)
	if err != nil {
		t.Fatalf("post-expiry read: %v", err)
	}
	if got.Status != StatusSuspended {
		t.Fatalf("expected suspended status after TTL, got %s", got.Status)
	}
}

func TestCacheKindMismatchFallsThrough(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	store := kv.NewMemory()

	a := &Actor{Kind: KindUser, Email: "u@example.org", PasswordHash: "x"}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	cache, err := NewCache(store, repo, time.Minute)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	if _, err := cache.Find(ctx, KindUser, a.ID); err != nil {
		t.Fatalf("Find: %v", err)
	}
	// Same id under a different kind must not be served from the cache.
	if _, err := cache.Find(ctx, KindAdministrator, a.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for kind mismatch, got %v", err)
	}
}
