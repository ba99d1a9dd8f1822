package kv

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemorySetGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	if err := store.SetWithTTL(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("unexpected value: %q", got)
	}

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	// Deleting twice is fine.
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete absent: %v", err)
	}
}

func TestMemoryRejectsNonPositiveTTL(t *testing.T) {
	store := NewMemory()
	if err := store.SetWithTTL(context.Background(), "k", []byte("v"), 0); err == nil {
		t.Fatal("expected error for zero TTL")
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	now := time.Unix(1_700_000_000, 0)
	store.SetClock(func() time.Time { return now })

	if err := store.SetWithTTL(ctx, "k", []byte("v"), 30*time.Second); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	if _, err := store.Get(ctx, "k"); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	now = now.Add(31 * time.Second)
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
	if _, err := store.CheckAndDelete(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired check-and-delete, got %v", err)
	}
}

func TestMemoryCheckAndDeleteIsSingleUse(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	if err := store.SetWithTTL(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	val, err := store.CheckAndDelete(ctx, "k")
	if err != nil {
		t.Fatalf("CheckAndDelete: %v", err)
	}
	if string(val) != "v" {
		t.Fatalf("unexpected value: %q", val)
	}
	if _, err := store.CheckAndDelete(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second call, got %v", err)
	}
}

func TestMemoryCheckAndDeleteConcurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	const attempts = 64
	if err := store.SetWithTTL(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.CheckAndDelete(ctx, "k"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}
