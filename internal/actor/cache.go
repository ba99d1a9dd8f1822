package actor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"tribuna.org/internal/kv"
)

// cachedProfile is the subset of an Actor worth re-validating on every
// request. Credentials and reset state never enter the cache.
type cachedProfile struct {
	ID      string `json:"id"`
	Kind    Kind   `json:"kind"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Role    string `json:"role,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

// Cache is a read-through identity cache keyed identity:{actorId}. Entries
// are invalidated only by TTL expiry; a status change elsewhere becomes
// visible at most one TTL later. That staleness window is an accepted
// trade-off, not a race.
type Cache struct {
	store kv.Store
	repo  Repository
	ttl   time.Duration
}

// NewCache wraps repo with a cache over store. TTL must be positive.
func NewCache(store kv.Store, repo Repository, ttl time.Duration) (*Cache, error) {
	if store == nil || repo == nil {
		return nil, errors.New("actor: cache requires a kv store and a repository")
	}
	if ttl <= 0 {
		return nil, errors.New("actor: cache TTL must be positive")
	}
	return &Cache{store: store, repo: repo, ttl: ttl}, nil
}

// Find returns the actor profile, from cache when fresh, otherwise from the
// repository (populating the cache on the way out). Repository misses are
// not cached.
func (c *Cache) Find(ctx context.Context, kind Kind, id string) (*Actor, error) {
	key := cacheKey(id)
	if raw, err := c.store.Get(ctx, key); err == nil {
		var p cachedProfile
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil && p.Kind == kind {
			return p.actor(), nil
		}
		// Corrupt or mismatched entry: fall through to the repository.
	}

	a, err := c.repo.Find(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(profileOf(a))
	if err == nil {
		// Cache population is best-effort; a failed write only costs a
		// repository round trip on the next request.
		_ = c.store.SetWithTTL(ctx, key, raw, c.ttl)
	}
	return a, nil
}

func cacheKey(actorID string) string {
	return "identity:" + actorID
}

func profileOf(a *Actor) cachedProfile {
	return cachedProfile{
		ID:      a.ID,
		Kind:    a.Kind,
		Email:   a.Email,
		Name:    a.Name,
		Status:  a.Status,
		Role:    a.Role,
		Deleted: a.DeletedAt != nil,
	}
}

func (p cachedProfile) actor() *Actor {
	a := &Actor{
		ID:     p.ID,
		Kind:   p.Kind,
		Email:  p.Email,
		Name:   p.Name,
		Status: p.Status,
		Role:   p.Role,
	}
	if p.Deleted {
		t := time.Time{}
		a.DeletedAt = &t
	}
	return a
}
