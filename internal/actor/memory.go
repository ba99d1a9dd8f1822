package actor

import (
	"context"
	"sync"
	"time"

	"tribuna.org/internal/ids"
)

// MemoryRepository is an in-process Repository used in tests and local
// development.
type MemoryRepository struct {
	mu     sync.Mutex
	actors map[string]*Actor
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{actors: make(map[string]*Actor)}
}

func (r *MemoryRepository) Create(_ context.Context, a *Actor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == "" {
		a.ID = ids.New()
	}
	if a.Status == "" {
		a.Status = StatusActive
	}
	for _, existing := range r.actors {
		if existing.Kind == a.Kind && existing.Email == a.Email && existing.DeletedAt == nil {
			return ErrConflict
		}
		if a.Slug != "" && existing.Kind == a.Kind && existing.Slug == a.Slug && existing.DeletedAt == nil {
			return ErrConflict
		}
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	r.actors[a.ID] = cloneActor(a)
	return nil
}

func (r *MemoryRepository) Find(_ context.Context, kind Kind, id string) (*Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.actors[id]
	if !ok || a.Kind != kind {
		return nil, ErrNotFound
	}
	return cloneActor(a), nil
}

func (r *MemoryRepository) FindByEmail(_ context.Context, kind Kind, email string) (*Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.actors {
		if a.Kind == kind && a.Email == email && a.DeletedAt == nil {
			return cloneActor(a), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) UpdatePassword(_ context.Context, kind Kind, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.actors[id]
	if !ok || a.Kind != kind || a.DeletedAt != nil {
		return ErrNotFound
	}
	a.PasswordHash = passwordHash
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepository) SetResetToken(_ context.Context, kind Kind, id, tokenHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.actors[id]
	if !ok || a.Kind != kind || a.DeletedAt != nil {
		return ErrNotFound
	}
	a.ResetTokenHash = tokenHash
	exp := expiresAt
	a.ResetTokenExpiresAt = &exp
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepository) FindByResetToken(_ context.Context, kind Kind, tokenHash string) (*Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tokenHash == "" {
		return nil, ErrNotFound
	}
	for _, a := range r.actors {
		if a.Kind == kind && a.ResetTokenHash == tokenHash && a.DeletedAt == nil {
			return cloneActor(a), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) ClearResetToken(_ context.Context, kind Kind, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.actors[id]
	if !ok || a.Kind != kind {
		return ErrNotFound
	}
	a.ResetTokenHash = ""
	a.ResetTokenExpiresAt = nil
	return nil
}

// SetStatus flips an actor's status directly, bypassing any cache. Used by
// tests exercising the staleness window.
func (r *MemoryRepository) SetStatus(id, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.actors[id]; ok {
		a.Status = status
		a.UpdatedAt = time.Now().UTC()
	}
}

func cloneActor(a *Actor) *Actor {
	out := *a
	if a.ResetTokenExpiresAt != nil {
		t := *a.ResetTokenExpiresAt
		out.ResetTokenExpiresAt = &t
	}
	if a.DeletedAt != nil {
		t := *a.DeletedAt
		out.DeletedAt = &t
	}
	return &out
}
