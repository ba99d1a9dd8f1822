package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"tribuna.org/internal/ids"
)

var errGrantStoreUnavailable = errors.New("auth: grant store unavailable")

// Grant is one permission assignment owned by an administrator. An
// administrator may hold any number of grants; authorization works on the
// union of their actions.
type Grant struct {
	ID        string
	AdminID   string
	Actions   []Action
	CreatedAt time.Time
}

// GrantStore persists administrator permission grants.
type GrantStore interface {
	GrantSource
	Add(ctx context.Context, grant *Grant) error
	Remove(ctx context.Context, grantID string) error
	ListFor(ctx context.Context, adminID string) ([]Grant, error)
}

// MemoryGrantStore keeps grants in process, for tests and development.
type MemoryGrantStore struct {
	mu     sync.Mutex
	grants map[string]*Grant
	failed bool
}

var _ GrantStore = (*MemoryGrantStore)(nil)

func NewMemoryGrantStore() *MemoryGrantStore {
	return &MemoryGrantStore{grants: make(map[string]*Grant)}
}

// FailNextReads makes every subsequent read error, to exercise fail-closed
// paths in tests.
func (s *MemoryGrantStore) FailNextReads(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = fail
}

func (s *MemoryGrantStore) Add(_ context.Context, grant *Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if grant.ID == "" {
		grant.ID = ids.New()
	}
	grant.CreatedAt = time.Now().UTC()
	cp := *grant
	cp.Actions = append([]Action(nil), grant.Actions...)
	s.grants[grant.ID] = &cp
	return nil
}

func (s *MemoryGrantStore) Remove(_ context.Context, grantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, grantID)
	return nil
}

func (s *MemoryGrantStore) ListFor(_ context.Context, adminID string) ([]Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed {
		return nil, errGrantStoreUnavailable
	}
	var out []Grant
	for _, g := range s.grants {
		if g.AdminID == adminID {
			cp := *g
			cp.Actions = append([]Action(nil), g.Actions...)
			out = append(out, cp)
		}
	}
	return out, nil
}

func (s *MemoryGrantStore) ActionsFor(ctx context.Context, adminID string) (map[Action]struct{}, error) {
	grants, err := s.ListFor(ctx, adminID)
	if err != nil {
		return nil, err
	}
	return unionActions(grants), nil
}

func unionActions(grants []Grant) map[Action]struct{} {
	set := make(map[Action]struct{})
	for _, g := range grants {
		for _, a := range g.Actions {
			set[a] = struct{}{}
		}
	}
	return set
}
