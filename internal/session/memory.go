package session

import (
	"context"
	"sync"
	"time"

	"tribuna.org/internal/ids"
)

// MemoryStore keeps session records in process, for tests and development.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (s *MemoryStore) Create(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.ID == "" {
		sess.ID = ids.New()
	}
	now := time.Now().UTC()
	sess.IsActive = true
	sess.CreatedAt = now
	sess.LastActivityAt = now
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *MemoryStore) Rotate(_ context.Context, oldRefreshHash, newAccessHash, newRefreshHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.IsActive && sess.RefreshTokenHash == oldRefreshHash {
			sess.AccessTokenHash = newAccessHash
			sess.RefreshTokenHash = newRefreshHash
			sess.ExpiresAt = expiresAt
			sess.LastActivityAt = time.Now().UTC()
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) Deactivate(_ context.Context, refreshHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.IsActive && sess.RefreshTokenHash == refreshHash {
			sess.IsActive = false
			sess.LastActivityAt = time.Now().UTC()
			return nil
		}
	}
	return ErrNotFound
}

// ActiveCount reports live sessions, for assertions in tests.
func (s *MemoryStore) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.IsActive {
			n++
		}
	}
	return n
}

// FindByRefreshHash returns a copy of the matching session, if any.
func (s *MemoryStore) FindByRefreshHash(hash string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.RefreshTokenHash == hash {
			cp := *sess
			return &cp, true
		}
	}
	return nil, false
}
