package session

import (
	"context"
	"database/sql"
	"time"

	"tribuna.org/internal/ids"
)

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into sessions (id, actor_kind, actor_id, access_token_hash, refresh_token_hash,
			ip, user_agent, device_type, is_active, expires_at, last_activity_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, true, $9, now())
	`, sess.ID, sess.ActorKind, sess.ActorID, sess.AccessTokenHash, sess.RefreshTokenHash,
		sess.IP, sess.UserAgent, sess.DeviceType, sess.ExpiresAt)
	return err
}

func (s *PGStore) Rotate(ctx context.Context, oldRefreshHash, newAccessHash, newRefreshHash string, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update sessions
		set access_token_hash = $2, refresh_token_hash = $3, expires_at = $4, last_activity_at = now()
		where refresh_token_hash = $1 and is_active
	`, oldRefreshHash, newAccessHash, newRefreshHash, expiresAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) Deactivate(ctx context.Context, refreshHash string) error {
	res, err := s.db.ExecContext(ctx, `
		update sessions
		set is_active = false, last_activity_at = now()
		where refresh_token_hash = $1 and is_active
	`, refreshHash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
