package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"tribuna.org/internal/ids"
)

// PGGrantStore implements GrantStore on PostgreSQL. Each grant row carries
// its action set as jsonb.
type PGGrantStore struct {
	db *sql.DB
}

var _ GrantStore = (*PGGrantStore)(nil)

func NewPGGrantStore(db *sql.DB) *PGGrantStore {
	return &PGGrantStore{db: db}
}

func (s *PGGrantStore) Add(ctx context.Context, grant *Grant) error {
	if grant.ID == "" {
		grant.ID = ids.New()
	}
	actions, err := json.Marshal(grant.Actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		insert into permission_grants (id, admin_id, actions)
		values ($1, $2, $3)
		returning created_at
	`, grant.ID, grant.AdminID, actions)
	return row.Scan(&grant.CreatedAt)
}

func (s *PGGrantStore) Remove(ctx context.Context, grantID string) error {
	_, err := s.db.ExecContext(ctx, `delete from permission_grants where id = $1`, grantID)
	return err
}

func (s *PGGrantStore) ListFor(ctx context.Context, adminID string) ([]Grant, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, admin_id, actions, created_at
		from permission_grants where admin_id = $1
		order by created_at asc
	`, adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Grant
	for rows.Next() {
		var (
			g   Grant
			raw []byte
		)
		if err := rows.Scan(&g.ID, &g.AdminID, &raw, &g.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &g.Actions); err != nil {
			return nil, fmt.Errorf("decode actions: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *PGGrantStore) ActionsFor(ctx context.Context, adminID string) (map[Action]struct{}, error) {
	grants, err := s.ListFor(ctx, adminID)
	if err != nil {
		return nil, err
	}
	return unionActions(grants), nil
}
