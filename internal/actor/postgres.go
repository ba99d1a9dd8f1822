package actor

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"tribuna.org/internal/ids"
)

const pgErrUniqueViolation = "23505"

const actorColumns = `id, kind, email, name, slug, password_hash, status, role,
	reset_token_hash, reset_token_expires_at, created_at, updated_at, deleted_at`

// PGRepository implements Repository on PostgreSQL. All three actor kinds
// share one table with a kind discriminator; email uniqueness is enforced
// per kind among non-deleted rows.
type PGRepository struct {
	db *sql.DB
}

var _ Repository = (*PGRepository)(nil)

func NewPGRepository(db *sql.DB) *PGRepository {
	return &PGRepository{db: db}
}

func (r *PGRepository) Create(ctx context.Context, a *Actor) error {
	if a.ID == "" {
		a.ID = ids.New()
	}
	if a.Status == "" {
		a.Status = StatusActive
	}
	row := r.db.QueryRowContext(ctx, `
		insert into actors (id, kind, email, name, slug, password_hash, status, role)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning created_at, updated_at
	`, a.ID, a.Kind, a.Email, a.Name, nullable(a.Slug), a.PasswordHash, a.Status, nullable(a.Role))
	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (r *PGRepository) Find(ctx context.Context, kind Kind, id string) (*Actor, error) {
	row := r.db.QueryRowContext(ctx,
		`select `+actorColumns+` from actors where kind = $1 and id = $2`, kind, id)
	return scanActor(row)
}

func (r *PGRepository) FindByEmail(ctx context.Context, kind Kind, email string) (*Actor, error) {
	row := r.db.QueryRowContext(ctx,
		`select `+actorColumns+` from actors
		 where kind = $1 and email = $2 and deleted_at is null`, kind, email)
	return scanActor(row)
}

func (r *PGRepository) UpdatePassword(ctx context.Context, kind Kind, id, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `
		update actors set password_hash = $3, updated_at = now()
		where kind = $1 and id = $2 and deleted_at is null
	`, kind, id, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PGRepository) SetResetToken(ctx context.Context, kind Kind, id, tokenHash string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		update actors set reset_token_hash = $3, reset_token_expires_at = $4, updated_at = now()
		where kind = $1 and id = $2 and deleted_at is null
	`, kind, id, tokenHash, expiresAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PGRepository) FindByResetToken(ctx context.Context, kind Kind, tokenHash string) (*Actor, error) {
	row := r.db.QueryRowContext(ctx,
		`select `+actorColumns+` from actors
		 where kind = $1 and reset_token_hash = $2 and deleted_at is null`, kind, tokenHash)
	return scanActor(row)
}

func (r *PGRepository) ClearResetToken(ctx context.Context, kind Kind, id string) error {
	_, err := r.db.ExecContext(ctx, `
		update actors set reset_token_hash = null, reset_token_expires_at = null, updated_at = now()
		where kind = $1 and id = $2
	`, kind, id)
	return err
}

func scanActor(row *sql.Row) (*Actor, error) {
	var (
		a         Actor
		slug      sql.NullString
		role      sql.NullString
		resetHash sql.NullString
		resetExp  sql.NullTime
		deletedAt sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Kind, &a.Email, &a.Name, &slug, &a.PasswordHash, &a.Status,
		&role, &resetHash, &resetExp, &a.CreatedAt, &a.UpdatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Slug = slug.String
	a.Role = role.String
	a.ResetTokenHash = resetHash.String
	if resetExp.Valid {
		t := resetExp.Time
		a.ResetTokenExpiresAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		a.DeletedAt = &t
	}
	return &a, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
