package actor

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func actorRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "kind", "email", "name", "slug", "password_hash", "status", "role",
		"reset_token_hash", "reset_token_expires_at", "created_at", "updated_at", "deleted_at",
	})
}

func TestPGFindByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("select .* from actors").
		WithArgs(string(KindUser), "u@example.org").
		WillReturnRows(actorRows().AddRow(
			"01ABC", "user", "u@example.org", "U", nil, "hash", "active", nil,
			nil, nil, now, now, nil,
		))

	repo := NewPGRepository(db)
	a, err := repo.FindByEmail(context.Background(), KindUser, "u@example.org")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if a.ID != "01ABC" || a.Kind != KindUser || !a.Usable() {
		t.Fatalf("unexpected actor: %+v", a)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGFindMapsNoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select .* from actors").
		WithArgs(string(KindAdministrator), "missing").
		WillReturnError(sql.ErrNoRows)

	repo := NewPGRepository(db)
	if _, err := repo.Find(context.Background(), KindAdministrator, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGCreateMapsUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("insert into actors").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	repo := NewPGRepository(db)
	a := &Actor{Kind: KindUser, Email: "dup@example.org", PasswordHash: "hash"}
	if err := repo.Create(context.Background(), a); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestPGUpdatePasswordRequiresRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("update actors set password_hash").
		WithArgs(string(KindUser), "gone", "newhash").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPGRepository(db)
	if err := repo.UpdatePassword(context.Background(), KindUser, "gone", "newhash"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
