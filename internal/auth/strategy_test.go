package auth

import (
	"context"
	"errors"
	"testing"

	"tribuna.org/internal/actor"
	"tribuna.org/internal/kv"
)

func TestStrategyValidatesPrincipal(t *testing.T) {
	ctx := context.Background()
	repo := actor.NewMemoryRepository()
	issuer := newTestIssuer(t, kv.NewMemory())

	a := &actor.Actor{Kind: actor.KindUser, Email: "u@example.org", Name: "U", PasswordHash: "x"}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	token, _, err := issuer.IssueAccess(a.ID, a.Email)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	claims, err := issuer.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}

	strategy := NewUserStrategy(repo)
	p, err := strategy.Validate(ctx, claims)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if p.ID != a.ID || p.Email != a.Email || p.Kind != actor.KindUser {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if p.Role != "" {
		t.Fatalf("user principal must not carry a role, got %q", p.Role)
	}
}

func TestStrategyRejectsRefreshClaims(t *testing.T) {
	ctx := context.Background()
	repo := actor.NewMemoryRepository()
	issuer := newTestIssuer(t, kv.NewMemory())
	a := seedActor(t, repo, actor.KindUser)

	refresh, _, _, err := issuer.IssueRefresh(ctx, a.ID, a.Email, RequestMeta{})
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	// ParseAccess already rejects; a strategy fed raw refresh claims must
	// reject too.
	claims, err := issuer.ParseRefresh(refresh)
	if err != nil {
		t.Fatalf("ParseRefresh: %v", err)
	}
	if _, err := NewUserStrategy(repo).Validate(ctx, claims); !errors.Is(err, ErrTokenTypeMismatch) {
		t.Fatalf("expected ErrTokenTypeMismatch, got %v", err)
	}
}

func TestStrategyRejectsUnknownActor(t *testing.T) {
	ctx := context.Background()
	repo := actor.NewMemoryRepository()
	issuer := newTestIssuer(t, kv.NewMemory())

	token, _, err := issuer.IssueAccess("ghost", "ghost@example.org")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	claims, err := issuer.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if _, err := NewUserStrategy(repo).Validate(ctx, claims); !errors.Is(err, ErrActorNotFound) {
		t.Fatalf("expected ErrActorNotFound, got %v", err)
	}
}

func TestStrategyRejectsDisabledActor(t *testing.T) {
	ctx := context.Background()
	repo := actor.NewMemoryRepository()
	issuer := newTestIssuer(t, kv.NewMemory())
	a := seedActor(t, repo, actor.KindUser)

	token, _, err := issuer.IssueAccess(a.ID, a.Email)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	claims, err := issuer.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}

	for _, status := range []string{actor.StatusSuspended, actor.StatusInactive, actor.StatusDeleted} {
		repo.SetStatus(a.ID, status)
		if _, err := NewUserStrategy(repo).Validate(ctx, claims); !errors.Is(err, ErrActorDisabled) {
			t.Fatalf("status %s: expected ErrActorDisabled, got %v", status, err)
		}
	}
}

func TestStrategyKindIsolation(t *testing.T) {
	ctx := context.Background()
	repo := actor.NewMemoryRepository()
	issuer := newTestIssuer(t, kv.NewMemory())
	a := seedActor(t, repo, actor.KindUser)

	token, _, err := issuer.IssueAccess(a.ID, a.Email)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	claims, err := issuer.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}

	// A user token is worthless on the administrator route family.
	if _, err := NewAdministratorStrategy(repo).Validate(ctx, claims); !errors.Is(err, ErrActorNotFound) {
		t.Fatalf("expected ErrActorNotFound across kinds, got %v", err)
	}
}

func TestAdministratorStrategyAttachesRole(t *testing.T) {
	ctx := context.Background()
	repo := actor.NewMemoryRepository()
	issuer := newTestIssuer(t, kv.NewMemory())

	admin := &actor.Actor{Kind: actor.KindAdministrator, Email: "root@example.org", Role: "superadmin", PasswordHash: "x"}
	if err := repo.Create(ctx, admin); err != nil {
		t.Fatalf("Create: %v", err)
	}

	token, _, err := issuer.IssueAccess(admin.ID, admin.Email)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	claims, err := issuer.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}

	p, err := NewAdministratorStrategy(repo).Validate(ctx, claims)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !p.IsAdmin() || p.Role != "superadmin" {
		t.Fatalf("unexpected principal: %+v", p)
	}
}
