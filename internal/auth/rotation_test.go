package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tribuna.org/internal/actor"
	"tribuna.org/internal/kv"
)

func seedActor(t *testing.T, repo *actor.MemoryRepository, kind actor.Kind) *actor.Actor {
	t.Helper()
	a := &actor.Actor{Kind: kind, Email: string(kind) + "@example.org", PasswordHash: "x"}
	if kind == actor.KindOrganization {
		a.Slug = "acme"
	}
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("seed actor: %v", err)
	}
	return a
}

func newTestRotator(t *testing.T, store kv.Store, repo *actor.MemoryRepository, opts ...IssuerOption) (*Issuer, *Rotator) {
	t.Helper()
	issuer := newTestIssuer(t, store, opts...)
	rotator, err := NewRotator(issuer, store, repo)
	if err != nil {
		t.Fatalf("NewRotator: %v", err)
	}
	return issuer, rotator
}

func TestRotateIsSingleUse(t *testing.T) {
	ctx := context.Background()
	repo := actor.NewMemoryRepository()
	store := kv.NewMemory()
	issuer, rotator := newTestRotator(t, store, repo)
	a := seedActor(t, repo, actor.KindUser)

	r1, _, _, err := issuer.IssueRefresh(ctx, a.ID, a.Email, RequestMeta{})
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}

	pair2, got, err := rotator.Rotate(ctx, actor.KindUser, r1, RequestMeta{})
	if err != nil {
		t.Fatalf("first rotation: %v", err)
	}
	if got.ID != a.ID {
		t.Fatalf("unexpected actor: %s", got.ID)
	}

	// Replaying the consumed token must fail even though it is still
	// within its nominal lifetime.
	if _, _, err := rotator.Rotate(ctx, actor.KindUser, r1, RequestMeta{}); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("replay: expected ErrTokenRevoked, got %v", err)
	}

	// The freshly minted token rotates fine.
	pair3, _, err := rotator.Rotate(ctx, actor.KindUser, pair2.RefreshToken, RequestMeta{})
	if err != nil {
		t.Fatalf("second rotation: %v", err)
	}
	if pair3.RefreshJTI == pair2.RefreshJTI {
		t.Fatal("expected a fresh jti per rotation")
	}
}

func TestRotateConcurrentReplayAdmitsExactlyOne(t *testing.T) {
	ctx := context.Background()
	repo := actor.NewMemoryRepository()
	store := kv.NewMemory()
	issuer, rotator := newTestRotator(t, store, repo)
	a := seedActor(t, repo, actor.KindUser)

	r1, _, _, err := issuer.IssueRefresh(ctx, a.ID, a.Email, RequestMeta{})
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}

	const attempts = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		replays  int
		unwanted []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := rotator.Rotate(ctx, actor.KindUser, r1, RequestMeta{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrTokenRevoked):
				replays++
			default:
				unwanted = append(unwanted, err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one successful rotation, got %d", wins)
	}
	if replays != attempts-1 {
		t.Fatalf("expected %d replay rejections, got %d", attempts-1, replays)
	}
	if len(unwanted) > 0 {
		t.Fatalf("unexpected errors: %v", unwanted)
	}
}

func TestRotateRejectsAccessToken(t *testing.T) {
	ctx := context.Background()
	repo := actor.NewMemoryRepository()
	issuer, rotator := newTestRotator(t, kv.NewMemory(), repo)
	a := seedActor(t, repo, actor.KindUser)

	access, _, err := issuer.IssueAccess(a.ID, a.Email)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, _, err := rotator.Rotate(ctx, actor.KindUser, access, RequestMeta{}); !errors.Is(err, ErrTokenTypeMismatch) {
		t.Fatalf("expected ErrTokenTypeMismatch, got %v", err)
	}
}

func TestRotateRejectsDisabledActor(t *testing.T) {
	ctx := context.Background()
	repo := actor.NewMemoryRepository()
	issuer, rotator := newTestRotator(t, kv.NewMemory(), repo)
	a := seedActor(t, repo, actor.KindUser)

	r1, _, _, err := issuer.IssueRefresh(ctx, a.ID, a.Email, RequestMeta{})
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}

	// Structurally valid, unconsumed token; the actor got suspended after
	// issuance. Rotation must not resurrect the session.
	repo.SetStatus(a.ID, actor.StatusSuspended)
	if _, _, err := rotator.Rotate(ctx, actor.KindUser, r1, RequestMeta{}); !errors.Is(err, ErrActorDisabled) {
		t.Fatalf("expected ErrActorDisabled, got %v", err)
	}

	// And the token is now burned: even a restored actor cannot reuse it.
	repo.SetStatus(a.ID, actor.StatusActive)
	if _, _, err := rotator.Rotate(ctx, actor.KindUser, r1, RequestMeta{}); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked after burn, got %v", err)
	}
}

func TestRotateRejectsExpiredTrackingKey(t *testing.T) {
	ctx := context.Background()
	repo := actor.NewMemoryRepository()
	store := kv.NewMemory()

	now := time.Unix(1_700_000_000, 0)
	store.SetClock(func() time.Time { return now })
	issuer, rotator := newTestRotator(t, store, repo,
		WithClock(func() time.Time { return now }),
		WithTokenTTLs(15*time.Minute, time.Hour))
	a := seedActor(t, repo, actor.KindUser)

	r1, _, _, err := issuer.IssueRefresh(ctx, a.ID, a.Email, RequestMeta{})
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}

	now = now.Add(2 * time.Hour)
	// The signature check reports expiry first; the tracking key is gone
	// either way.
	if _, _, err := rotator.Rotate(ctx, actor.KindUser, r1, RequestMeta{}); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestRevokeMovesTokenToRevoked(t *testing.T) {
	ctx := context.Background()
	repo := actor.NewMemoryRepository()
	store := kv.NewMemory()
	issuer, rotator := newTestRotator(t, store, repo)
	a := seedActor(t, repo, actor.KindUser)

	r1, jti, _, err := issuer.IssueRefresh(ctx, a.ID, a.Email, RequestMeta{})
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}

	claims, err := rotator.Revoke(ctx, r1)
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if claims.ID != jti {
		t.Fatalf("unexpected jti: %s", claims.ID)
	}
	if _, _, err := rotator.Rotate(ctx, actor.KindUser, r1, RequestMeta{}); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked after revoke, got %v", err)
	}
}
