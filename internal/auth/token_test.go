package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"tribuna.org/internal/kv"
)

var (
	testAccessSecret  = []byte("test-access-secret")
	testRefreshSecret = []byte("test-refresh-secret")
)

func newTestIssuer(t *testing.T, store kv.Store, opts ...IssuerOption) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(store, testAccessSecret, testRefreshSecret, opts...)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return issuer
}

func TestNewIssuerRejectsSharedSecret(t *testing.T) {
	if _, err := NewIssuer(kv.NewMemory(), testAccessSecret, testAccessSecret); err == nil {
		t.Fatal("expected error for shared secret")
	}
}

func TestIssueAndParseAccess(t *testing.T) {
	issuer := newTestIssuer(t, kv.NewMemory())

	token, exp, err := issuer.IssueAccess("actor-1", "a@example.org")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expected future expiry, got %v", exp)
	}

	claims, err := issuer.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if claims.Subject != "actor-1" || claims.Email != "a@example.org" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.TokenType != "access" {
		t.Fatalf("unexpected token type: %s", claims.TokenType)
	}
}

func TestIssueRefreshWritesTrackingRecord(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	issuer := newTestIssuer(t, store)

	meta := RequestMeta{IP: "203.0.113.9", UserAgent: "curl/8"}
	token, jti, _, err := issuer.IssueRefresh(ctx, "actor-1", "a@example.org", meta)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if jti == "" {
		t.Fatal("expected a jti")
	}

	raw, err := store.Get(ctx, RefreshKey("actor-1", jti))
	if err != nil {
		t.Fatalf("tracking record missing: %v", err)
	}
	var rec TrackingRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("decode tracking record: %v", err)
	}
	if rec.IP != meta.IP || rec.UserAgent != meta.UserAgent {
		t.Fatalf("unexpected tracking record: %+v", rec)
	}

	claims, err := issuer.ParseRefresh(token)
	if err != nil {
		t.Fatalf("ParseRefresh: %v", err)
	}
	if claims.ID != jti {
		t.Fatalf("jti mismatch: %s != %s", claims.ID, jti)
	}
}

type failingStore struct {
	kv.Store
}

func (f failingStore) SetWithTTL(context.Context, string, []byte, time.Duration) error {
	return errors.New("store down")
}

func TestIssueRefreshFailsWhenTrackingWriteFails(t *testing.T) {
	issuer := newTestIssuer(t, failingStore{kv.NewMemory()})
	if _, _, _, err := issuer.IssueRefresh(context.Background(), "actor-1", "a@example.org", RequestMeta{}); err == nil {
		t.Fatal("expected issuance to fail when the tracking write fails")
	}
}

func TestParseRejectsTypeConfusion(t *testing.T) {
	ctx := context.Background()
	issuer := newTestIssuer(t, kv.NewMemory())

	access, _, err := issuer.IssueAccess("actor-1", "a@example.org")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	refresh, _, _, err := issuer.IssueRefresh(ctx, "actor-1", "a@example.org", RequestMeta{})
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}

	if _, err := issuer.ParseRefresh(access); !errors.Is(err, ErrTokenTypeMismatch) {
		t.Fatalf("access-as-refresh: expected ErrTokenTypeMismatch, got %v", err)
	}
	if _, err := issuer.ParseAccess(refresh); !errors.Is(err, ErrTokenTypeMismatch) {
		t.Fatalf("refresh-as-access: expected ErrTokenTypeMismatch, got %v", err)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	issuer := newTestIssuer(t, kv.NewMemory(), WithClock(func() time.Time { return now }))

	token, _, err := issuer.IssueAccess("actor-1", "a@example.org")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	now = now.Add(16 * time.Minute)
	if _, err := issuer.ParseAccess(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	issuer := newTestIssuer(t, kv.NewMemory())

	token, _, err := issuer.IssueAccess("actor-1", "a@example.org")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]
	if _, err := issuer.ParseAccess(tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}

	if _, err := issuer.ParseAccess("not-a-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for garbage, got %v", err)
	}
}

func TestParseRejectsForeignSignature(t *testing.T) {
	issuer := newTestIssuer(t, kv.NewMemory())
	other, err := NewIssuer(kv.NewMemory(), []byte("other-access"), []byte("other-refresh"))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	token, _, err := other.IssueAccess("actor-1", "a@example.org")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := issuer.ParseAccess(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}
