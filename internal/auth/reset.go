package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"tribuna.org/internal/actor"
	"tribuna.org/internal/kv"
)

const (
	resetTokenTTL      = 30 * time.Minute
	resetRequestWindow = time.Minute
)

// throttleReset allows one reset request per address per window. The
// check-then-set is loose; over-admitting a concurrent duplicate within
// the window is harmless.
func (g *Gateway) throttleReset(ctx context.Context, kind actor.Kind, email string) error {
	key := "reset-req:" + string(kind) + ":" + email
	if _, err := g.store.Get(ctx, key); err == nil {
		return ErrRateLimited
	} else if !errors.Is(err, kv.ErrNotFound) {
		return err
	}
	return g.store.SetWithTTL(ctx, key, []byte("1"), resetRequestWindow)
}

// newResetToken mints a raw reset token and its stored fingerprint. Only
// the hash is persisted.
func newResetToken() (raw, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, hashResetToken(raw), nil
}

func hashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
