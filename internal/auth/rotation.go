package auth

import (
	"context"
	"errors"
	"fmt"

	"tribuna.org/internal/actor"
	"tribuna.org/internal/kv"
)

// Rotator implements the rotate-on-use protocol. A refresh token moves from
// ISSUED to exactly one of CONSUMED (rotated here), EXPIRED (tracking key
// lapsed) or REVOKED (logout deleted the key); all three are terminal.
type Rotator struct {
	issuer *Issuer
	store  kv.Store
	actors actor.Repository
}

// NewRotator wires the rotation protocol. The repository is consulted
// directly, never through the identity cache: a rotation must see the
// actor's current status.
func NewRotator(issuer *Issuer, store kv.Store, actors actor.Repository) (*Rotator, error) {
	if issuer == nil || store == nil || actors == nil {
		return nil, errors.New("auth: rotator requires issuer, kv store and actor repository")
	}
	return &Rotator{issuer: issuer, store: store, actors: actors}, nil
}

// Rotate redeems raw exactly once and mints a replacement pair.
//
// The tracking-key removal is a single atomic check-and-delete: of N
// concurrent calls with the same token, one observes the key and N-1 get
// ErrTokenRevoked. A store failure rejects the rotation (fail-closed).
func (r *Rotator) Rotate(ctx context.Context, kind actor.Kind, raw string, meta RequestMeta) (TokenPair, *actor.Actor, error) {
	claims, err := r.issuer.ParseRefresh(raw)
	if err != nil {
		return TokenPair{}, nil, err
	}

	if _, err := r.store.CheckAndDelete(ctx, RefreshKey(claims.Subject, claims.ID)); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return TokenPair{}, nil, ErrTokenRevoked
		}
		return TokenPair{}, nil, fmt.Errorf("consume refresh tracking record: %w", err)
	}

	a, err := r.actors.Find(ctx, kind, claims.Subject)
	if err != nil {
		if errors.Is(err, actor.ErrNotFound) {
			return TokenPair{}, nil, ErrActorNotFound
		}
		return TokenPair{}, nil, err
	}
	if !a.Usable() {
		return TokenPair{}, nil, ErrActorDisabled
	}

	pair, err := r.issuer.IssuePair(ctx, a.ID, a.Email, meta)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, a, nil
}

// Revoke deletes the tracking record for raw ahead of its expiry, moving
// the token to REVOKED. Used by logout.
func (r *Rotator) Revoke(ctx context.Context, raw string) (*Claims, error) {
	claims, err := r.issuer.ParseRefresh(raw)
	if err != nil {
		return nil, err
	}
	if err := r.store.Delete(ctx, RefreshKey(claims.Subject, claims.ID)); err != nil {
		return nil, fmt.Errorf("delete refresh tracking record: %w", err)
	}
	return claims, nil
}
