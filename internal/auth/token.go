package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"tribuna.org/internal/kv"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultIssuerName = "tribuna"
)

// Claims is the signed payload shared by both token types. TokenType keeps
// the two from being interchangeable even though they share a format.
type Claims struct {
	Email     string `json:"email"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// TrackingRecord is the value stored under refresh:{actorId}:{jti}. Its
// presence is the sole source of truth for whether the refresh token is
// still redeemable.
type TrackingRecord struct {
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
}

// RequestMeta carries per-request client details into issuance and audit.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// TokenPair is the result of a successful issuance or rotation.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshJTI       string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Issuer mints and verifies both token types. Access and refresh tokens are
// signed with independent secrets so neither can stand in for the other.
type Issuer struct {
	store         kv.Store
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// IssuerOption configures Issuer behavior.
type IssuerOption func(*Issuer)

// WithTokenTTLs overrides the default access/refresh lifetimes.
func WithTokenTTLs(access, refresh time.Duration) IssuerOption {
	return func(i *Issuer) {
		if access > 0 {
			i.accessTTL = access
		}
		if refresh > 0 {
			i.refreshTTL = refresh
		}
	}
}

// WithIssuerName overrides the iss claim.
func WithIssuerName(name string) IssuerOption {
	return func(i *Issuer) {
		if name != "" {
			i.issuer = name
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if fn != nil {
			i.now = fn
		}
	}
}

// NewIssuer constructs an Issuer. Both secrets are mandatory and must
// differ; the kv store is mandatory because refresh issuance always writes
// a tracking record.
func NewIssuer(store kv.Store, accessSecret, refreshSecret []byte, opts ...IssuerOption) (*Issuer, error) {
	if store == nil {
		return nil, errors.New("auth: issuer requires a kv store")
	}
	if len(accessSecret) == 0 || len(refreshSecret) == 0 {
		return nil, errors.New("auth: both token secrets are required")
	}
	if string(accessSecret) == string(refreshSecret) {
		return nil, errors.New("auth: token secrets must differ")
	}
	i := &Issuer{
		store:         store,
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     defaultAccessTTL,
		refreshTTL:    defaultRefreshTTL,
		issuer:        defaultIssuerName,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// IssueAccess mints a short-lived stateless access token.
func (i *Issuer) IssueAccess(actorID, email string) (string, time.Time, error) {
	now := i.now().UTC()
	exp := now.Add(i.accessTTL)
	claims := Claims{
		Email:     email,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   actorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp, nil
}

// IssueRefresh mints a refresh token with a fresh jti and writes its
// tracking record in the same logical operation. A failed write fails the
// whole issuance so a signed-but-untracked token can never escape.
func (i *Issuer) IssueRefresh(ctx context.Context, actorID, email string, meta RequestMeta) (string, string, time.Time, error) {
	now := i.now().UTC()
	exp := now.Add(i.refreshTTL)
	jti := uuid.NewString()
	claims := Claims{
		Email:     email,
		TokenType: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   actorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        jti,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.refreshSecret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}

	record, err := json.Marshal(TrackingRecord{IP: meta.IP, UserAgent: meta.UserAgent})
	if err != nil {
		return "", "", time.Time{}, err
	}
	if err := i.store.SetWithTTL(ctx, RefreshKey(actorID, jti), record, i.refreshTTL); err != nil {
		return "", "", time.Time{}, fmt.Errorf("write refresh tracking record: %w", err)
	}
	return signed, jti, exp, nil
}

// IssuePair mints an access/refresh pair for one actor.
func (i *Issuer) IssuePair(ctx context.Context, actorID, email string, meta RequestMeta) (TokenPair, error) {
	access, accessExp, err := i.IssueAccess(actorID, email)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, jti, refreshExp, err := i.IssueRefresh(ctx, actorID, email, meta)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		RefreshJTI:       jti,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// ParseAccess verifies an access token against secret A.
func (i *Issuer) ParseAccess(raw string) (*Claims, error) {
	return i.parse(raw, tokenTypeAccess, i.accessSecret)
}

// ParseRefresh verifies a refresh token against secret B. It proves only
// authenticity of the claims; redeemability is the rotation store's call.
func (i *Issuer) ParseRefresh(raw string) (*Claims, error) {
	return i.parse(raw, tokenTypeRefresh, i.refreshSecret)
}

func (i *Issuer) parse(raw, wantType string, secret []byte) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		claims, ok := t.Claims.(*Claims)
		if !ok {
			return nil, ErrTokenInvalid
		}
		// Checked before signature verification so that presenting the
		// wrong token type reports the mismatch, not a bad signature.
		if claims.TokenType != wantType {
			return nil, ErrTokenTypeMismatch
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenTypeMismatch):
			return nil, ErrTokenTypeMismatch
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		default:
			return nil, ErrTokenInvalid
		}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" || claims.Issuer != i.issuer {
		return nil, ErrTokenInvalid
	}
	if wantType == tokenTypeRefresh && claims.ID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// RefreshKey builds the tracking key for an (actor, jti) pair.
func RefreshKey(actorID, jti string) string {
	return "refresh:" + actorID + ":" + jti
}
