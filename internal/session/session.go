package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"tribuna.org/internal/actor"
)

// ErrNotFound indicates no session matches the given token hash.
var ErrNotFound = errors.New("session: not found")

// Session is an audit record of an issued token pair. It is written for
// organization and administrator logins, updated on refresh and deactivated
// on logout; it never drives authorization decisions and is never deleted.
type Session struct {
	ID               string
	ActorKind        actor.Kind
	ActorID          string
	AccessTokenHash  string
	RefreshTokenHash string
	IP               string
	UserAgent        string
	DeviceType       string
	IsActive         bool
	ExpiresAt        time.Time
	LastActivityAt   time.Time
	CreatedAt        time.Time
}

// Store persists session records.
type Store interface {
	Create(ctx context.Context, s *Session) error
	// Rotate finds the active session holding oldRefreshHash and points it
	// at the freshly issued pair.
	Rotate(ctx context.Context, oldRefreshHash, newAccessHash, newRefreshHash string, expiresAt time.Time) error
	// Deactivate marks the session holding refreshHash inactive.
	Deactivate(ctx context.Context, refreshHash string) error
}

// HashToken derives the stored fingerprint of a raw token. Raw tokens are
// never persisted.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// DeviceTypeOf buckets a User-Agent header into a coarse device class.
func DeviceTypeOf(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return "unknown"
	case strings.Contains(ua, "mobile"), strings.Contains(ua, "android"), strings.Contains(ua, "iphone"):
		return "mobile"
	case strings.Contains(ua, "curl"), strings.Contains(ua, "httpie"), strings.Contains(ua, "go-http-client"):
		return "cli"
	default:
		return "desktop"
	}
}
