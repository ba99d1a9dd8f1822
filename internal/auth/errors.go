package auth

import "errors"

// Failure taxonomy of the auth core. HTTP handlers collapse several of
// these into one generic client-facing message; the audit log keeps the
// precise kind.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrActorNotFound      = errors.New("auth: actor not found")
	ErrActorDisabled      = errors.New("auth: actor disabled")
	ErrConflict           = errors.New("auth: already registered")
	ErrTokenInvalid       = errors.New("auth: invalid token")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenTypeMismatch  = errors.New("auth: token type mismatch")
	ErrTokenRevoked       = errors.New("auth: token revoked or already used")
	ErrPermissionDenied   = errors.New("auth: permission denied")
	ErrRateLimited        = errors.New("auth: too many attempts")
)
