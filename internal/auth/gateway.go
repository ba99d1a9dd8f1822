package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tribuna.org/internal/actor"
	"tribuna.org/internal/kv"
	"tribuna.org/internal/session"
)

// AuditSink accepts structured security events. Failed logins, token reuse
// and permission denials are reported here with full internal detail even
// when the client sees only a generic message.
type AuditSink interface {
	Emit(ctx context.Context, event string, fields map[string]any)
}

// Mailer is the narrow outbound collaborator for password-reset delivery.
// Actual email transport lives outside this subsystem.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// RegisterInput carries the fields needed to create an actor. Slug is the
// secondary unique handle required for organizations.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Slug     string
}

// Gateway orchestrates the public auth operations for all actor kinds. It
// is the only component with entry points reachable from the HTTP layer.
type Gateway struct {
	actors   actor.Repository
	issuer   *Issuer
	rotator  *Rotator
	store    kv.Store
	sessions session.Store
	audit    AuditSink
	mailer   Mailer
	now      func() time.Time
}

// GatewayOption configures optional collaborators.
type GatewayOption func(*Gateway)

// WithSessions enables persisted session records for organization and
// administrator logins.
func WithSessions(store session.Store) GatewayOption {
	return func(g *Gateway) { g.sessions = store }
}

// WithMailer sets the password-reset delivery collaborator.
func WithMailer(m Mailer) GatewayOption {
	return func(g *Gateway) { g.mailer = m }
}

// WithGatewayClock overrides the time source.
func WithGatewayClock(fn func() time.Time) GatewayOption {
	return func(g *Gateway) {
		if fn != nil {
			g.now = fn
		}
	}
}

// NewGateway wires the orchestrator. Repository, issuer, rotator, kv store
// and audit sink are mandatory.
func NewGateway(actors actor.Repository, issuer *Issuer, rotator *Rotator, store kv.Store, audit AuditSink, opts ...GatewayOption) (*Gateway, error) {
	if actors == nil || issuer == nil || rotator == nil || store == nil || audit == nil {
		return nil, errors.New("auth: gateway requires actors, issuer, rotator, kv store and audit sink")
	}
	g := &Gateway{
		actors:  actors,
		issuer:  issuer,
		rotator: rotator,
		store:   store,
		audit:   audit,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Register creates an actor and logs it in.
func (g *Gateway) Register(ctx context.Context, kind actor.Kind, in RegisterInput, meta RequestMeta) (TokenPair, Principal, error) {
	email := normalizeEmail(in.Email)
	if email == "" || !kind.Valid() {
		return TokenPair{}, Principal{}, ErrInvalidCredentials
	}
	if kind == actor.KindOrganization && strings.TrimSpace(in.Slug) == "" {
		return TokenPair{}, Principal{}, fmt.Errorf("%w: organization slug is required", ErrConflict)
	}

	if _, err := g.actors.FindByEmail(ctx, kind, email); err == nil {
		return TokenPair{}, Principal{}, ErrConflict
	} else if !errors.Is(err, actor.ErrNotFound) {
		return TokenPair{}, Principal{}, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return TokenPair{}, Principal{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	a := &actor.Actor{
		Kind:         kind,
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		Slug:         strings.TrimSpace(in.Slug),
		PasswordHash: hash,
		Status:       actor.StatusActive,
	}
	if err := g.actors.Create(ctx, a); err != nil {
		if errors.Is(err, actor.ErrConflict) {
			return TokenPair{}, Principal{}, ErrConflict
		}
		return TokenPair{}, Principal{}, err
	}

	pair, err := g.issuer.IssuePair(ctx, a.ID, a.Email, meta)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	g.recordSession(ctx, a, pair, meta)
	g.audit.Emit(ctx, "auth.register", map[string]any{
		"kind": string(kind), "actor_id": a.ID, "email": a.Email, "ip": meta.IP,
	})
	return pair, principalOf(a), nil
}

// Login verifies credentials and issues a token pair. The error for a
// missing actor and a wrong password is the same on purpose.
func (g *Gateway) Login(ctx context.Context, kind actor.Kind, email, password string, meta RequestMeta) (TokenPair, Principal, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" || !kind.Valid() {
		return TokenPair{}, Principal{}, ErrInvalidCredentials
	}

	a, err := g.actors.FindByEmail(ctx, kind, email)
	if err != nil {
		if errors.Is(err, actor.ErrNotFound) {
			g.auditFailedLogin(ctx, kind, email, meta, "unknown_email")
			return TokenPair{}, Principal{}, ErrInvalidCredentials
		}
		return TokenPair{}, Principal{}, err
	}
	if !a.Usable() {
		g.auditFailedLogin(ctx, kind, email, meta, "actor_"+a.Status)
		return TokenPair{}, Principal{}, ErrActorDisabled
	}
	if err := VerifyPassword(a.PasswordHash, password); err != nil {
		g.auditFailedLogin(ctx, kind, email, meta, "bad_password")
		return TokenPair{}, Principal{}, ErrInvalidCredentials
	}

	pair, err := g.issuer.IssuePair(ctx, a.ID, a.Email, meta)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	g.recordSession(ctx, a, pair, meta)
	g.audit.Emit(ctx, "auth.login", map[string]any{
		"kind": string(kind), "actor_id": a.ID, "ip": meta.IP, "user_agent": meta.UserAgent,
	})
	return pair, principalOf(a), nil
}

// Refresh rotates a refresh token and carries the session record over to
// the new pair.
func (g *Gateway) Refresh(ctx context.Context, kind actor.Kind, rawRefresh string, meta RequestMeta) (TokenPair, Principal, error) {
	oldHash := session.HashToken(rawRefresh)
	pair, a, err := g.rotator.Rotate(ctx, kind, rawRefresh, meta)
	if err != nil {
		if errors.Is(err, ErrTokenRevoked) {
			g.audit.Emit(ctx, "auth.token.reuse_detected", map[string]any{
				"kind": string(kind), "ip": meta.IP, "user_agent": meta.UserAgent,
			})
		}
		return TokenPair{}, Principal{}, err
	}

	if g.sessions != nil && sessionTracked(kind) {
		err := g.sessions.Rotate(ctx, oldHash,
			session.HashToken(pair.AccessToken), session.HashToken(pair.RefreshToken), pair.RefreshExpiresAt)
		if err != nil && !errors.Is(err, session.ErrNotFound) {
			return TokenPair{}, Principal{}, err
		}
	}
	g.audit.Emit(ctx, "auth.token.rotated", map[string]any{
		"kind": string(kind), "actor_id": a.ID, "jti": pair.RefreshJTI,
	})
	return pair, principalOf(a), nil
}

// Logout revokes the presented refresh token ahead of expiry and closes the
// matching session record.
func (g *Gateway) Logout(ctx context.Context, kind actor.Kind, rawRefresh string) error {
	claims, err := g.rotator.Revoke(ctx, rawRefresh)
	if err != nil {
		return err
	}
	if g.sessions != nil && sessionTracked(kind) {
		if err := g.sessions.Deactivate(ctx, session.HashToken(rawRefresh)); err != nil && !errors.Is(err, session.ErrNotFound) {
			return err
		}
	}
	g.audit.Emit(ctx, "auth.logout", map[string]any{
		"kind": string(kind), "actor_id": claims.Subject, "jti": claims.ID,
	})
	return nil
}

// ForgotPassword issues a single-use, time-boxed reset token and hands it
// to the mailer. The outcome is indistinguishable to the caller whether or
// not the email exists; only the audit log knows.
func (g *Gateway) ForgotPassword(ctx context.Context, kind actor.Kind, email string) error {
	email = normalizeEmail(email)
	if email == "" || !kind.Valid() {
		return nil
	}
	if err := g.throttleReset(ctx, kind, email); err != nil {
		return err
	}

	a, err := g.actors.FindByEmail(ctx, kind, email)
	if err != nil {
		if errors.Is(err, actor.ErrNotFound) {
			g.audit.Emit(ctx, "auth.password.forgot_unknown", map[string]any{
				"kind": string(kind), "email": email,
			})
			return nil
		}
		return err
	}
	if !a.Usable() {
		return nil
	}

	raw, hash, err := newResetToken()
	if err != nil {
		return err
	}
	if err := g.actors.SetResetToken(ctx, kind, a.ID, hash, g.now().UTC().Add(resetTokenTTL)); err != nil {
		return err
	}
	if g.mailer != nil {
		if err := g.mailer.SendPasswordReset(ctx, a.Email, raw); err != nil {
			return err
		}
	}
	g.audit.Emit(ctx, "auth.password.forgot", map[string]any{
		"kind": string(kind), "actor_id": a.ID,
	})
	return nil
}

// ResetPassword redeems a reset token once and installs a new credential.
func (g *Gateway) ResetPassword(ctx context.Context, kind actor.Kind, rawToken, newPassword string) error {
	if rawToken == "" || !kind.Valid() {
		return ErrTokenInvalid
	}
	hash := hashResetToken(rawToken)

	a, err := g.actors.FindByResetToken(ctx, kind, hash)
	if err != nil {
		if errors.Is(err, actor.ErrNotFound) {
			return ErrTokenInvalid
		}
		return err
	}
	if a.ResetTokenExpiresAt == nil || g.now().UTC().After(*a.ResetTokenExpiresAt) {
		_ = g.actors.ClearResetToken(ctx, kind, a.ID)
		return ErrTokenExpired
	}

	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if err := g.actors.UpdatePassword(ctx, kind, a.ID, passwordHash); err != nil {
		return err
	}
	if err := g.actors.ClearResetToken(ctx, kind, a.ID); err != nil {
		return err
	}
	g.audit.Emit(ctx, "auth.password.reset", map[string]any{
		"kind": string(kind), "actor_id": a.ID,
	})
	return nil
}

func (g *Gateway) recordSession(ctx context.Context, a *actor.Actor, pair TokenPair, meta RequestMeta) {
	if g.sessions == nil || !sessionTracked(a.Kind) {
		return
	}
	sess := &session.Session{
		ActorKind:        a.Kind,
		ActorID:          a.ID,
		AccessTokenHash:  session.HashToken(pair.AccessToken),
		RefreshTokenHash: session.HashToken(pair.RefreshToken),
		IP:               meta.IP,
		UserAgent:        meta.UserAgent,
		DeviceType:       session.DeviceTypeOf(meta.UserAgent),
		ExpiresAt:        pair.RefreshExpiresAt,
	}
	if err := g.sessions.Create(ctx, sess); err != nil {
		// Session records are audit material, not an authorization input;
		// losing one must not fail the login.
		g.audit.Emit(ctx, "auth.session.record_failed", map[string]any{
			"kind": string(a.Kind), "actor_id": a.ID, "error": err.Error(),
		})
	}
}

func (g *Gateway) auditFailedLogin(ctx context.Context, kind actor.Kind, email string, meta RequestMeta, reason string) {
	g.audit.Emit(ctx, "auth.login.failed", map[string]any{
		"kind": string(kind), "email": email, "reason": reason,
		"ip": meta.IP, "user_agent": meta.UserAgent,
	})
}

// sessionTracked reports whether logins of this kind produce persisted
// session records.
func sessionTracked(kind actor.Kind) bool {
	return kind == actor.KindOrganization || kind == actor.KindAdministrator
}

func principalOf(a *actor.Actor) Principal {
	p := Principal{ID: a.ID, Email: a.Email, Name: a.Name, Kind: a.Kind}
	if a.Kind == actor.KindAdministrator {
		p.Role = a.Role
	}
	return p
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
