package auth

import (
	"context"
	"errors"

	"tribuna.org/internal/actor"
)

// Principal is the request-scoped identity produced by a strategy. It is
// rebuilt on every validated request and never persisted.
type Principal struct {
	ID    string
	Email string
	Name  string
	Kind  actor.Kind
	Role  string
}

// IsAdmin reports whether the principal belongs to the administrator
// population.
func (p Principal) IsAdmin() bool {
	return p.Kind == actor.KindAdministrator
}

// ActorFinder is the lookup surface strategies validate against. In
// production it is the identity cache; tests plug the in-memory repository
// in directly.
type ActorFinder interface {
	Find(ctx context.Context, kind actor.Kind, id string) (*actor.Actor, error)
}

// IdentityStrategy validates a decoded access-token payload into a
// Principal for one actor kind.
type IdentityStrategy interface {
	Kind() actor.Kind
	Validate(ctx context.Context, claims *Claims) (Principal, error)
}

type kindStrategy struct {
	kind   actor.Kind
	finder ActorFinder
}

// NewUserStrategy validates tokens for end users.
func NewUserStrategy(finder ActorFinder) IdentityStrategy {
	return &kindStrategy{kind: actor.KindUser, finder: finder}
}

// NewOrganizationStrategy validates tokens for organizations.
func NewOrganizationStrategy(finder ActorFinder) IdentityStrategy {
	return &kindStrategy{kind: actor.KindOrganization, finder: finder}
}

// NewAdministratorStrategy validates tokens for administrators. The
// resulting principal carries the administrator's role so downstream
// gating can short-circuit on the super role.
func NewAdministratorStrategy(finder ActorFinder) IdentityStrategy {
	return &kindStrategy{kind: actor.KindAdministrator, finder: finder}
}

func (s *kindStrategy) Kind() actor.Kind { return s.kind }

func (s *kindStrategy) Validate(ctx context.Context, claims *Claims) (Principal, error) {
	if claims == nil || claims.TokenType != tokenTypeAccess {
		return Principal{}, ErrTokenTypeMismatch
	}

	a, err := s.finder.Find(ctx, s.kind, claims.Subject)
	if err != nil {
		if errors.Is(err, actor.ErrNotFound) {
			return Principal{}, ErrActorNotFound
		}
		return Principal{}, err
	}
	if !a.Usable() {
		return Principal{}, ErrActorDisabled
	}

	p := Principal{
		ID:    a.ID,
		Email: a.Email,
		Name:  a.Name,
		Kind:  s.kind,
	}
	if s.kind == actor.KindAdministrator {
		p.Role = a.Role
	}
	return p, nil
}
