package actor

import (
	"context"
	"errors"
	"time"
)

// Kind discriminates the three authenticated populations of the platform.
type Kind string

const (
	KindUser          Kind = "user"
	KindOrganization  Kind = "organization"
	KindAdministrator Kind = "administrator"
)

// Valid reports whether k names a known actor kind.
func (k Kind) Valid() bool {
	switch k {
	case KindUser, KindOrganization, KindAdministrator:
		return true
	}
	return false
}

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusInactive  = "inactive"
	StatusDeleted   = "deleted"
)

var (
	ErrNotFound = errors.New("actor: not found")
	ErrConflict = errors.New("actor: already exists")
)

// Actor is the persisted record behind every authenticated principal.
// Role and Slug are only populated for administrators and organizations
// respectively.
type Actor struct {
	ID           string
	Kind         Kind
	Email        string
	Name         string
	Slug         string
	PasswordHash string
	Status       string
	Role         string

	ResetTokenHash      string
	ResetTokenExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Usable reports whether the actor may hold a valid token right now.
func (a *Actor) Usable() bool {
	return a != nil && a.DeletedAt == nil && a.Status == StatusActive
}

// Repository is the narrow lookup/update surface the auth core consumes.
// Content, publishing and the rest of the platform live behind other
// interfaces and never enter this package.
type Repository interface {
	Create(ctx context.Context, a *Actor) error
	Find(ctx context.Context, kind Kind, id string) (*Actor, error)
	FindByEmail(ctx context.Context, kind Kind, email string) (*Actor, error)
	UpdatePassword(ctx context.Context, kind Kind, id, passwordHash string) error
	SetResetToken(ctx context.Context, kind Kind, id, tokenHash string, expiresAt time.Time) error
	FindByResetToken(ctx context.Context, kind Kind, tokenHash string) (*Actor, error)
	ClearResetToken(ctx context.Context, kind Kind, id string) error
}
