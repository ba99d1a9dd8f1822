package auth

import (
	"context"
	"errors"
	"strings"
)

// GrantSource resolves the union of actions granted to one administrator.
type GrantSource interface {
	ActionsFor(ctx context.Context, adminID string) (map[Action]struct{}, error)
}

// Evaluator decides allow/deny for administrator requests.
type Evaluator struct {
	grants    GrantSource
	superRole string
}

// NewEvaluator builds an Evaluator. superRole is the role value that
// bypasses all action checks.
func NewEvaluator(grants GrantSource, superRole string) (*Evaluator, error) {
	if grants == nil {
		return nil, errors.New("auth: evaluator requires a grant source")
	}
	superRole = strings.TrimSpace(superRole)
	if superRole == "" {
		return nil, errors.New("auth: super role name must not be empty")
	}
	return &Evaluator{grants: grants, superRole: superRole}, nil
}

// Authorize allows when no action is required, when the principal holds the
// super role, or when any required action appears in the union of the
// principal's grants. Every other outcome, including a failed grant fetch,
// is ErrPermissionDenied: the evaluator fails closed and names no missing
// action.
func (e *Evaluator) Authorize(ctx context.Context, p Principal, required ...Action) error {
	if len(required) == 0 {
		return nil
	}
	if !p.IsAdmin() {
		return ErrPermissionDenied
	}
	if p.Role == e.superRole {
		return nil
	}

	granted, err := e.grants.ActionsFor(ctx, p.ID)
	if err != nil {
		return ErrPermissionDenied
	}
	for _, action := range required {
		if _, ok := granted[action]; ok {
			return nil
		}
	}
	return ErrPermissionDenied
}

// AuthorizeRoute applies the static route permission table.
func (e *Evaluator) AuthorizeRoute(ctx context.Context, p Principal, route string) error {
	return e.Authorize(ctx, p, RoutePermissions[route]...)
}
