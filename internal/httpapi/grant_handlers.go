package httpapi

import (
	"net/http"
	"strings"
	"time"

	"tribuna.org/internal/audit"
	"tribuna.org/internal/auth"
	"tribuna.org/internal/obs"
)

type addGrantRequest struct {
	Actions []string `json:"actions"`
}

type grantResponse struct {
	ID        string    `json:"id"`
	AdminID   string    `json:"admin_id"`
	Actions   []string  `json:"actions"`
	CreatedAt time.Time `json:"created_at"`
}

type listGrantsResponse struct {
	Items []grantResponse `json:"items"`
}

func grantPayload(g auth.Grant) grantResponse {
	actions := make([]string, 0, len(g.Actions))
	for _, a := range g.Actions {
		actions = append(actions, string(a))
	}
	return grantResponse{
		ID:        g.ID,
		AdminID:   g.AdminID,
		Actions:   actions,
		CreatedAt: g.CreatedAt,
	}
}

// handleAdminResources routes /v1/admins/{id}/grants[/{grantID}]. The
// caller is already authenticated as an administrator; grant management
// itself is gated through the permission evaluator.
func (a *API) handleAdminResources(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v1/admins/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] != "grants" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	adminID := parts[0]

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		handleAuthError(w, r, auth.ErrTokenInvalid)
		return
	}
	if err := a.evaluator.AuthorizeRoute(r.Context(), principal, "admin.grants.manage"); err != nil {
		obs.ObserveDenial()
		_ = audit.LogEvent(r.Context(), "auth.permission.denied", map[string]any{
			"route": "admin.grants.manage", "target_admin_id": adminID,
		})
		handleAuthError(w, r, err)
		return
	}

	switch len(parts) {
	case 2:
		switch r.Method {
		case http.MethodGet:
			a.listGrants(w, r, adminID)
		case http.MethodPost:
			a.addGrant(w, r, adminID)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		}
	case 3:
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		a.removeGrant(w, r, adminID, parts[2])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) listGrants(w http.ResponseWriter, r *http.Request, adminID string) {
	grants, err := a.grants.ListFor(r.Context(), adminID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	items := make([]grantResponse, 0, len(grants))
	for _, g := range grants {
		items = append(items, grantPayload(g))
	}
	writeJSON(w, http.StatusOK, listGrantsResponse{Items: items})
}

func (a *API) addGrant(w http.ResponseWriter, r *http.Request, adminID string) {
	var req addGrantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Actions) == 0 {
		writeError(w, r, http.StatusBadRequest, "actions are required")
		return
	}

	actions := make([]auth.Action, 0, len(req.Actions))
	for _, raw := range req.Actions {
		action := auth.Action(strings.TrimSpace(raw))
		if !auth.KnownAction(action) {
			writeError(w, r, http.StatusBadRequest, "unknown action: "+string(action))
			return
		}
		actions = append(actions, action)
	}

	grant := &auth.Grant{AdminID: adminID, Actions: actions}
	if err := a.grants.Add(r.Context(), grant); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.grant.added", map[string]any{
		"grant_id": grant.ID, "target_admin_id": adminID, "actions": req.Actions,
	})
	w.Header().Set("Location", "/v1/admins/"+adminID+"/grants/"+grant.ID)
	writeJSON(w, http.StatusCreated, grantPayload(*grant))
}

func (a *API) removeGrant(w http.ResponseWriter, r *http.Request, adminID, grantID string) {
	if err := a.grants.Remove(r.Context(), grantID); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.grant.removed", map[string]any{
		"grant_id": grantID, "target_admin_id": adminID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "removed"})
}
