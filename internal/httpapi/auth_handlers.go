package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"tribuna.org/internal/actor"
	"tribuna.org/internal/auth"
	"tribuna.org/internal/obs"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Slug     string `json:"slug,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type principalResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Kind  string `json:"kind"`
	Role  string `json:"role,omitempty"`
}

type tokenPairResponse struct {
	AccessToken      string            `json:"access_token"`
	RefreshToken     string            `json:"refresh_token"`
	AccessExpiresAt  time.Time         `json:"access_expires_at"`
	RefreshExpiresAt time.Time         `json:"refresh_expires_at"`
	Actor            principalResponse `json:"actor"`
}

func principalPayload(p auth.Principal) principalResponse {
	return principalResponse{
		ID:    p.ID,
		Email: p.Email,
		Name:  p.Name,
		Kind:  string(p.Kind),
		Role:  p.Role,
	}
}

func pairPayload(pair auth.TokenPair, p auth.Principal) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		Actor:            principalPayload(p),
	}
}

func requestMeta(r *http.Request) auth.RequestMeta {
	return auth.RequestMeta{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// authFamilyHandler serves one /v1/{population}/auth/ subtree. All
// operations are POST.
func (a *API) authFamilyHandler(prefix string, kind actor.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op := strings.TrimPrefix(r.URL.Path, prefix)

		if op == "me" {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, r, http.MethodGet)
				return
			}
			a.handleMe(w, r, kind)
			return
		}

		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		switch op {
		case "register":
			a.handleRegister(w, r, kind)
		case "login":
			a.handleLogin(w, r, kind)
		case "refresh":
			a.handleRefresh(w, r, kind)
		case "logout":
			a.handleLogout(w, r, kind)
		case "forgot-password":
			a.handleForgotPassword(w, r, kind)
		case "reset-password":
			a.handleResetPassword(w, r, kind)
		default:
			writeError(w, r, http.StatusNotFound, "resource not found")
		}
	}
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request, kind actor.Kind) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}
	if kind == actor.KindOrganization && strings.TrimSpace(req.Slug) == "" {
		writeError(w, r, http.StatusBadRequest, "slug is required")
		return
	}

	pair, principal, err := a.gateway.Register(r.Context(), kind, auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Slug:     req.Slug,
	}, requestMeta(r))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pairPayload(pair, principal))
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request, kind actor.Kind) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	pair, principal, err := a.gateway.Login(r.Context(), kind, req.Email, req.Password, requestMeta(r))
	if err != nil {
		obs.ObserveLogin(string(kind), "failure")
		handleAuthError(w, r, err)
		return
	}
	obs.ObserveLogin(string(kind), "success")
	writeJSON(w, http.StatusOK, pairPayload(pair, principal))
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request, kind actor.Kind) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.RefreshToken == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, principal, err := a.gateway.Refresh(r.Context(), kind, req.RefreshToken, requestMeta(r))
	if err != nil {
		obs.ObserveRotation(string(kind), "failure")
		if errors.Is(err, auth.ErrTokenRevoked) {
			obs.ObserveReplay()
		}
		handleAuthError(w, r, err)
		return
	}
	obs.ObserveRotation(string(kind), "success")
	writeJSON(w, http.StatusOK, pairPayload(pair, principal))
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request, kind actor.Kind) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.RefreshToken == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}

	if err := a.gateway.Logout(r.Context(), kind, req.RefreshToken); err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request, kind actor.Kind) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.gateway.ForgotPassword(r.Context(), kind, req.Email); err != nil {
		handleAuthError(w, r, err)
		return
	}
	// Same response whether or not the address exists.
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request, kind actor.Kind) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Token == "" || req.NewPassword == "" {
		writeError(w, r, http.StatusBadRequest, "token and new_password are required")
		return
	}

	if err := a.gateway.ResetPassword(r.Context(), kind, req.Token, req.NewPassword); err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "password_reset"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request, kind actor.Kind) {
	principal, err := a.authenticate(r, kind)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, principalPayload(principal))
}
