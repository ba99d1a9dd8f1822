package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"tribuna.org/internal/actor"
	"tribuna.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// authenticate parses the bearer token and resolves it into a Principal
// through the strategy registered for the route's actor kind.
func (a *API) authenticate(r *http.Request, kind actor.Kind) (auth.Principal, error) {
	strategy, ok := a.strategies[kind]
	if !ok {
		return auth.Principal{}, auth.ErrTokenInvalid
	}

	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		return auth.Principal{}, auth.ErrTokenInvalid
	}
	claims, err := a.issuer.ParseAccess(token)
	if err != nil {
		return auth.Principal{}, err
	}
	return strategy.Validate(r.Context(), claims)
}

// withIdentity guards a subtree behind access-token authentication for
// one actor kind and attaches the resulting principal to the context.
func (a *API) withIdentity(kind actor.Kind, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		principal, err := a.authenticate(r, kind)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="tribuna"`)
			handleAuthError(w, r, err)
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		if token, err := extractBearerToken(r.Header.Get(authHeader)); err == nil {
			ctx = auth.ContextWithToken(ctx, token)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
