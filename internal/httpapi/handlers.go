package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"tribuna.org/internal/actor"
	"tribuna.org/internal/auth"
	"tribuna.org/internal/obs"
)

// ReadyProbe checks the backing stores the service cannot run without.
type ReadyProbe struct {
	DB *sql.DB
	KV interface {
		Ping(ctx context.Context) error
	}
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if rp.KV != nil {
		if err := rp.KV.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// API is the HTTP layer. Every route family resolves identity through the
// strategy registered for its actor kind.
type API struct {
	mux        *http.ServeMux
	gateway    *auth.Gateway
	issuer     *auth.Issuer
	strategies map[actor.Kind]auth.IdentityStrategy
	evaluator  *auth.Evaluator
	grants     auth.GrantStore
	readyProbe ReadyProbe
	version    string

	credentialBurst int
	credentialRate  int
}

// Option adjusts API construction.
type Option func(*API)

// WithCredentialRateLimit overrides the per-IP limiter applied to
// credential routes.
func WithCredentialRateLimit(burst, perSecond int) Option {
	return func(a *API) {
		if burst > 0 && perSecond > 0 {
			a.credentialBurst = burst
			a.credentialRate = perSecond
		}
	}
}

// New wires the route table. The gateway, issuer and per-kind strategies
// are mandatory; evaluator and grant store unlock the administrative
// surface.
func New(gateway *auth.Gateway, issuer *auth.Issuer, strategies []auth.IdentityStrategy,
	evaluator *auth.Evaluator, grants auth.GrantStore, rp ReadyProbe, version string, opts ...Option) *API {

	a := &API{
		mux:             http.NewServeMux(),
		gateway:         gateway,
		issuer:          issuer,
		strategies:      make(map[actor.Kind]auth.IdentityStrategy, len(strategies)),
		evaluator:       evaluator,
		grants:          grants,
		readyProbe:      rp,
		version:         version,
		credentialBurst: 10,
		credentialRate:  5,
	}
	for _, s := range strategies {
		a.strategies[s.Kind()] = s
	}
	for _, opt := range opts {
		opt(a)
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// Auth route families, one per actor kind.
	a.mountAuthFamily("/v1/users/auth/", actor.KindUser)
	a.mountAuthFamily("/v1/organizations/auth/", actor.KindOrganization)
	a.mountAuthFamily("/v1/admins/auth/", actor.KindAdministrator)

	// Administrative grant management.
	if a.evaluator != nil && a.grants != nil {
		a.mux.Handle("/v1/admins/", a.withIdentity(actor.KindAdministrator,
			http.HandlerFunc(a.handleAdminResources)))
	}

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

func (a *API) mountAuthFamily(prefix string, kind actor.Kind) {
	family := http.Handler(a.authFamilyHandler(prefix, kind))
	family = RateLimit(family, a.credentialBurst, a.credentialRate)
	a.mux.Handle(prefix, family)
}

// Handler returns the fully wrapped root handler.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- service endpoints ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "tribuna-auth",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "tribuna-auth",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
