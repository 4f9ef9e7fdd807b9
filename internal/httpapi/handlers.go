// Package httpapi exposes the CRM over JSON/HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"tenantcrm.dev/internal/auth"
	"tenantcrm.dev/internal/crm"
	"tenantcrm.dev/internal/obs"
)

const (
	serviceName    = "tenantcrm-api"
	maxRequestBody = 1 << 20
)

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// ReadyProbe checks named dependencies in name order.
type ReadyProbe map[string]Pinger

func (rp ReadyProbe) Check(ctx context.Context) error {
	names := make([]string, 0, len(rp))
	for n := range rp {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if rp[n] == nil {
			continue
		}
		if err := rp[n].Ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", n, err)
		}
	}
	return nil
}

type readinessChecker interface {
	Check(ctx context.Context) error
}

// Deps are the services the API serves.
type Deps struct {
	Auth    *auth.Authenticator
	RBAC    *auth.RBACService
	Records map[auth.Resource]*crm.Service
	Ready   ReadyProbe
	Version string
	// LoginRate and LoginBurst bound login attempts per client IP.
	LoginRate      float64
	LoginBurst     int
	AllowedOrigins []string
	// TrustedProxies are CIDRs or addresses allowed to set X-Forwarded-For.
	TrustedProxies []string
}

// API is the HTTP layer.
type API struct {
	mux     *http.ServeMux
	auth    *auth.Authenticator
	rbac    *auth.RBACService
	records map[auth.Resource]*crm.Service
	ready   readinessChecker
	version string
	limiter *IPLimiter
	origins []string
	proxies TrustedProxies
}

func New(d Deps) (*API, error) {
	if d.Auth == nil {
		return nil, errors.New("httpapi: authenticator is required")
	}
	if d.RBAC == nil {
		return nil, errors.New("httpapi: rbac service is required")
	}
	if d.LoginRate <= 0 {
		d.LoginRate = 5
	}
	if d.LoginBurst <= 0 {
		d.LoginBurst = 10
	}
	proxies, err := ParseTrustedProxies(d.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("httpapi: %w", err)
	}
	a := &API{
		mux:     http.NewServeMux(),
		auth:    d.Auth,
		rbac:    d.RBAC,
		records: d.Records,
		ready:   d.Ready,
		version: d.Version,
		limiter: NewIPLimiter(d.LoginRate, d.LoginBurst),
		origins: d.AllowedOrigins,
		proxies: proxies,
	}
	a.routes()
	return a, nil
}

func (a *API) routes() {
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.Handle("POST /v1/auth/login", RateLimit(http.HandlerFunc(a.handleLogin), a.limiter))
	a.mux.Handle("POST /v1/auth/logout", a.authenticated(a.handleLogout))
	a.mux.Handle("GET /v1/auth/me", a.authenticated(a.handleMe))

	a.mux.Handle("GET /v1/users", a.withAuth(auth.ResourceUsers, auth.ActionRead, a.handleListUsers))
	a.mux.Handle("POST /v1/users", a.withAuth(auth.ResourceUsers, auth.ActionCreate, a.handleCreateUser))
	a.mux.Handle("GET /v1/users/{id}", a.withAuth(auth.ResourceUsers, auth.ActionRead, a.handleGetUser))
	a.mux.Handle("DELETE /v1/users/{id}", a.withAuth(auth.ResourceUsers, auth.ActionDelete, a.handleDeactivateUser))
	a.mux.Handle("GET /v1/roles", a.withAuth(auth.ResourceRoles, auth.ActionRead, a.handleListRoles))
	a.mux.Handle("PUT /v1/roles/{id}/permissions", a.withAuth(auth.ResourceRoles, auth.ActionUpdate, a.handleSetRolePermissions))

	for _, resource := range auth.CRMResources {
		svc, ok := a.records[resource]
		if !ok {
			continue
		}
		base := "/v1/" + string(resource)
		a.mux.Handle("GET "+base, a.withAuth(resource, auth.ActionRead, a.listRecords(svc)))
		a.mux.Handle("POST "+base, a.withAuth(resource, auth.ActionCreate, a.createRecord(svc)))
		a.mux.Handle("GET "+base+"/{id}", a.withAuth(resource, auth.ActionRead, a.getRecord(svc)))
		a.mux.Handle("PUT "+base+"/{id}", a.withAuth(resource, auth.ActionUpdate, a.updateRecord(svc)))
		a.mux.Handle("DELETE "+base+"/{id}", a.withAuth(resource, auth.ActionDelete, a.deleteRecord(svc)))
	}

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
}

// Handler returns the full middleware chain around the routes.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, maxRequestBody)
	h = obs.Instrument(h)
	h = CORS(a.origins)(h)
	h = SecurityHeaders(h)
	h = Recover(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	h = RealIP(a.proxies)(h)
	return h
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if a.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.ready.Check(ctx); err != nil {
			obs.Logger().Warn().Err(err).Msg("readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not_ready",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
