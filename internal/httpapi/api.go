// Package httpapi carries the HTTP surface of the authorization subsystem:
// the route gate, the middleware chain and the login, session and
// administrative handlers. Everything else in the application registers its
// handlers behind WithAuth / CheckPermission.
package httpapi

import (
	"context"
	"net/http"
	"sync/atomic"

	"tillpoint.org/internal/audit"
	"tillpoint.org/internal/auth"
	"tillpoint.org/internal/lockout"
	"tillpoint.org/internal/obs"
)

// AuditReader serves the administrative audit review endpoint.
type AuditReader interface {
	RecentEntries(ctx context.Context, limit int) ([]audit.Entry, error)
}

// Options wires the API's collaborators. Accounts, Tokens and Guard are
// required; Recorder defaults to the log sink and AuditLog may be nil when no
// durable audit store is configured.
type Options struct {
	Accounts      auth.Store
	Tokens        *auth.TokenManager
	Guard         *lockout.Guard
	Recorder      *audit.Recorder
	AuditLog      AuditReader
	SecureCookies bool
	Version       string

	// Per-IP rate limit on the login path. Zero disables it.
	RateLimitBurst     int
	RateLimitPerSecond int
}

// API is the HTTP application.
type API struct {
	accounts      auth.Store
	tokens        *auth.TokenManager
	guard         *lockout.Guard
	recorder      *audit.Recorder
	auditLog      AuditReader
	secureCookies bool
	version       string

	gate  *Gate
	mux   *http.ServeMux
	ready atomic.Bool
}

// New constructs the API and registers all routes.
func New(opts Options) *API {
	if opts.Recorder == nil {
		opts.Recorder = audit.NewRecorder(nil)
	}
	a := &API{
		accounts:      opts.Accounts,
		tokens:        opts.Tokens,
		guard:         opts.Guard,
		recorder:      opts.Recorder,
		auditLog:      opts.AuditLog,
		secureCookies: opts.SecureCookies,
		version:       opts.Version,
		gate:          NewGate(opts.Tokens, opts.Recorder),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.HandleFunc("GET /readyz", a.handleReadyz)
	mux.Handle("GET /metrics", obs.Handler())

	var login http.Handler = http.HandlerFunc(a.handleLogin)
	if opts.RateLimitPerSecond > 0 {
		login = RateLimit(login, opts.RateLimitBurst, opts.RateLimitPerSecond)
	}
	mux.Handle("POST /api/auth/login", login)
	mux.HandleFunc("POST /api/auth/logout", a.handleLogout)
	mux.HandleFunc("POST /api/auth/register", a.handleRegister)
	mux.HandleFunc("POST /api/auth/verify-email", a.handleVerifyEmail)

	mux.HandleFunc("GET /api/session/validate", a.handleSessionValidate)
	mux.HandleFunc("POST /api/session/extend", a.handleSessionExtend)
	mux.HandleFunc("GET /api/me", a.handleMe)

	mux.HandleFunc("POST /api/admin/accounts/{id}/approve",
		WithAuth(a.statusTransitionHandler(auth.StatusVerified, auth.StatusApproved),
			Requirements{Permission: auth.PermAccountApprove}))
	mux.HandleFunc("POST /api/admin/accounts/{id}/reject",
		WithAuth(a.statusTransitionHandler(auth.StatusVerified, auth.StatusRejected),
			Requirements{Permission: auth.PermAccountApprove}))
	mux.HandleFunc("POST /api/admin/accounts/{id}/suspend",
		WithAuth(a.statusTransitionHandler(auth.StatusApproved, auth.StatusSuspended),
			Requirements{Permission: auth.PermAccountSuspend}))
	mux.HandleFunc("POST /api/admin/accounts/{id}/reinstate",
		WithAuth(a.statusTransitionHandler(auth.StatusSuspended, auth.StatusApproved),
			Requirements{Permission: auth.PermAccountSuspend}))
	mux.HandleFunc("GET /api/admin/audit",
		WithAuth(a.handleAuditLog, Requirements{Permission: auth.PermAuditRead}))

	a.mux = mux
	return a
}

// SetReady flips the readiness state exposed by /readyz.
func (a *API) SetReady(ok bool) {
	a.ready.Store(ok)
	obs.SetReady(ok)
}

// Handler returns the full middleware chain around the route gate and mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.gate.Middleware(h)
	h = obs.Instrument(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return h
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": a.version,
	})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if !a.ready.Load() {
		writeError(w, r, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
