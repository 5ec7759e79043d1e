package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"tillpoint.org/internal/audit"
	"tillpoint.org/internal/auth"
	"tillpoint.org/internal/obs"
)

// Paths reachable without a session. Every status-gate redirect target is in
// this set, which is what makes the gate loop-free.
var publicPaths = map[string]struct{}{
	"/":                        {},
	"/login":                   {},
	"/logout":                  {},
	"/register":                {},
	"/password-reset":          {},
	"/password-reset/confirm":  {},
	"/check-email":             {},
	"/verify-email":            {},
	"/pending-approval":        {},
	"/unauthorized":            {},
	"/healthz":                 {},
	"/readyz":                  {},
	"/metrics":                 {},
	"/api/auth/login":          {},
	"/api/auth/logout":         {},
	"/api/auth/register":       {},
	"/api/auth/password-reset": {},
	"/api/auth/verify-email":   {},
}

// routeRule maps a path prefix to the roles allowed through it. Rules are
// checked in order; the first match wins. Protected paths with no matching
// rule require only an approved session.
type routeRule struct {
	prefix string
	roles  []auth.Role
}

var anyRole = []auth.Role{auth.RoleAdmin, auth.RoleManager, auth.RoleStaff}

var routeRules = []routeRule{
	{prefix: "/admin", roles: []auth.Role{auth.RoleAdmin}},
	{prefix: "/api/admin", roles: []auth.Role{auth.RoleAdmin}},
	{prefix: "/reports", roles: []auth.Role{auth.RoleAdmin, auth.RoleManager}},
	{prefix: "/api/reports", roles: []auth.Role{auth.RoleAdmin, auth.RoleManager}},
	{prefix: "/dashboard", roles: anyRole},
	{prefix: "/products", roles: anyRole},
	{prefix: "/sales", roles: anyRole},
	{prefix: "/api/products", roles: anyRole},
	{prefix: "/api/sales", roles: anyRole},
	{prefix: "/api/inventory", roles: anyRole},
}

func isPublicPath(path string) bool {
	_, ok := publicPaths[path]
	return ok
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

func matchRule(path string) (routeRule, bool) {
	for _, rule := range routeRules {
		if path == rule.prefix || strings.HasPrefix(path, rule.prefix+"/") {
			return rule, true
		}
	}
	return routeRule{}, false
}

func roleAllowed(roles []auth.Role, role auth.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// tokenFromRequest reads the session credential: Authorization bearer first,
// then the session cookie.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
		return ""
	}
	if c, err := r.Cookie(sessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

const sessionCookieName = "session"

// Gate is the request-time authorization middleware. It decodes the session
// token, applies the account-status state machine and consults the per-route
// role allow-list before admitting a request. Denials are audited.
type Gate struct {
	tokens   *auth.TokenManager
	recorder *audit.Recorder
}

// NewGate builds the gate. A nil recorder falls back to the log sink.
func NewGate(tokens *auth.TokenManager, recorder *audit.Recorder) *Gate {
	if recorder == nil {
		recorder = audit.NewRecorder(nil)
	}
	return &Gate{tokens: tokens, recorder: recorder}
}

// Middleware evaluates, in order: public-path bypass, token presence and
// structure, account status, route role rules. Claims for admitted requests
// are attached to the context for downstream handlers.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if isPublicPath(path) {
			next.ServeHTTP(w, r)
			return
		}

		token := tokenFromRequest(r)
		if token == "" {
			g.deny(w, r, nil, denial{
				code:     http.StatusUnauthorized,
				message:  "authentication required",
				reason:   "token",
				redirect: "/login",
			})
			return
		}

		claims, err := g.tokens.Parse(token)
		if err != nil {
			d := denial{
				code:     http.StatusUnauthorized,
				message:  "invalid or expired session",
				reason:   "token",
				redirect: "/login",
			}
			if errors.Is(err, auth.ErrMalformedToken) {
				d.code = http.StatusBadRequest
				d.message = "malformed session token"
			}
			g.deny(w, r, nil, d)
			return
		}

		switch claims.Status {
		case auth.StatusPending:
			g.deny(w, r, claims, denial{
				code:     http.StatusForbidden,
				message:  "email verification required",
				reason:   "status",
				redirect: "/verify-email",
			})
			return
		case auth.StatusVerified:
			g.deny(w, r, claims, denial{
				code:     http.StatusForbidden,
				message:  "account pending approval",
				reason:   "status",
				redirect: "/pending-approval",
			})
			return
		case auth.StatusRejected, auth.StatusSuspended:
			g.deny(w, r, claims, denial{
				code:     http.StatusForbidden,
				message:  "account access revoked",
				reason:   "status",
				redirect: "/unauthorized",
			})
			return
		case auth.StatusApproved:
			// proceed to the role gate
		default:
			g.deny(w, r, claims, denial{
				code:     http.StatusForbidden,
				message:  "account status not recognized",
				reason:   "status",
				redirect: "/unauthorized",
			})
			return
		}

		if rule, ok := matchRule(path); ok && !roleAllowed(rule.roles, claims.Role) {
			g.deny(w, r, claims, denial{
				code:     http.StatusForbidden,
				message:  "insufficient role for this resource",
				reason:   "role",
				redirect: "/unauthorized",
			})
			return
		}

		ctx := auth.ContextWithSession(r.Context(), claims)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type denial struct {
	code     int
	message  string
	reason   string
	redirect string
}

// deny audits the failure and answers either with structured JSON (API) or a
// redirect (browser). Redirecting to the page the request is already on is a
// no-op pass-through.
func (g *Gate) deny(w http.ResponseWriter, r *http.Request, claims *auth.SessionClaims, d denial) {
	actor := ""
	if claims != nil {
		actor = claims.AccountID()
	}
	obs.AuthzDenialsTotal.WithLabelValues(d.reason).Inc()
	g.recorder.Record(r.Context(), actor, audit.ActionPermissionDenied, audit.OutcomeDenied,
		ClientIP(r), map[string]any{
			"path":   r.URL.Path,
			"reason": d.message,
		})

	if isAPIPath(r.URL.Path) {
		writeError(w, r, d.code, d.message)
		return
	}
	if r.URL.Path == d.redirect {
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, d.redirect, http.StatusFound)
}

// Requirements declares what a wrapped handler demands of the caller beyond
// the gate's baseline checks.
type Requirements struct {
	Permission           string
	Roles                []auth.Role
	RequireEmailVerified bool
}

// WithAuth wraps a handler with per-endpoint requirements. The gate must have
// run first; a request without session claims in context is rejected.
func WithAuth(next http.HandlerFunc, req Requirements) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.SessionFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		if len(req.Roles) > 0 && !roleAllowed(req.Roles, claims.Role) {
			obs.AuthzDenialsTotal.WithLabelValues("role").Inc()
			writeError(w, r, http.StatusForbidden, "insufficient role for this resource")
			return
		}
		if req.Permission != "" && !auth.HasPermission(claims.Role, req.Permission) {
			obs.AuthzDenialsTotal.WithLabelValues("permission").Inc()
			writeError(w, r, http.StatusForbidden, "insufficient permission for this resource")
			return
		}
		if req.RequireEmailVerified && !claims.EmailVerified {
			obs.AuthzDenialsTotal.WithLabelValues("status").Inc()
			writeError(w, r, http.StatusForbidden, "email verification required")
			return
		}
		next(w, r)
	}
}

// CheckPermission is the inbound contract for handlers outside this package:
// it answers whether the current session may exercise a permission, returning
// the claims on success and ErrUnauthorized otherwise.
func CheckPermission(ctx context.Context, permission string) (*auth.SessionClaims, error) {
	claims, ok := auth.SessionFromContext(ctx)
	if !ok {
		return nil, auth.ErrUnauthorized
	}
	if !auth.HasPermission(claims.Role, permission) {
		return nil, auth.ErrUnauthorized
	}
	return claims, nil
}
