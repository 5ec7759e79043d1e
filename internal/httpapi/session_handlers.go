package httpapi

import (
	"errors"
	"net/http"
	"time"

	"tillpoint.org/internal/auth"
	"tillpoint.org/internal/obs"
	"tillpoint.org/internal/sanitize"
)

// handleSessionValidate answers the periodic check the session watcher makes.
// The gate has already verified the token; this reports remaining lifetime.
func (a *API) handleSessionValidate(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	expiresAt := claims.ExpiresAt.Time.UTC()
	remaining := time.Until(expiresAt)
	if remaining < 0 {
		remaining = 0
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":             true,
		"account_id":        claims.AccountID(),
		"expires_at":        expiresAt,
		"remaining_seconds": int(remaining.Seconds()),
	})
}

// handleSessionExtend reissues the token from the live account record, so a
// status change since login takes effect immediately rather than riding the
// old claims.
func (a *API) handleSessionExtend(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w, r) {
		return
	}
	claims, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	acct, err := a.accounts.Find(r.Context(), claims.AccountID())
	if errors.Is(err, auth.ErrNotFound) {
		a.clearSessionCookie(w)
		writeError(w, r, http.StatusUnauthorized, "account no longer exists")
		return
	}
	if err != nil {
		sanitize.LogError(err, "session_extend", nil)
		writeError(w, r, http.StatusInternalServerError, "extension failed")
		return
	}
	if acct.Status != auth.StatusApproved {
		a.clearSessionCookie(w)
		writeError(w, r, http.StatusForbidden, "account is no longer approved")
		return
	}

	token, expiresAt, err := a.tokens.Issue(acct)
	if err != nil {
		sanitize.LogError(err, "session_extend", nil)
		writeError(w, r, http.StatusInternalServerError, "extension failed")
		return
	}
	a.setSessionCookie(w, token, expiresAt)
	obs.SessionExtensionsTotal.Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expiresAt.UTC(),
	})
}
