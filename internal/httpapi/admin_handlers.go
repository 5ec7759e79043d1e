package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"tillpoint.org/internal/audit"
	"tillpoint.org/internal/auth"
	"tillpoint.org/internal/sanitize"
)

// statusTransitionHandler builds the handler for one administrative edge of
// the account state machine. The store applies the change compare-and-set, so
// a concurrent administrator cannot make the account skip an edge.
func (a *API) statusTransitionHandler(from, to auth.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.requireStore(w, r) {
			return
		}
		id := r.PathValue("id")
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "account id is required")
			return
		}
		acct, err := a.accounts.Find(r.Context(), id)
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "account not found")
			return
		}
		if err != nil {
			sanitize.LogError(err, "admin_status", nil)
			writeError(w, r, http.StatusInternalServerError, "status change failed")
			return
		}
		if acct.Status != from {
			writeError(w, r, http.StatusConflict, "account is not in the required status")
			return
		}

		err = a.accounts.UpdateStatus(r.Context(), id, from, to)
		if errors.Is(err, auth.ErrInvalidTransition) {
			writeError(w, r, http.StatusConflict, "transition not allowed")
			return
		}
		if errors.Is(err, auth.ErrNotFound) {
			// Compare-and-set lost to a concurrent change.
			writeError(w, r, http.StatusConflict, "account status changed concurrently")
			return
		}
		if err != nil {
			sanitize.LogError(err, "admin_status", nil)
			writeError(w, r, http.StatusInternalServerError, "status change failed")
			return
		}

		actor := ""
		if claims, ok := auth.SessionFromContext(r.Context()); ok {
			actor = claims.AccountID()
		}
		a.recorder.Record(r.Context(), actor, audit.ActionStatusTransition, audit.OutcomeSuccess,
			ClientIP(r), map[string]any{
				"account": id,
				"from":    string(from),
				"to":      string(to),
			})

		writeJSON(w, http.StatusOK, map[string]string{
			"id":     id,
			"status": string(to),
		})
	}
}

// handleAuditLog returns the newest audit entries for administrative review.
func (a *API) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	if a.auditLog == nil {
		writeError(w, r, http.StatusServiceUnavailable, "audit store not configured")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	entries, err := a.auditLog.RecentEntries(r.Context(), limit)
	if err != nil {
		sanitize.LogError(err, "admin_audit", nil)
		writeError(w, r, http.StatusInternalServerError, "audit lookup failed")
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
