package httpapi

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"tillpoint.org/internal/audit"
	"tillpoint.org/internal/auth"
	"tillpoint.org/internal/obs"
	"tillpoint.org/internal/sanitize"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// handleLogin checks the lockout guard before credentials: a locked
// identifier is refused with 429 and its password is never verified.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w, r) {
		return
	}
	var creds credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	if email == "" || creds.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}
	ip := ClientIP(r)

	if st := a.guard.Check(email); st.Locked {
		obs.LoginAttemptsTotal.WithLabelValues("locked").Inc()
		a.recorder.Record(r.Context(), email, audit.ActionLoginFailure, audit.OutcomeFailure,
			ip, map[string]any{"reason": "account locked"})
		w.Header().Set("Retry-After", strconv.Itoa(st.RemainingSeconds))
		writeError(w, r, http.StatusTooManyRequests, "too many failed attempts, try again later")
		return
	}

	acct, err := a.accounts.FindByEmail(r.Context(), email)
	if err != nil && !errors.Is(err, auth.ErrNotFound) {
		sanitize.LogAuthError(err, email)
		writeError(w, r, http.StatusInternalServerError, "login failed")
		return
	}

	if acct == nil || auth.VerifyPassword(acct.PasswordHash, creds.Password) != nil {
		a.recordLoginFailure(r, email, acct, ip)
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}

	a.guard.Reset(email)
	if acct.FailedAttempts > 0 || acct.LockedUntil != nil {
		if err := a.accounts.ResetFailedAttempts(r.Context(), acct.ID); err != nil {
			sanitize.LogAuthError(err, email)
		}
	}

	token, expiresAt, err := a.tokens.Issue(acct)
	if err != nil {
		sanitize.LogAuthError(err, email)
		writeError(w, r, http.StatusInternalServerError, "login failed")
		return
	}
	a.setSessionCookie(w, token, expiresAt)

	obs.LoginAttemptsTotal.WithLabelValues("success").Inc()
	a.recorder.Record(r.Context(), acct.ID, audit.ActionLoginSuccess, audit.OutcomeSuccess, ip, nil)

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expiresAt.UTC(),
		"account":    accountView(acct),
	})
}

// recordLoginFailure increments the guard, persists the counter snapshot when
// the account exists and audits the attempt. A newly triggered lock gets its
// own audit entry.
func (a *API) recordLoginFailure(r *http.Request, email string, acct *auth.Account, ip string) {
	triggered := a.guard.RecordFailure(email)
	obs.LoginAttemptsTotal.WithLabelValues("failure").Inc()

	if acct != nil {
		var lockedUntil *time.Time
		if st := a.guard.Check(email); st.Locked {
			t := time.Now().UTC().Add(time.Duration(st.RemainingSeconds) * time.Second)
			lockedUntil = &t
		}
		count := a.guard.FailureCount(email)
		if err := a.accounts.RecordFailedAttempt(r.Context(), acct.ID, count, lockedUntil); err != nil {
			sanitize.LogAuthError(err, email)
		}
	}

	actor := email
	if acct != nil {
		actor = acct.ID
	}
	a.recorder.Record(r.Context(), actor, audit.ActionLoginFailure, audit.OutcomeFailure,
		ip, map[string]any{"reason": "invalid credentials"})
	if triggered {
		a.recorder.Record(r.Context(), actor, audit.ActionLockoutTriggered, audit.OutcomeDenied,
			ip, map[string]any{"failures": a.guard.FailureCount(email)})
	}
}

// handleLogout is a public endpoint: it clears the cookie whether or not the
// presented token still verifies, and audits the actor when it does.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	actor := ""
	if token := tokenFromRequest(r); token != "" {
		if claims, err := a.tokens.Parse(token); err == nil {
			actor = claims.AccountID()
		}
	}
	a.clearSessionCookie(w)
	a.recorder.Record(r.Context(), actor, audit.ActionLogout, audit.OutcomeSuccess, ClientIP(r), nil)
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

// handleRegister creates a PENDING staff account. Role elevation and approval
// are administrative actions.
func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w, r) {
		return
	}
	var creds credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	if !strings.Contains(email, "@") {
		writeError(w, r, http.StatusBadRequest, "a valid email is required")
		return
	}
	hash, err := auth.HashPassword(creds.Password)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	acct := &auth.Account{
		Email:        email,
		PasswordHash: hash,
		Role:         auth.RoleStaff,
		Status:       auth.StatusPending,
	}
	if err := a.accounts.Create(r.Context(), acct); err != nil {
		if errors.Is(err, auth.ErrAlreadyExists) {
			writeError(w, r, http.StatusConflict, "account already exists")
			return
		}
		sanitize.LogAuthError(err, email)
		writeError(w, r, http.StatusInternalServerError, "registration failed")
		return
	}
	writeJSON(w, http.StatusCreated, accountView(acct))
}

// handleVerifyEmail advances PENDING to VERIFIED. Only the verification
// action may take this edge.
func (a *API) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w, r) {
		return
	}
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	acct, err := a.accounts.FindByEmail(r.Context(), email)
	if errors.Is(err, auth.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "account not found")
		return
	}
	if err != nil {
		sanitize.LogAuthError(err, email)
		writeError(w, r, http.StatusInternalServerError, "verification failed")
		return
	}
	if acct.Status != auth.StatusPending {
		writeError(w, r, http.StatusConflict, "account is not awaiting verification")
		return
	}

	if err := a.accounts.UpdateStatus(r.Context(), acct.ID, auth.StatusPending, auth.StatusVerified); err != nil {
		sanitize.LogAuthError(err, email)
		writeError(w, r, http.StatusConflict, "verification failed")
		return
	}
	if err := a.accounts.SetEmailVerified(r.Context(), acct.ID); err != nil {
		sanitize.LogAuthError(err, email)
	}
	a.recorder.Record(r.Context(), acct.ID, audit.ActionStatusTransition, audit.OutcomeSuccess,
		ClientIP(r), map[string]any{"from": string(auth.StatusPending), "to": string(auth.StatusVerified)})

	writeJSON(w, http.StatusOK, map[string]string{
		"id":     acct.ID,
		"status": string(auth.StatusVerified),
	})
}

// handleMe returns the live account behind the session together with its
// effective permissions.
func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
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
		writeError(w, r, http.StatusUnauthorized, "account no longer exists")
		return
	}
	if err != nil {
		sanitize.LogError(err, "me", nil)
		writeError(w, r, http.StatusInternalServerError, "lookup failed")
		return
	}

	perms := make([]string, 0, len(auth.PermissionsOf(acct.Role)))
	for p := range auth.PermissionsOf(acct.Role) {
		perms = append(perms, p)
	}
	sort.Strings(perms)

	view := accountView(acct)
	view["permissions"] = perms
	writeJSON(w, http.StatusOK, view)
}

func accountView(acct *auth.Account) map[string]any {
	return map[string]any{
		"id":             acct.ID,
		"email":          acct.Email,
		"role":           string(acct.Role),
		"status":         string(acct.Status),
		"email_verified": acct.EmailVerified,
	}
}
