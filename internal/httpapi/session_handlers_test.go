package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"tillpoint.org/internal/auth"
)

func TestSessionValidate(t *testing.T) {
	ta := newTestAPI(t)
	acct := ta.seedAccount(t, auth.RoleStaff, auth.StatusApproved)
	token := ta.tokenFor(t, acct)

	w := ta.request(t, http.MethodGet, "/api/session/validate", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Valid            bool   `json:"valid"`
		AccountID        string `json:"account_id"`
		RemainingSeconds int    `json:"remaining_seconds"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Valid || resp.AccountID != acct.ID {
		t.Fatalf("unexpected response: %+v", resp)
	}
	// One-hour test TTL minus a moment of test runtime.
	if resp.RemainingSeconds < 3500 || resp.RemainingSeconds > 3600 {
		t.Fatalf("unexpected remaining lifetime: %d", resp.RemainingSeconds)
	}
}

func TestSessionExtendIssuesFreshToken(t *testing.T) {
	ta := newTestAPI(t)
	acct := ta.seedAccount(t, auth.RoleStaff, auth.StatusApproved)
	token := ta.tokenFor(t, acct)

	w := ta.request(t, http.MethodPost, "/api/session/extend", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := ta.tokens.Parse(resp.Token)
	if err != nil {
		t.Fatalf("extended token does not parse: %v", err)
	}
	if claims.AccountID() != acct.ID {
		t.Fatalf("expected subject %s, got %s", acct.ID, claims.AccountID())
	}
}

// A suspension between login and extension takes effect at the extension:
// the handler reloads the live account instead of trusting the old claims.
func TestSessionExtendRefusedAfterSuspension(t *testing.T) {
	ta := newTestAPI(t)
	acct := ta.seedAccount(t, auth.RoleStaff, auth.StatusApproved)
	token := ta.tokenFor(t, acct)

	if err := ta.store.UpdateStatus(context.Background(), acct.ID,
		auth.StatusApproved, auth.StatusSuspended); err != nil {
		t.Fatalf("suspend: %v", err)
	}

	w := ta.request(t, http.MethodPost, "/api/session/extend", token, "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 after suspension, got %d", w.Code)
	}
	cleared := false
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("expected session cookie cleared")
	}
}
