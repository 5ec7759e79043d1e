package sessionwatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPClientRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" && got != "Bearer tok-2" {
			t.Errorf("unexpected authorization header %q", got)
		}
		switch r.URL.Path {
		case "/api/session/validate":
			json.NewEncoder(w).Encode(map[string]any{
				"valid":             true,
				"remaining_seconds": 120,
			})
		case "/api/session/extend":
			json.NewEncoder(w).Encode(map[string]any{
				"token":      "tok-2",
				"expires_at": time.Now().Add(time.Hour).UTC(),
			})
		case "/api/auth/logout":
			json.NewEncoder(w).Encode(map[string]string{"status": "signed out"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "tok-1")

	remaining, err := c.Validate(context.Background())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if remaining != 2*time.Minute {
		t.Fatalf("expected 2m remaining, got %s", remaining)
	}

	extended, err := c.Extend(context.Background())
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if extended < 59*time.Minute {
		t.Fatalf("expected about an hour, got %s", extended)
	}
	if c.Token() != "tok-2" {
		t.Fatalf("expected reissued token adopted, got %q", c.Token())
	}

	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
}

func TestHTTPClientValidateRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid or expired session"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "stale")
	if _, err := c.Validate(context.Background()); err == nil {
		t.Fatal("expected validation failure")
	}
}
