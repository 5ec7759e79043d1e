package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"tillpoint.org/internal/sanitize"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError emits the structured error payload. The message passes through
// the sanitizer so no secret, token, email or IP reaches the client verbatim.
func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	body := map[string]any{
		"error": sanitize.RedactString(msg),
	}
	if rid := requestIDFrom(r); rid != "" {
		body["request_id"] = rid
	}
	writeJSON(w, code, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body")
	}
	return nil
}

// requireStore rejects account operations when the service runs without a
// database. Health and metrics stay up in that mode.
func (a *API) requireStore(w http.ResponseWriter, r *http.Request) bool {
	if a.accounts == nil {
		writeError(w, r, http.StatusServiceUnavailable, "account store not configured")
		return false
	}
	return true
}
