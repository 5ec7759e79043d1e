package sanitize

import (
	"time"

	"tillpoint.org/internal/obs"
)

// LogError writes the sanitized form of err to the shared log sink. It never
// panics and never returns an error: logging is a best-effort side channel
// and must not become the cause of a request failure.
func LogError(err any, context string, extra map[string]any) {
	defer func() {
		_ = recover()
	}()
	entry := map[string]any{
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"level":   "error",
		"context": context,
		"error":   Sanitize(err),
	}
	if len(extra) > 0 {
		entry["fields"] = Redact(extra)
	}
	obs.LogJSON(entry)
}

// LogAuthError records an authentication failure with a masked email.
func LogAuthError(err any, email string) {
	var extra map[string]any
	if email != "" {
		extra = map[string]any{"email": SanitizeEmail(email)}
	}
	LogError(err, "auth", extra)
}
