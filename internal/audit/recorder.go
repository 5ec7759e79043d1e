// Package audit records security-relevant events in an append-only trail.
// Recording is best-effort: a sink failure is logged locally and never
// propagates into the authentication or authorization flow.
package audit

import (
	"context"
	"strings"
	"time"

	"tillpoint.org/internal/ids"
	"tillpoint.org/internal/obs"
	"tillpoint.org/internal/sanitize"
)

// Standard actions written by the auth subsystem.
const (
	ActionLoginSuccess     = "login.success"
	ActionLoginFailure     = "login.failure"
	ActionLogout           = "logout"
	ActionLockoutTriggered = "lockout.triggered"
	ActionPermissionDenied = "permission.denied"
	ActionStatusTransition = "status.transition"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)

// Entry is an immutable audit record. Detail has already passed through the
// sanitizer by the time an Entry reaches a sink.
type Entry struct {
	ID         string         `json:"id"`
	Actor      string         `json:"actor"`
	Action     string         `json:"action"`
	Outcome    string         `json:"outcome"`
	IP         string         `json:"ip"`
	OccurredAt time.Time      `json:"occurred_at"`
	Detail     map[string]any `json:"detail,omitempty"`
}

// Sink appends entries to durable storage. Append must write each entry
// atomically; ordering between concurrent appends is not required.
type Sink interface {
	Append(ctx context.Context, entry *Entry) error
}

// LogSink writes audit entries to the shared structured log. It is the
// fallback sink when no database is configured, and never fails.
type LogSink struct{}

// Append emits the entry as a JSON log line.
func (LogSink) Append(_ context.Context, entry *Entry) error {
	obs.LogJSON(map[string]any{
		"ts":      entry.OccurredAt.Format(time.RFC3339Nano),
		"type":    "audit",
		"id":      entry.ID,
		"actor":   entry.Actor,
		"action":  entry.Action,
		"outcome": entry.Outcome,
		"ip":      entry.IP,
		"detail":  entry.Detail,
	})
	return nil
}

// Recorder builds sanitized entries and appends them to a sink.
type Recorder struct {
	sink Sink
	now  func() time.Time
}

// NewRecorder constructs a Recorder. A nil sink falls back to the log sink.
func NewRecorder(sink Sink) *Recorder {
	if sink == nil {
		sink = LogSink{}
	}
	return &Recorder{sink: sink, now: time.Now}
}

// WithClock overrides the time source. Test use only.
func (r *Recorder) WithClock(fn func() time.Time) *Recorder {
	if fn != nil {
		r.now = fn
	}
	return r
}

// Record sanitizes detail, builds the entry and appends it. Failures are
// swallowed after local logging so callers never block or fail on auditing.
func (r *Recorder) Record(ctx context.Context, actor, action, outcome, ip string, detail map[string]any) {
	defer func() {
		_ = recover()
	}()
	action = strings.TrimSpace(action)
	if action == "" {
		return
	}
	if actor == "" {
		actor = "anonymous"
	}
	entry := &Entry{
		ID:         ids.New(),
		Actor:      actor,
		Action:     action,
		Outcome:    outcome,
		IP:         ip,
		OccurredAt: r.now().UTC(),
	}
	if len(detail) > 0 {
		if redacted, ok := sanitize.Redact(detail).(map[string]any); ok {
			entry.Detail = redacted
		}
	}
	if err := r.sink.Append(ctx, entry); err != nil {
		sanitize.LogError(err, "audit", map[string]any{"action": action})
	}
}
