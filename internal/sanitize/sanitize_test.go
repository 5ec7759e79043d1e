package sanitize

import (
	"errors"
	"strings"
	"testing"
)

func TestRedactStringPatterns(t *testing.T) {
	cases := map[string]string{
		"user test@example.com failed":                   "user [REDACTED_EMAIL] failed",
		"connect from 192.168.10.44":                     "connect from [REDACTED_IP]",
		"header Bearer abc.def.ghi sent":                 "header [REDACTED_TOKEN] sent",
		"jwt eyJhbGciOi.eyJzdWIiOn.sig1234 rejected":     "jwt [REDACTED_TOKEN] rejected",
		"opaque 0123456789abcdef0123456789abcdef in use": "opaque [REDACTED_TOKEN] in use",
		"password: hunter2 rejected":                     "password: [REDACTED] rejected",
		"resetToken=abc123 supplied":                     "resetToken: [REDACTED] supplied",
		"api_key: shortvalue":                            "api_key: [REDACTED]",
		"nothing sensitive here":                         "nothing sensitive here",
	}
	for input, expected := range cases {
		if got := RedactString(input); got != expected {
			t.Fatalf("RedactString(%q) = %q, want %q", input, got, expected)
		}
	}
}

func TestDenylistedKey(t *testing.T) {
	sensitive := []string{
		"password", "Password", "PASSWORD", "token", "resetToken", "secret",
		"key", "api_key", "signing-key", "credential", "authorization",
		"cookie", "session", "csrf", "csrfToken", "apikey",
	}
	for _, name := range sensitive {
		if !DenylistedKey(name) {
			t.Fatalf("expected %q to be denylisted", name)
		}
	}
	for _, name := range []string{"email", "username", "role", "status", "monkey", ""} {
		if DenylistedKey(name) {
			t.Fatalf("did not expect %q to be denylisted", name)
		}
	}
}

func TestRedactObjectByKeyAndValue(t *testing.T) {
	input := map[string]any{
		"email":    "plain value",
		"password": "hunter2",
		"nested": map[string]any{
			"resetToken": "abc",
			"note":       "ok",
		},
		"innocuous": "eyJhbGciOi.eyJzdWIiOn.signature123",
		"items":     []any{"one", map[string]any{"api_key": "x"}},
	}
	out, ok := Redact(input).(map[string]any)
	if !ok {
		t.Fatalf("expected map output, got %T", Redact(input))
	}
	if out["password"] != "[REDACTED]" {
		t.Fatalf("password not redacted: %v", out["password"])
	}
	nested := out["nested"].(map[string]any)
	if nested["resetToken"] != "[REDACTED]" || nested["note"] != "ok" {
		t.Fatalf("nested redaction wrong: %v", nested)
	}
	if out["innocuous"] != "[REDACTED_TOKEN]" {
		t.Fatalf("token-shaped value under innocuous key survived: %v", out["innocuous"])
	}
	items := out["items"].([]any)
	if items[0] != "one" {
		t.Fatalf("plain slice element altered: %v", items[0])
	}
	if items[1].(map[string]any)["api_key"] != "[REDACTED]" {
		t.Fatalf("api_key in slice not redacted: %v", items[1])
	}
}

func TestRedactStruct(t *testing.T) {
	type loginDetail struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Attempts int    `json:"attempts"`
	}
	out := Redact(loginDetail{Email: "plain", Password: "pw", Attempts: 3}).(map[string]any)
	if out["password"] != "[REDACTED]" {
		t.Fatalf("struct password field not redacted: %v", out)
	}
	if out["attempts"] != 3 {
		t.Fatalf("numeric field altered: %v", out["attempts"])
	}
}

func TestRedactCircular(t *testing.T) {
	m := map[string]any{"name": "loop"}
	m["self"] = m

	out := Redact(m).(map[string]any)
	if out["self"] != "[circular]" {
		t.Fatalf("expected circular marker, got %v", out["self"])
	}

	// Transitive cycle through two maps.
	a := map[string]any{}
	b := map[string]any{"back": a}
	a["fwd"] = b
	outer := Redact(a).(map[string]any)
	inner := outer["fwd"].(map[string]any)
	if inner["back"] != "[circular]" {
		t.Fatalf("expected transitive circular marker, got %v", inner["back"])
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	first := Sanitize(errors.New("login failed for test@example.com"))
	if !first.Sanitized {
		t.Fatal("sanitized flag not set")
	}
	if strings.Contains(first.Message, "test@example.com") {
		t.Fatalf("email leaked: %s", first.Message)
	}

	second := Sanitize(first)
	if !second.Sanitized || second.Message != first.Message {
		t.Fatalf("re-sanitizing changed the message: %q vs %q", second.Message, first.Message)
	}
}

func TestSanitizeUnknownInput(t *testing.T) {
	for _, v := range []any{nil, "", "   "} {
		out := Sanitize(v)
		if out.Message != "Unknown error occurred" || out.Type != "UnknownError" {
			t.Fatalf("Sanitize(%v) = %+v", v, out)
		}
		if !out.Sanitized {
			t.Fatal("sanitized flag not set")
		}
	}
}

func TestSanitizeEmail(t *testing.T) {
	cases := map[string]string{
		"test@example.com":  "te***@example.com",
		"a@example.com":     "***@example.com",
		"ab@example.com":    "***@example.com",
		"longname@shop.org": "lo***@shop.org",
		"not-an-email":      "[INVALID_EMAIL]",
		"@example.com":      "[INVALID_EMAIL]",
		"user@":             "[INVALID_EMAIL]",
		"user@nodot":        "[INVALID_EMAIL]",
		"":                  "[INVALID_EMAIL]",
	}
	for input, expected := range cases {
		if got := SanitizeEmail(input); got != expected {
			t.Fatalf("SanitizeEmail(%q) = %q, want %q", input, got, expected)
		}
	}
}

func TestLogErrorNeverPanics(t *testing.T) {
	// Self-referential extra plus a nil error must not panic or loop.
	extra := map[string]any{"password": "x"}
	extra["self"] = extra
	LogError(nil, "test", extra)
	LogAuthError(errors.New("bad credentials for test@example.com"), "test@example.com")
	LogAuthError(nil, "")
}
