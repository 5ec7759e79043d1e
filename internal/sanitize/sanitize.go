// Package sanitize keeps secrets out of log sinks and client-visible error
// payloads. Everything security-relevant that leaves the process goes through
// Sanitize or Redact first.
package sanitize

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
)

const (
	redactedMark      = "[REDACTED]"
	redactedEmailMark = "[REDACTED_EMAIL]"
	redactedIPMark    = "[REDACTED_IP]"
	redactedTokenMark = "[REDACTED_TOKEN]"
	circularMark      = "[circular]"
	invalidEmailMark  = "[INVALID_EMAIL]"

	unknownMessage = "Unknown error occurred"
	unknownType    = "UnknownError"
)

// Sanitized is the only error shape allowed to reach a sink or a client.
type Sanitized struct {
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Sanitized bool      `json:"sanitized"`
}

// Coder is implemented by errors that carry a stable machine-readable code.
type Coder interface {
	ErrorCode() string
}

// Redaction patterns, applied to string content in this order.
var (
	emailPattern     = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	ipv4Pattern      = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	bearerPattern    = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._\-]+`)
	jwtPattern       = regexp.MustCompile(`\bey[A-Za-z0-9_\-]{6,}\.[A-Za-z0-9_\-]{6,}\.[A-Za-z0-9_\-]+\b`)
	longTokenPattern = regexp.MustCompile(`\b[A-Za-z0-9]{24,}\b`)
	kvPattern        = regexp.MustCompile(`(?i)\b([A-Za-z0-9_\-]*(?:password|passwd|token|secret|credential|authorization|cookie|session|csrf)[A-Za-z0-9_\-]*|[A-Za-z0-9_\-]*[_\-]key|api[_\-]?key|key)\s*[:=]\s*\S+`)
)

// denylistWords flag a field name as sensitive regardless of its value.
var denylistWords = []string{
	"password", "passwd", "token", "secret", "credential",
	"authorization", "cookie", "session", "csrf", "apikey",
}

// DenylistedKey reports whether a field name must have its value redacted.
// Matching is case-insensitive and includes *_key / *_token style suffixes.
func DenylistedKey(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	if name == "key" {
		return true
	}
	for _, word := range denylistWords {
		if strings.Contains(name, word) {
			return true
		}
	}
	return strings.HasSuffix(name, "_key") || strings.HasSuffix(name, "-key")
}

// RedactString applies the ordered pattern redaction to a message.
func RedactString(s string) string {
	s = emailPattern.ReplaceAllString(s, redactedEmailMark)
	s = ipv4Pattern.ReplaceAllString(s, redactedIPMark)
	s = bearerPattern.ReplaceAllString(s, redactedTokenMark)
	s = jwtPattern.ReplaceAllString(s, redactedTokenMark)
	s = longTokenPattern.ReplaceAllString(s, redactedTokenMark)
	s = kvPattern.ReplaceAllString(s, "$1: "+redactedMark)
	return s
}

// looksLikeSecret reports whether a whole value is token-shaped even under an
// innocuous key name.
func looksLikeSecret(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if jwtPattern.MatchString(s) || bearerPattern.MatchString(s) {
		return true
	}
	return longTokenPattern.FindString(s) == s
}

// Redact walks a value recursively and returns a copy safe for logging.
// Field names on the denylist are redacted regardless of value; string values
// that look like tokens are redacted regardless of key. Self-referential
// structures terminate with a circular marker.
func Redact(v any) any {
	return redactAny(v, map[uintptr]struct{}{})
}

func redactAny(v any, seen map[uintptr]struct{}) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if looksLikeSecret(t) {
			return redactedTokenMark
		}
		return RedactString(t)
	case error:
		return RedactString(t.Error())
	case bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, time.Time, time.Duration:
		return t
	}
	return redactReflect(reflect.ValueOf(v), seen)
}

func redactReflect(rv reflect.Value, seen map[uintptr]struct{}) any {
	if !rv.IsValid() {
		return nil
	}
	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return redactAny(rv.Elem().Interface(), seen)
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		ptr := rv.Pointer()
		if _, ok := seen[ptr]; ok {
			return circularMark
		}
		seen[ptr] = struct{}{}
		out := redactReflect(rv.Elem(), seen)
		delete(seen, ptr)
		return out
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		ptr := rv.Pointer()
		if _, ok := seen[ptr]; ok {
			return circularMark
		}
		seen[ptr] = struct{}{}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := fmt.Sprint(iter.Key().Interface())
			if DenylistedKey(key) {
				out[key] = redactedMark
				continue
			}
			out[key] = redactAny(iter.Value().Interface(), seen)
		}
		delete(seen, ptr)
		return out
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		ptr := rv.Pointer()
		if _, ok := seen[ptr]; ok {
			return circularMark
		}
		seen[ptr] = struct{}{}
		out := redactSequence(rv, seen)
		delete(seen, ptr)
		return out
	case reflect.Array:
		return redactSequence(rv, seen)
	case reflect.Struct:
		rt := rv.Type()
		out := make(map[string]any, rt.NumField())
		for i := 0; i < rt.NumField(); i++ {
			field := rt.Field(i)
			if !field.IsExported() {
				continue
			}
			name := jsonFieldName(field)
			if DenylistedKey(name) {
				out[name] = redactedMark
				continue
			}
			out[name] = redactAny(rv.Field(i).Interface(), seen)
		}
		return out
	case reflect.String:
		return redactAny(rv.String(), seen)
	default:
		if rv.CanInterface() {
			return rv.Interface()
		}
		return nil
	}
}

func redactSequence(rv reflect.Value, seen map[uintptr]struct{}) []any {
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = redactAny(rv.Index(i).Interface(), seen)
	}
	return out
}

func jsonFieldName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" || tag == "-" {
		return field.Name
	}
	if i := strings.IndexByte(tag, ','); i >= 0 {
		tag = tag[:i]
	}
	if tag == "" {
		return field.Name
	}
	return tag
}

// Sanitize converts any value into a Sanitized error. Nil and unrecognized
// inputs yield the fixed unknown-error shape.
func Sanitize(v any) Sanitized {
	out := Sanitized{
		Message:   unknownMessage,
		Type:      unknownType,
		Timestamp: time.Now().UTC(),
		Sanitized: true,
	}
	switch t := v.(type) {
	case nil:
		return out
	case error:
		out.Message = RedactString(t.Error())
		out.Type = errorTypeName(t)
		if coder, ok := t.(Coder); ok {
			out.Code = coder.ErrorCode()
		}
		return out
	case string:
		if strings.TrimSpace(t) == "" {
			return out
		}
		out.Message = RedactString(t)
		out.Type = "Error"
		return out
	case Sanitized:
		// Already-sanitized input passes through the same redaction again.
		t.Message = RedactString(t.Message)
		t.Sanitized = true
		return t
	}

	redacted := Redact(v)
	if redacted == nil {
		return out
	}
	data, err := json.Marshal(redacted)
	if err != nil {
		return out
	}
	out.Message = string(data)
	out.Type = typeName(v)
	return out
}

func errorTypeName(err error) string {
	name := typeName(err)
	if name == "errorString" || name == "" {
		return "Error"
	}
	return name
}

func typeName(v any) string {
	rt := reflect.TypeOf(v)
	for rt != nil && rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt == nil {
		return unknownType
	}
	if rt.Name() != "" {
		return rt.Name()
	}
	return rt.Kind().String()
}

// SanitizeEmail masks an address for display, keeping the first two
// characters of the local part when it is longer than two characters.
func SanitizeEmail(addr string) string {
	addr = strings.TrimSpace(addr)
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 || at == len(addr)-1 {
		return invalidEmailMark
	}
	local, domain := addr[:at], addr[at+1:]
	if strings.ContainsAny(domain, " \t") || !strings.Contains(domain, ".") {
		return invalidEmailMark
	}
	if len(local) > 2 {
		return local[:2] + "***@" + domain
	}
	return "***@" + domain
}
