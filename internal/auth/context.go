package auth

import "context"

type sessionContextKey struct{}
type tokenContextKey struct{}

// ContextWithSession attaches the verified session claims to the context.
func ContextWithSession(ctx context.Context, claims *SessionClaims) context.Context {
	if claims == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionContextKey{}, claims)
}

// SessionFromContext extracts the verified session claims from the context.
func SessionFromContext(ctx context.Context) (*SessionClaims, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(sessionContextKey{}).(*SessionClaims)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// ContextWithToken stores the raw session token inside the context.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the raw token if it was previously attached.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(tokenContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
