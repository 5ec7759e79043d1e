package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tillpoint.org/internal/ids"
)

// SessionClaims is the strongly typed session token payload. Every field is
// required; a token that parses but lacks one is malformed, not merely
// invalid, and callers surface that distinction as a 400 rather than a 401.
type SessionClaims struct {
	Role          Role   `json:"role"`
	Status        Status `json:"status"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

// AccountID returns the token subject.
func (c *SessionClaims) AccountID() string {
	return c.Subject
}

// TokenManager signs and verifies session tokens with HS256. It is owned by
// the gate and the session watcher; no other component mutates tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a TokenManager from explicit configuration.
func NewTokenManager(secret, issuer string, ttl time.Duration) (*TokenManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: token secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token ttl must be greater than zero")
	}
	if issuer == "" {
		issuer = "tillpoint"
	}
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock overrides the time source. Test use only.
func (m *TokenManager) WithClock(fn func() time.Time) *TokenManager {
	if fn != nil {
		m.now = fn
	}
	return m
}

// TTL returns the configured session lifetime.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a session token for the account.
func (m *TokenManager) Issue(acct *Account) (string, time.Time, error) {
	if acct == nil || acct.ID == "" {
		return "", time.Time{}, fmt.Errorf("%w: account is required", ErrInvalidInput)
	}
	now := m.now().UTC()
	expiresAt := now.Add(m.ttl)
	claims := SessionClaims{
		Role:          acct.Role,
		Status:        acct.Status,
		EmailVerified: acct.EmailVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   acct.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        ids.New(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies the signature and timestamps, then checks structural
// completeness. Returns ErrInvalidToken for signature/expiry failures and
// ErrMalformedToken when a well-signed token lacks a required field.
func (m *TokenManager) Parse(token string) (*SessionClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithIssuer(m.issuer))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := validateSessionClaims(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func validateSessionClaims(claims *SessionClaims) error {
	if strings.TrimSpace(claims.Subject) == "" {
		return ErrMalformedToken
	}
	if claims.Role == "" || claims.Status == "" {
		return ErrMalformedToken
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return ErrMalformedToken
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return ErrInvalidToken
	}
	return nil
}
