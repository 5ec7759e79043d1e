package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tillpoint.org/internal/audit"
	"tillpoint.org/internal/auth"
	"tillpoint.org/internal/ids"
	"tillpoint.org/internal/lockout"
)

const testSecret = "unit-test-secret-not-for-production"

// memStore is an in-memory auth.Store for handler tests.
type memStore struct {
	mu   sync.Mutex
	byID map[string]*auth.Account
}

func newMemStore() *memStore {
	return &memStore{byID: make(map[string]*auth.Account)}
}

func (s *memStore) Create(_ context.Context, a *auth.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(a.Email)
	for _, existing := range s.byID {
		if existing.Email == email {
			return auth.ErrAlreadyExists
		}
	}
	if a.ID == "" {
		a.ID = ids.New()
	}
	a.Email = email
	cp := *a
	s.byID[a.ID] = &cp
	return nil
}

func (s *memStore) Find(_ context.Context, id string) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memStore) FindByEmail(_ context.Context, email string) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, a := range s.byID {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *memStore) UpdateStatus(_ context.Context, id string, from, to auth.Status) error {
	if !auth.CanTransition(from, to) {
		return auth.ErrInvalidTransition
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok || a.Status != from {
		return auth.ErrNotFound
	}
	a.Status = to
	return nil
}

func (s *memStore) SetEmailVerified(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return auth.ErrNotFound
	}
	a.EmailVerified = true
	return nil
}

func (s *memStore) RecordFailedAttempt(_ context.Context, id string, count int, lockedUntil *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return auth.ErrNotFound
	}
	a.FailedAttempts = count
	a.LockedUntil = lockedUntil
	return nil
}

func (s *memStore) ResetFailedAttempts(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return auth.ErrNotFound
	}
	a.FailedAttempts = 0
	a.LockedUntil = nil
	return nil
}

// captureSink records audit entries for assertions.
type captureSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *captureSink) Append(_ context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *captureSink) byAction(action string) []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Entry
	for _, e := range s.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type testAPI struct {
	api    *API
	h      http.Handler
	store  *memStore
	guard  *lockout.Guard
	sink   *captureSink
	tokens *auth.TokenManager
}

func newTestAPI(t *testing.T, guardOpts ...lockout.Option) *testAPI {
	t.Helper()
	tokens, err := auth.NewTokenManager(testSecret, "tillpoint-test", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	guard := lockout.NewGuard(guardOpts...)
	t.Cleanup(guard.Close)
	store := newMemStore()
	sink := &captureSink{}

	api := New(Options{
		Accounts: store,
		Tokens:   tokens,
		Guard:    guard,
		Recorder: audit.NewRecorder(sink),
		Version:  "test",
	})
	api.SetReady(true)
	return &testAPI{
		api:    api,
		h:      api.Handler(),
		store:  store,
		guard:  guard,
		sink:   sink,
		tokens: tokens,
	}
}

// seedAccount inserts an account and returns it with a password hash for
// plaintext "correct-horse".
func (ta *testAPI) seedAccount(t *testing.T, role auth.Role, status auth.Status) *auth.Account {
	t.Helper()
	hash, err := auth.HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	acct := &auth.Account{
		Email:         string(role) + "@example.com",
		PasswordHash:  hash,
		Role:          role,
		Status:        status,
		EmailVerified: status != auth.StatusPending,
	}
	if err := ta.store.Create(context.Background(), acct); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return acct
}

func (ta *testAPI) tokenFor(t *testing.T, acct *auth.Account) string {
	t.Helper()
	token, _, err := ta.tokens.Issue(acct)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func (ta *testAPI) request(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ta.h.ServeHTTP(w, r)
	return w
}
