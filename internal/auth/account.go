package auth

import (
	"context"
	"time"
)

// Account represents a back-office user. FailedAttempts and LockedUntil are
// persisted snapshots of the lockout guard; the guard owns the live counters.
type Account struct {
	ID             string
	Email          string
	PasswordHash   string
	Role           Role
	Status         Status
	EmailVerified  bool
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Store describes persistence operations required by the auth subsystem.
// The CRUD layer supplies the implementation; internal/store/pg is the
// production one.
type Store interface {
	Create(ctx context.Context, a *Account) error
	Find(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// UpdateStatus applies a status change only when the stored status still
	// equals from, so concurrent administrative actions cannot skip an edge.
	UpdateStatus(ctx context.Context, id string, from, to Status) error

	SetEmailVerified(ctx context.Context, id string) error
	RecordFailedAttempt(ctx context.Context, id string, count int, lockedUntil *time.Time) error
	ResetFailedAttempts(ctx context.Context, id string) error
}
