package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tillpoint.org/internal/auth"
	"tillpoint.org/internal/ids"
)

// AccountStore implements auth.Store on Postgres.
type AccountStore struct {
	db *sql.DB
}

var _ auth.Store = (*AccountStore)(nil)

// Accounts returns the account store backed by the shared pool.
func (s *Store) Accounts() *AccountStore {
	return &AccountStore{db: s.db}
}

const accountColumns = `id, email, password_hash, role, status, email_verified, failed_attempts, locked_until, created_at, updated_at`

func (s *AccountStore) Create(ctx context.Context, a *auth.Account) error {
	if a == nil || strings.TrimSpace(a.Email) == "" {
		return fmt.Errorf("%w: email is required", auth.ErrInvalidInput)
	}
	if a.ID == "" {
		a.ID = ids.New()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		insert into accounts (id, email, password_hash, role, status, email_verified,
			failed_attempts, locked_until, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, strings.ToLower(a.Email), a.PasswordHash, string(a.Role), string(a.Status),
		a.EmailVerified, a.FailedAttempts, a.LockedUntil, a.CreatedAt, a.UpdatedAt)
	if err != nil && strings.Contains(err.Error(), "unique") {
		return auth.ErrAlreadyExists
	}
	return err
}

func (s *AccountStore) Find(ctx context.Context, id string) (*auth.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where id = $1`, id)
	return scanAccount(row)
}

func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where email = $1`,
		strings.ToLower(strings.TrimSpace(email)))
	return scanAccount(row)
}

// UpdateStatus applies the transition only when the stored status still
// matches from. A zero-row update means a concurrent change won.
func (s *AccountStore) UpdateStatus(ctx context.Context, id string, from, to auth.Status) error {
	if !auth.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", auth.ErrInvalidTransition, from, to)
	}
	res, err := s.db.ExecContext(ctx, `
		update accounts set status = $1, updated_at = now()
		where id = $2 and status = $3`,
		string(to), id, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *AccountStore) SetEmailVerified(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update accounts set email_verified = true, updated_at = now()
		where id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *AccountStore) RecordFailedAttempt(ctx context.Context, id string, count int, lockedUntil *time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		update accounts set failed_attempts = $1, locked_until = $2, updated_at = now()
		where id = $3`, count, lockedUntil, id)
	return err
}

func (s *AccountStore) ResetFailedAttempts(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		update accounts set failed_attempts = 0, locked_until = null, updated_at = now()
		where id = $1`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*auth.Account, error) {
	var (
		a           auth.Account
		role        string
		status      string
		lockedUntil sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &role, &status, &a.EmailVerified,
		&a.FailedAttempts, &lockedUntil, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Role = auth.Role(role)
	a.Status = auth.Status(status)
	if lockedUntil.Valid {
		t := lockedUntil.Time
		a.LockedUntil = &t
	}
	return &a, nil
}
