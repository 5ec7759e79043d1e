// Package pg persists accounts and the security audit trail in Postgres.
package pg

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store wraps the shared connection pool.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres through the pgx stdlib driver.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests.
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing handle. Used by tests with sqlmock.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Ping checks connectivity for the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureSchema creates the subsystem's tables when they do not exist yet.
// The surrounding CRUD application owns the rest of the schema.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`create table if not exists accounts (
			id text primary key,
			email text not null unique,
			password_hash text not null,
			role text not null,
			status text not null,
			email_verified boolean not null default false,
			failed_attempts integer not null default 0,
			locked_until timestamptz,
			created_at timestamptz not null default now(),
			updated_at timestamptz not null default now()
		)`,
		`create table if not exists security_audit (
			id text primary key,
			actor text not null,
			action text not null,
			outcome text not null,
			ip text not null,
			occurred_at timestamptz not null,
			detail jsonb
		)`,
		`create index if not exists security_audit_occurred_at_idx
			on security_audit (occurred_at)`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
