package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"tillpoint.org/internal/audit"
)

// AuditSink appends audit entries into the security_audit table. The table
// is append-only by convention; the application never updates or deletes
// rows.
type AuditSink struct {
	db *sql.DB
}

var _ audit.Sink = (*AuditSink)(nil)

// Audit returns the audit sink backed by the shared pool.
func (s *Store) Audit() *AuditSink {
	return &AuditSink{db: s.db}
}

// Append writes one entry in a single insert, so each entry is durable and
// atomic on its own. Ordering between concurrent appends is not guaranteed.
func (s *AuditSink) Append(ctx context.Context, entry *audit.Entry) error {
	var detail any
	if len(entry.Detail) > 0 {
		data, err := json.Marshal(entry.Detail)
		if err != nil {
			return err
		}
		detail = data
	}
	_, err := s.db.ExecContext(ctx, `
		insert into security_audit (id, actor, action, outcome, ip, occurred_at, detail)
		values ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.Actor, entry.Action, entry.Outcome, entry.IP, entry.OccurredAt, detail)
	return err
}

// RecentEntries returns the newest entries for the admin review endpoint.
func (s *AuditSink) RecentEntries(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, actor, action, outcome, ip, occurred_at, detail
		from security_audit
		order by occurred_at desc
		limit $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			entry      audit.Entry
			occurredAt time.Time
			detail     []byte
		)
		if err := rows.Scan(&entry.ID, &entry.Actor, &entry.Action, &entry.Outcome,
			&entry.IP, &occurredAt, &detail); err != nil {
			return nil, err
		}
		entry.OccurredAt = occurredAt
		if len(detail) > 0 {
			_ = json.Unmarshal(detail, &entry.Detail)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
