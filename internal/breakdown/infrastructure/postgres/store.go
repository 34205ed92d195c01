package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	breakdown "fleetops-cloud/internal/breakdown/domain"
)

const defaultTable = "breakdown_records"

// Store is a Postgres implementation of the record store. The backing
// table carries one row per (route_number, occurred_on) pair.
type Store struct {
	db    *sql.DB
	table string
}

// Option configures the store.
type Option func(*Store)

// WithTable overrides the default table name.
func WithTable(table string) Option {
	return func(s *Store) {
		if table != "" {
			s.table = table
		}
	}
}

// NewStore constructs a store with the default table name.
func NewStore(db *sql.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("postgres store: nil db")
	}
	store := &Store{db: db, table: defaultTable}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// Upsert writes one record, replacing any previous version of the same
// (route_number, occurred_on) pair.
func (s *Store) Upsert(ctx context.Context, record breakdown.Record) error {
	occurredOn, err := time.Parse(time.RFC3339, record.OccurredOn)
	if err != nil {
		return fmt.Errorf("postgres store: invalid occurredOn %q: %w", record.OccurredOn, err)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	route_number,
	occurred_on,
	priority,
	description,
	reported_by,
	reason,
	delay_minutes,
	received_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8
)
ON CONFLICT (route_number, occurred_on)
DO UPDATE SET
	priority = EXCLUDED.priority,
	description = EXCLUDED.description,
	reported_by = EXCLUDED.reported_by,
	reason = EXCLUDED.reason,
	delay_minutes = EXCLUDED.delay_minutes,
	received_at = EXCLUDED.received_at`, s.table)

	if _, err := s.db.ExecContext(
		ctx,
		query,
		record.RouteNumber,
		occurredOn,
		record.Priority,
		record.Description,
		record.ReportedBy,
		record.Reason,
		record.DelayMinutes,
		record.ReceivedAt,
	); err != nil {
		return fmt.Errorf("%w: %v", breakdown.ErrStorageUnavailable, err)
	}
	return nil
}

// ListByDay returns the records whose occurrence time falls on the
// given UTC day (YYYY-MM-DD), ordered by occurrence time.
func (s *Store) ListByDay(ctx context.Context, day string) ([]breakdown.Record, error) {
	dayStart, err := time.Parse("2006-01-02", day)
	if err != nil {
		return nil, fmt.Errorf("postgres store: invalid day %q: %w", day, err)
	}
	dayEnd := dayStart.Add(24 * time.Hour)

	query := fmt.Sprintf(`
SELECT route_number, occurred_on, priority, description, reported_by, reason, delay_minutes, received_at
FROM %s
WHERE occurred_on >= $1 AND occurred_on < $2
ORDER BY occurred_on`, s.table)

	rows, err := s.db.QueryContext(ctx, query, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", breakdown.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var records []breakdown.Record
	for rows.Next() {
		var (
			record     breakdown.Record
			occurredOn time.Time
			receivedAt time.Time
		)
		if err := rows.Scan(
			&record.RouteNumber,
			&occurredOn,
			&record.Priority,
			&record.Description,
			&record.ReportedBy,
			&record.Reason,
			&record.DelayMinutes,
			&receivedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: %v", breakdown.ErrStorageUnavailable, err)
		}
		record.OccurredOn = occurredOn.UTC().Format(time.RFC3339)
		record.ReceivedAt = receivedAt.UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", breakdown.ErrStorageUnavailable, err)
	}
	return records, nil
}
