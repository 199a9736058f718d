package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/solvelog/internal/persist"
	"github.com/roach88/solvelog/internal/record"
)

var _ persist.Storage = (*Store)(nil)

// Get returns the record stored under identity, or persist.ErrNotFound.
func (s *Store) Get(ctx context.Context, identity string) (*record.Record, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT record FROM records WHERE identity = ?
	`, identity).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persist.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}

	rec, err := record.Decode([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", identity, err)
	}
	return rec, nil
}

// Put replaces the record stored under identity.
// The listing columns are derived from rec in the same statement.
func (s *Store) Put(ctx context.Context, identity string, rec *record.Record) error {
	data, err := record.Marshal(rec)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}

	var lastEventAt sql.NullInt64
	if ts, ok := rec.LastEventAt(); ok {
		lastEventAt = sql.NullInt64{Int64: ts, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records
		(identity, record, name, version, url, status, event_count, last_event_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			record = excluded.record,
			name = excluded.name,
			version = excluded.version,
			url = excluded.url,
			status = excluded.status,
			event_count = excluded.event_count,
			last_event_at = excluded.last_event_at,
			revision = records.revision + 1
	`,
		identity,
		string(data),
		record.HumanName(rec),
		rec.Version,
		rec.URL,
		rec.Status().String(),
		len(rec.Events),
		lastEventAt,
	)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

// Delete removes the record stored under identity, or returns
// persist.ErrNotFound.
func (s *Store) Delete(ctx context.Context, identity string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE identity = ?`, identity)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n == 0 {
		return persist.ErrNotFound
	}
	return nil
}

// DeleteAll removes every stored record and reports how many there were.
func (s *Store) DeleteAll(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records`)
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	return int(n), nil
}

// List returns every stored identity in binary order.
//
// Returns an empty slice (not nil) for an empty store.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity FROM records
		ORDER BY identity COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return ids, nil
}

// Summaries returns the listing view of every stored record, in identity
// order, without decoding the record documents.
func (s *Store) Summaries(ctx context.Context) ([]record.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity, name, version, status, event_count, last_event_at, revision
		FROM records
		ORDER BY identity COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	summaries := []record.Summary{}
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return summaries, nil
}

// Revision returns how many times identity has been written.
func (s *Store) Revision(ctx context.Context, identity string) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx, `
		SELECT revision FROM records WHERE identity = ?
	`, identity).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, persist.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get revision: %w", err)
	}
	return rev, nil
}

func scanSummary(rows *sql.Rows) (record.Summary, error) {
	var (
		sum         record.Summary
		status      string
		lastEventAt sql.NullInt64
	)
	if err := rows.Scan(&sum.Identity, &sum.Name, &sum.Version, &status, &sum.Events, &lastEventAt, &sum.Revision); err != nil {
		return record.Summary{}, fmt.Errorf("scan summary: %w", err)
	}
	st, err := record.ParseStatus(status)
	if err != nil {
		return record.Summary{}, fmt.Errorf("scan summary %s: %w", sum.Identity, err)
	}
	sum.Status = st
	if lastEventAt.Valid {
		sum.LastEventAt = lastEventAt.Int64
	}
	return sum, nil
}
