package event

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the persistence interface for the interval-event log.
// This abstraction keeps the domain Interval type separate from the row
// shape and enables unit testing without database dependencies.
type Repository interface {
	// Insert persists a new interval.
	Insert(ctx context.Context, iv *Interval) error

	// SetEnd closes an interval by setting its end timestamp.
	// Returns ErrIntervalNotFound if the interval does not exist and
	// ErrIntervalClosed if it already has an end.
	SetEnd(ctx context.Context, id string, end time.Time) error

	// Latest returns the interval with the greatest start for the key,
	// open or closed. Returns ErrIntervalNotFound if none exists.
	Latest(ctx context.Context, subjectID, propertyKey string) (*Interval, error)

	// Window returns all intervals whose [start, end) intersects
	// [since, until), ordered by start ascending. An open interval is
	// included when its start is before until.
	Window(ctx context.Context, subjectID, propertyKey string, since, until time.Time) ([]Interval, error)
}

// SQLiteRepository implements Repository using SQLite.
//
// Timestamps are stored as unix milliseconds so range comparisons and
// ordering are exact. An open interval has a NULL end_at column.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed interval repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Insert persists a new interval.
func (r *SQLiteRepository) Insert(ctx context.Context, iv *Interval) error {
	if iv.End != nil && iv.End.Before(iv.Start) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidInterval, iv.End, iv.Start)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO events (id, subject_id, property_key, value, start_at, end_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		iv.ID,
		iv.SubjectID,
		iv.PropertyKey,
		iv.Value,
		toMillis(iv.Start),
		nullableMillis(iv.End),
	)
	if err != nil {
		return fmt.Errorf("inserting interval: %w", err)
	}
	return nil
}

// SetEnd closes an interval by setting its end timestamp.
func (r *SQLiteRepository) SetEnd(ctx context.Context, id string, end time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE events SET end_at = ? WHERE id = ? AND end_at IS NULL",
		toMillis(end), id)
	if err != nil {
		return fmt.Errorf("closing interval: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish "no such row" from "already closed".
		var count int
		if err := r.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM events WHERE id = ?", id).Scan(&count); err != nil {
			return fmt.Errorf("checking interval exists: %w", err)
		}
		if count == 0 {
			return ErrIntervalNotFound
		}
		return ErrIntervalClosed
	}
	return nil
}

// Latest returns the interval with the greatest start for the key.
func (r *SQLiteRepository) Latest(ctx context.Context, subjectID, propertyKey string) (*Interval, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, subject_id, property_key, value, start_at, end_at
		FROM events
		WHERE subject_id = ? AND property_key = ?
		ORDER BY start_at DESC
		LIMIT 1`,
		subjectID, propertyKey)

	iv, err := scanInterval(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIntervalNotFound
		}
		return nil, fmt.Errorf("querying latest interval: %w", err)
	}
	return iv, nil
}

// Window returns all intervals intersecting [since, until), start ascending.
func (r *SQLiteRepository) Window(ctx context.Context, subjectID, propertyKey string, since, until time.Time) ([]Interval, error) {
	if until.Before(since) {
		return nil, fmt.Errorf("%w: until %s before since %s", ErrInvalidWindow, until, since)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, subject_id, property_key, value, start_at, end_at
		FROM events
		WHERE subject_id = ? AND property_key = ?
		  AND start_at < ?
		  AND (end_at IS NULL OR end_at > ?)
		ORDER BY start_at ASC`,
		subjectID, propertyKey, toMillis(until), toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("querying intervals: %w", err)
	}
	defer rows.Close()

	var intervals []Interval
	for rows.Next() {
		iv, err := scanInterval(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning interval: %w", err)
		}
		intervals = append(intervals, *iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating intervals: %w", err)
	}
	return intervals, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanInterval maps an events row onto the domain Interval type.
func scanInterval(scanner rowScanner) (*Interval, error) {
	var iv Interval
	var startMillis int64
	var endMillis sql.NullInt64

	err := scanner.Scan(
		&iv.ID,
		&iv.SubjectID,
		&iv.PropertyKey,
		&iv.Value,
		&startMillis,
		&endMillis,
	)
	if err != nil {
		return nil, err
	}

	iv.Start = fromMillis(startMillis)
	if endMillis.Valid {
		end := fromMillis(endMillis.Int64)
		iv.End = &end
	}
	return &iv, nil
}

// toMillis converts a time to unix milliseconds (UTC).
func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// fromMillis converts unix milliseconds back to a UTC time.
func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// nullableMillis returns a sql.NullInt64 for an optional timestamp.
func nullableMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}
