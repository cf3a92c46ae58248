package presence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the persistence interface for stays.
type Repository interface {
	// Create persists a new stay.
	Create(ctx context.Context, stay *Stay) error

	// Update persists changes to an existing stay. Returns ErrStayNotFound
	// if the stay does not exist.
	Update(ctx context.Context, stay *Stay) error

	// Current returns the user's open stay (arrival set, no departure).
	// Returns ErrStayNotFound if the user is not home.
	Current(ctx context.Context, userID string) (*Stay, error)

	// FindUpcoming returns the most recent upcoming stay for the user,
	// preferring a stay already bound to them over an unclaimed one.
	// Returns ErrStayNotFound when nothing is expected.
	FindUpcoming(ctx context.Context, userID string) (*Stay, error)

	// FindUnclaimedETA returns the most recent unclaimed upcoming stay with
	// an ETA, created at or after since. Returns ErrStayNotFound when none
	// exists.
	FindUnclaimedETA(ctx context.Context, since time.Time) (*Stay, error)

	// History returns the user's stays with an arrival inside
	// [since, until), most recent first.
	History(ctx context.Context, userID string, since, until time.Time) ([]Stay, error)
}

// SQLiteRepository implements Repository using SQLite. Timestamps are
// stored as unix milliseconds; unset ones are NULL.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed stay repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create persists a new stay.
func (r *SQLiteRepository) Create(ctx context.Context, stay *Stay) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stays (id, user_id, arrival, departure, eta, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		stay.ID,
		nullableString(stay.UserID),
		nullableMillis(stay.Arrival),
		nullableMillis(stay.Departure),
		nullableMillis(stay.ETA),
		toMillis(stay.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting stay: %w", err)
	}
	return nil
}

// Update persists changes to an existing stay.
func (r *SQLiteRepository) Update(ctx context.Context, stay *Stay) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE stays
		SET user_id = ?, arrival = ?, departure = ?, eta = ?
		WHERE id = ?`,
		nullableString(stay.UserID),
		nullableMillis(stay.Arrival),
		nullableMillis(stay.Departure),
		nullableMillis(stay.ETA),
		stay.ID,
	)
	if err != nil {
		return fmt.Errorf("updating stay: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrStayNotFound
	}
	return nil
}

// Current returns the user's open stay.
func (r *SQLiteRepository) Current(ctx context.Context, userID string) (*Stay, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, arrival, departure, eta, created_at
		FROM stays
		WHERE user_id = ? AND arrival IS NOT NULL AND departure IS NULL
		ORDER BY arrival DESC
		LIMIT 1`,
		userID)

	stay, err := scanStay(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStayNotFound
		}
		return nil, fmt.Errorf("querying current stay: %w", err)
	}
	return stay, nil
}

// FindUpcoming returns the most recent upcoming stay for the user. A stay
// bound to the user is preferred over an unclaimed one.
func (r *SQLiteRepository) FindUpcoming(ctx context.Context, userID string) (*Stay, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, arrival, departure, eta, created_at
		FROM stays
		WHERE arrival IS NULL AND departure IS NULL
		  AND (user_id = ? OR user_id IS NULL)
		ORDER BY (user_id IS NULL) ASC, created_at DESC
		LIMIT 1`,
		userID)

	stay, err := scanStay(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStayNotFound
		}
		return nil, fmt.Errorf("querying upcoming stay: %w", err)
	}
	return stay, nil
}

// FindUnclaimedETA returns the most recent unclaimed upcoming stay with an
// ETA created at or after since.
func (r *SQLiteRepository) FindUnclaimedETA(ctx context.Context, since time.Time) (*Stay, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, arrival, departure, eta, created_at
		FROM stays
		WHERE user_id IS NULL AND eta IS NOT NULL
		  AND arrival IS NULL AND departure IS NULL
		  AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT 1`,
		toMillis(since))

	stay, err := scanStay(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStayNotFound
		}
		return nil, fmt.Errorf("querying unclaimed stay: %w", err)
	}
	return stay, nil
}

// History returns the user's stays with an arrival inside [since, until).
func (r *SQLiteRepository) History(ctx context.Context, userID string, since, until time.Time) ([]Stay, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, arrival, departure, eta, created_at
		FROM stays
		WHERE user_id = ? AND arrival >= ? AND arrival < ?
		ORDER BY arrival DESC`,
		userID, toMillis(since), toMillis(until))
	if err != nil {
		return nil, fmt.Errorf("querying stay history: %w", err)
	}
	defer rows.Close()

	var stays []Stay
	for rows.Next() {
		stay, err := scanStay(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning stay: %w", err)
		}
		stays = append(stays, *stay)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stays: %w", err)
	}
	return stays, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanStay maps a stays row onto the domain Stay type.
func scanStay(scanner rowScanner) (*Stay, error) {
	var stay Stay
	var userID sql.NullString
	var arrival, departure, eta sql.NullInt64
	var createdAt int64

	err := scanner.Scan(
		&stay.ID,
		&userID,
		&arrival,
		&departure,
		&eta,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		stay.UserID = &userID.String
	}
	stay.Arrival = optionalTime(arrival)
	stay.Departure = optionalTime(departure)
	stay.ETA = optionalTime(eta)
	stay.CreatedAt = fromMillis(createdAt)
	return &stay, nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullableMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func optionalTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}
