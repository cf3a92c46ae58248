package event

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupEventTestDB creates an in-memory SQLite database with the events table.
func setupEventTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE events (
			id TEXT PRIMARY KEY,
			subject_id TEXT NOT NULL,
			property_key TEXT NOT NULL,
			value REAL NOT NULL DEFAULT 0,
			start_at INTEGER NOT NULL,
			end_at INTEGER,
			CHECK (end_at IS NULL OR end_at >= start_at)
		) STRICT;
		CREATE INDEX idx_events_key_start ON events(subject_id, property_key, start_at DESC);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(NewSQLiteRepository(setupEventTestDB(t)))
}

func TestAppendThenLatest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	appended, err := store.Append(ctx, "device1", "temperature", 19.5, now)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	latest, err := store.Latest(ctx, "device1", "temperature")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.ID != appended.ID {
		t.Errorf("Latest().ID = %q, want %q", latest.ID, appended.ID)
	}
	if latest.Value != 19.5 {
		t.Errorf("Latest().Value = %v, want 19.5", latest.Value)
	}
	if !latest.IsOpen() {
		t.Error("Latest() is closed, want open")
	}
	if !latest.Start.Equal(now) {
		t.Errorf("Latest().Start = %s, want %s", latest.Start, now)
	}
}

func TestLatestNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Latest(context.Background(), "device1", "on")
	if !errors.Is(err, ErrIntervalNotFound) {
		t.Errorf("Latest() error = %v, want ErrIntervalNotFound", err)
	}
}

// TestQueryWindow covers the append/close/query scenario: one interval
// [10:00, 10:05) queried over [09:00, 11:00).
func TestQueryWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	iv, err := store.Append(ctx, "device1", "on", 1, day.Add(10*time.Hour))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.Close(ctx, iv, day.Add(10*time.Hour+5*time.Minute)); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got, err := store.Query(ctx, "device1", "on", day.Add(9*time.Hour), day.Add(11*time.Hour))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Query() returned %d intervals, want 1", len(got))
	}
	if !got[0].Start.Equal(day.Add(10 * time.Hour)) {
		t.Errorf("Start = %s, want 10:00", got[0].Start)
	}
	if got[0].End == nil || !got[0].End.Equal(day.Add(10*time.Hour+5*time.Minute)) {
		t.Errorf("End = %v, want 10:05", got[0].End)
	}
}

func TestQueryExcludesNonIntersecting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// Closed before the window starts.
	early, err := store.Append(ctx, "device1", "on", 1, day.Add(1*time.Hour))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.Close(ctx, early, day.Add(2*time.Hour)); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Starts after the window ends.
	if _, err := store.Append(ctx, "device1", "on", 1, day.Add(20*time.Hour)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	// Open interval starting inside the window.
	if _, err := store.Append(ctx, "device2", "on", 1, day.Add(10*time.Hour)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := store.Query(ctx, "device1", "on", day.Add(5*time.Hour), day.Add(15*time.Hour))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Query() returned %d intervals, want 0", len(got))
	}

	got, err = store.Query(ctx, "device2", "on", day.Add(5*time.Hour), day.Add(15*time.Hour))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("open interval not included, got %d intervals, want 1", len(got))
	}
}

func TestCloseAlreadyClosed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	iv, err := store.Append(ctx, "device1", "on", 1, now)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.Close(ctx, iv, now.Add(time.Minute)); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := store.Close(ctx, iv, now.Add(2*time.Minute)); !errors.Is(err, ErrIntervalClosed) {
		t.Errorf("second Close() error = %v, want ErrIntervalClosed", err)
	}
}

// TestSetBoolIdempotent verifies that setting true twice produces exactly
// one open interval.
func TestSetBoolIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.SetBool(ctx, "device1", "on", true, now); err != nil {
		t.Fatalf("SetBool(true) error = %v", err)
	}
	if err := store.SetBool(ctx, "device1", "on", true, now.Add(time.Minute)); err != nil {
		t.Fatalf("second SetBool(true) error = %v", err)
	}

	got, err := store.Query(ctx, "device1", "on", now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("interval count = %d, want 1", len(got))
	}
	if !got[0].IsOpen() {
		t.Error("interval is closed, want open")
	}
}

// TestSetBoolFalseNoOp verifies that setting false with nothing open does
// not create a degenerate closed interval.
func TestSetBoolFalseNoOp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.SetBool(ctx, "device1", "on", false, now); err != nil {
		t.Fatalf("SetBool(false) error = %v", err)
	}

	got, err := store.Query(ctx, "device1", "on", now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("interval count = %d, want 0", len(got))
	}
}

func TestSetBoolToggle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	if err := store.SetBool(ctx, "device1", "on", true, now); err != nil {
		t.Fatalf("SetBool(true) error = %v", err)
	}
	if err := store.SetBool(ctx, "device1", "on", false, now.Add(5*time.Minute)); err != nil {
		t.Fatalf("SetBool(false) error = %v", err)
	}

	on, err := store.GetBool(ctx, "device1", "on")
	if err != nil {
		t.Fatalf("GetBool() error = %v", err)
	}
	if on {
		t.Error("GetBool() = true after SetBool(false), want false")
	}

	latest, err := store.Latest(ctx, "device1", "on")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.End == nil || !latest.End.Equal(now.Add(5*time.Minute)) {
		t.Errorf("End = %v, want %s", latest.End, now.Add(5*time.Minute))
	}
}

func TestSetNumberCoalesces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		if err := store.SetNumber(ctx, "thermo", "temperature", 19.5, now.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("SetNumber() error = %v", err)
		}
	}

	got, err := store.Query(ctx, "thermo", "temperature", now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("interval count = %d, want 1 (identical values coalesced)", len(got))
	}
}

func TestSetNumberReplaceOnChange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	if err := store.SetNumber(ctx, "thermo", "temperature", 19.5, now); err != nil {
		t.Fatalf("SetNumber() error = %v", err)
	}
	if err := store.SetNumber(ctx, "thermo", "temperature", 20.0, now.Add(10*time.Minute)); err != nil {
		t.Fatalf("SetNumber() error = %v", err)
	}

	got, err := store.Query(ctx, "thermo", "temperature", now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("interval count = %d, want 2", len(got))
	}
	if got[0].End == nil || !got[0].End.Equal(now.Add(10*time.Minute)) {
		t.Errorf("first interval End = %v, want close at change time", got[0].End)
	}
	if !got[1].IsOpen() || got[1].Value != 20.0 {
		t.Errorf("second interval = %+v, want open with value 20", got[1])
	}

	value, err := store.GetNumber(ctx, "thermo", "temperature")
	if err != nil {
		t.Fatalf("GetNumber() error = %v", err)
	}
	if value != 20.0 {
		t.Errorf("GetNumber() = %v, want 20", value)
	}
}

func TestGetNumberDefault(t *testing.T) {
	store := newTestStore(t)

	value, err := store.GetNumber(context.Background(), "thermo", "temperature")
	if err != nil {
		t.Fatalf("GetNumber() error = %v", err)
	}
	if value != 0 {
		t.Errorf("GetNumber() with no history = %v, want 0", value)
	}
}

// TestNotifications verifies at-most-once notification per logical change.
func TestNotifications(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	var fired []string
	store.OnPropertyChanged(func(subjectID, propertyKey string) {
		fired = append(fired, subjectID+"/"+propertyKey)
	})

	// true, true (no-op), false: two logical changes.
	if err := store.SetBool(ctx, "device1", "on", true, now); err != nil {
		t.Fatalf("SetBool() error = %v", err)
	}
	if err := store.SetBool(ctx, "device1", "on", true, now.Add(time.Second)); err != nil {
		t.Fatalf("SetBool() error = %v", err)
	}
	if err := store.SetBool(ctx, "device1", "on", false, now.Add(time.Minute)); err != nil {
		t.Fatalf("SetBool() error = %v", err)
	}

	// Numeric change closes and appends, but is one logical change.
	if err := store.SetNumber(ctx, "device1", "level", 50, now); err != nil {
		t.Fatalf("SetNumber() error = %v", err)
	}
	if err := store.SetNumber(ctx, "device1", "level", 75, now.Add(time.Minute)); err != nil {
		t.Fatalf("SetNumber() error = %v", err)
	}
	if err := store.SetNumber(ctx, "device1", "level", 75, now.Add(2*time.Minute)); err != nil {
		t.Fatalf("SetNumber() error = %v", err)
	}

	want := []string{
		"device1/on", "device1/on",
		"device1/level", "device1/level",
	}
	if len(fired) != len(want) {
		t.Fatalf("notifications = %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Errorf("notification[%d] = %q, want %q", i, fired[i], want[i])
		}
	}
}

func TestHistoryLogsRepairs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// Two open intervals for the same key: invalid log that the
	// reconciler must repair on read.
	if _, err := store.Append(ctx, "device1", "on", 1, day.Add(1*time.Hour)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := store.Append(ctx, "device1", "on", 1, day.Add(2*time.Hour)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	window := Window{Start: day, End: day.Add(3 * time.Hour)}
	got, err := store.History(ctx, "device1", "on", window, true)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("History() returned %d intervals, want 2", len(got))
	}
	if got[0].End == nil || !got[0].End.Equal(day.Add(2*time.Hour)) {
		t.Errorf("first interval End = %v, want clamp to next start", got[0].End)
	}
	if got[1].End == nil || !got[1].End.Equal(window.End) {
		t.Errorf("last interval End = %v, want clamp to window end", got[1].End)
	}
}
