package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Listener receives property-changed notifications.
//
// Listeners are invoked synchronously after the store write is durable,
// at most once per logical change. Ordering is guaranteed per
// (subject, property) key only.
type Listener func(subjectID, propertyKey string)

// Store owns the append/close/query operations over the interval-event log
// and the boolean/numeric property semantics built on top of them.
//
// Append and Close are not atomic as a pair; callers that need exclusivity
// for a key under concurrent writers (boolean toggles, numeric
// replace-on-change) must serialise through a work queue. Reads never block
// and may observe either pre- or post-transition state.
//
// All public methods are safe for concurrent use.
type Store struct {
	repo   Repository
	logger Logger

	mu        sync.RWMutex
	listeners []Listener
}

// NewStore creates a Store over the given repository.
func NewStore(repo Repository) *Store {
	return &Store{
		repo:   repo,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// OnPropertyChanged registers a listener for property-changed notifications.
// Registration is expected to happen during wiring, before writes begin.
func (s *Store) OnPropertyChanged(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// notify fires the property-changed notification for a key.
func (s *Store) notify(subjectID, propertyKey string) {
	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()

	for _, l := range listeners {
		l(subjectID, propertyKey)
	}
}

// Latest returns the interval with the greatest start for the key,
// regardless of open/closed state. Returns ErrIntervalNotFound if the key
// has no history yet.
func (s *Store) Latest(ctx context.Context, subjectID, propertyKey string) (*Interval, error) {
	return s.repo.Latest(ctx, subjectID, propertyKey)
}

// Append creates a new open interval for the key. It does not close any
// prior open interval; callers needing exclusivity must close the prior
// interval first.
func (s *Store) Append(ctx context.Context, subjectID, propertyKey string, value float64, start time.Time) (*Interval, error) {
	iv := &Interval{
		ID:          uuid.NewString(),
		SubjectID:   subjectID,
		PropertyKey: propertyKey,
		Value:       value,
		Start:       start.UTC(),
	}
	if err := s.repo.Insert(ctx, iv); err != nil {
		return nil, err
	}

	s.logger.Debug("interval appended",
		"subject", subjectID, "property", propertyKey, "value", value)
	s.notify(subjectID, propertyKey)
	return iv, nil
}

// Close sets the end of an existing interval and fires a notification.
func (s *Store) Close(ctx context.Context, iv *Interval, end time.Time) error {
	if err := s.repo.SetEnd(ctx, iv.ID, end); err != nil {
		return err
	}

	utc := end.UTC()
	iv.End = &utc

	s.logger.Debug("interval closed",
		"subject", iv.SubjectID, "property", iv.PropertyKey)
	s.notify(iv.SubjectID, iv.PropertyKey)
	return nil
}

// Query returns all intervals for the key intersecting [since, until),
// ordered by start ascending. The raw result may contain overlaps or
// never-closed intervals from unreliable sources; use History for a
// repaired sequence.
func (s *Store) Query(ctx context.Context, subjectID, propertyKey string, since, until time.Time) ([]Interval, error) {
	return s.repo.Window(ctx, subjectID, propertyKey, since, until)
}

// History returns the reconciled interval sequence for the key over the
// window. Repairs (never-closed or overlapping intervals) are logged, since
// they signal an upstream data-quality problem.
func (s *Store) History(ctx context.Context, subjectID, propertyKey string, window Window, expectGaps bool) ([]Interval, error) {
	intervals, err := s.repo.Window(ctx, subjectID, propertyKey, window.Start, window.End)
	if err != nil {
		return nil, err
	}

	reconciled, repairs := Reconcile(intervals, window, expectGaps)
	if repairs > 0 {
		s.logger.Warn("history reconciliation repaired intervals",
			"subject", subjectID, "property", propertyKey, "repairs", repairs)
	}
	return reconciled, nil
}

// SetBool records a boolean observation at the given time.
//
// Setting true when the latest interval is already open is a no-op
// (idempotent); otherwise a new open interval is appended. Setting false
// closes the latest open interval; with nothing open it is a no-op. At most
// one notification fires per logical change.
func (s *Store) SetBool(ctx context.Context, subjectID, propertyKey string, value bool, at time.Time) error {
	latest, err := s.repo.Latest(ctx, subjectID, propertyKey)
	if err != nil && !errors.Is(err, ErrIntervalNotFound) {
		return err
	}

	open := latest != nil && latest.IsOpen()

	if value {
		if open {
			return nil
		}
		_, err := s.Append(ctx, subjectID, propertyKey, 1, at)
		return err
	}

	if !open {
		return nil
	}
	return s.Close(ctx, latest, at)
}

// GetBool reports whether the property is currently true: a latest interval
// exists and is open.
func (s *Store) GetBool(ctx context.Context, subjectID, propertyKey string) (bool, error) {
	latest, err := s.repo.Latest(ctx, subjectID, propertyKey)
	if err != nil {
		if errors.Is(err, ErrIntervalNotFound) {
			return false, nil
		}
		return false, err
	}
	return latest.IsOpen(), nil
}

// SetNumber records a numeric observation at the given time.
//
// Identical consecutive values are coalesced into the existing interval to
// avoid churn. On a value change the latest open interval is closed at the
// observation time and a new open interval is appended; the pair counts as
// one logical change and fires one notification.
func (s *Store) SetNumber(ctx context.Context, subjectID, propertyKey string, value float64, at time.Time) error {
	latest, err := s.repo.Latest(ctx, subjectID, propertyKey)
	if err != nil && !errors.Is(err, ErrIntervalNotFound) {
		return err
	}

	if latest != nil && latest.IsOpen() && latest.Value == value {
		return nil
	}

	if latest != nil && latest.IsOpen() {
		if err := s.repo.SetEnd(ctx, latest.ID, at); err != nil {
			return fmt.Errorf("closing previous interval: %w", err)
		}
	}

	iv := &Interval{
		ID:          uuid.NewString(),
		SubjectID:   subjectID,
		PropertyKey: propertyKey,
		Value:       value,
		Start:       at.UTC(),
	}
	if err := s.repo.Insert(ctx, iv); err != nil {
		return err
	}

	s.logger.Debug("numeric property changed",
		"subject", subjectID, "property", propertyKey, "value", value)
	s.notify(subjectID, propertyKey)
	return nil
}

// GetNumber returns the latest recorded value for the property, or 0 when
// the key has no history yet.
func (s *Store) GetNumber(ctx context.Context, subjectID, propertyKey string) (float64, error) {
	latest, err := s.repo.Latest(ctx, subjectID, propertyKey)
	if err != nil {
		if errors.Is(err, ErrIntervalNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return latest.Value, nil
}
