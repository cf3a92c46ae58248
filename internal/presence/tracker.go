package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mattlunn/karen-sub001/internal/queue"
)

// HomeProperty is the boolean property key mirroring presence into the
// interval event log, keyed by user id.
const HomeProperty = "home"

// Logger defines the logging interface used by the Tracker.
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

// Store is the subset of the event store the tracker mirrors presence
// into, so property-changed listeners see arrivals and departures.
type Store interface {
	SetBool(ctx context.Context, subjectID, propertyKey string, value bool, at time.Time) error
}

// Tracker is the presence state machine. A user is HOME when they have an
// open stay (arrival set, no departure) and AWAY otherwise.
//
// Every transition runs on the work queue so concurrent triggers for the
// same user (a network-presence poll racing a voice intent) cannot
// interleave their read-decide-write sequences. Transitions for all users
// share the one queue; with low trigger volume that is acceptable, though
// it serialises unrelated users too.
type Tracker struct {
	repo         Repository
	queue        *queue.Queue
	store        Store
	searchWindow time.Duration
	logger       Logger

	now func() time.Time
}

// NewTracker creates a presence tracker. searchWindow bounds how far back
// MarkAway looks for an unclaimed ETA stay to claim.
func NewTracker(repo Repository, q *queue.Queue, store Store, searchWindow time.Duration) *Tracker {
	return &Tracker{
		repo:         repo,
		queue:        q,
		store:        store,
		searchWindow: searchWindow,
		logger:       noopLogger{},
		now:          time.Now,
	}
}

// SetLogger sets the logger for the tracker.
func (t *Tracker) SetLogger(logger Logger) {
	t.logger = logger
}

// IsHome reports whether the user currently has an open stay. Reads skip
// the queue and may observe either side of an in-flight transition.
func (t *Tracker) IsHome(ctx context.Context, userID string) (bool, error) {
	_, err := t.repo.Current(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrStayNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Current returns the user's open stay, or ErrStayNotFound when away.
func (t *Tracker) Current(ctx context.Context, userID string) (*Stay, error) {
	return t.repo.Current(ctx, userID)
}

// History returns the user's completed and current stays with an arrival
// inside [since, until), most recent first.
func (t *Tracker) History(ctx context.Context, userID string, since, until time.Time) ([]Stay, error) {
	return t.repo.History(ctx, userID, since, until)
}

// MarkHome records the user's arrival.
//
// Returns ErrInvalidStateTransition when the user is already home.
// Otherwise an upcoming stay (their own, or an unclaimed one which is
// claimed for them) gets its arrival set; with nothing upcoming a fresh
// stay is created.
func (t *Tracker) MarkHome(ctx context.Context, userID string) (*Stay, error) {
	return queue.Run(ctx, t.queue, func(ctx context.Context) (*Stay, error) {
		return t.markHome(ctx, userID)
	})
}

func (t *Tracker) markHome(ctx context.Context, userID string) (*Stay, error) {
	if _, err := t.repo.Current(ctx, userID); err == nil {
		return nil, fmt.Errorf("marking %q home: %w", userID, ErrInvalidStateTransition)
	} else if !errors.Is(err, ErrStayNotFound) {
		return nil, err
	}

	now := t.now().UTC()

	stay, err := t.repo.FindUpcoming(ctx, userID)
	switch {
	case err == nil:
		stay.UserID = &userID
		stay.Arrival = &now
		if err := t.repo.Update(ctx, stay); err != nil {
			return nil, fmt.Errorf("claiming upcoming stay: %w", err)
		}
	case errors.Is(err, ErrStayNotFound):
		stay = &Stay{
			ID:        uuid.NewString(),
			UserID:    &userID,
			Arrival:   &now,
			CreatedAt: now,
		}
		if err := t.repo.Create(ctx, stay); err != nil {
			return nil, fmt.Errorf("creating stay: %w", err)
		}
	default:
		return nil, err
	}

	if err := t.store.SetBool(ctx, userID, HomeProperty, true, now); err != nil {
		// The stay row is already written, so the stays table and the
		// event log now disagree about this user.
		t.logger.Error("arrival recorded but event log write failed, presence state diverged",
			"user", userID, "stay", stay.ID, "error", err)
		return nil, fmt.Errorf("recording arrival: %w", err)
	}

	t.logger.Info("user arrived home", "user", userID, "stay", stay.ID)
	return stay, nil
}

// MarkAway records the user's departure.
//
// Returns ErrInvalidStateTransition when the user is already away. After
// closing the stay, an unclaimed ETA stay created within the search window
// is claimed for the user (someone said they were on their way and this
// departure tells us who). Failing that, if the closed stay's own ETA is
// still in the future, an unclaimed placeholder carrying it is created:
// the user came near home and left again without arriving for the
// expected visit.
func (t *Tracker) MarkAway(ctx context.Context, userID string) (*Stay, error) {
	return queue.Run(ctx, t.queue, func(ctx context.Context) (*Stay, error) {
		return t.markAway(ctx, userID)
	})
}

func (t *Tracker) markAway(ctx context.Context, userID string) (*Stay, error) {
	stay, err := t.repo.Current(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrStayNotFound) {
			return nil, fmt.Errorf("marking %q away: %w", userID, ErrInvalidStateTransition)
		}
		return nil, err
	}

	now := t.now().UTC()
	stay.Departure = &now
	if err := t.repo.Update(ctx, stay); err != nil {
		return nil, fmt.Errorf("closing stay: %w", err)
	}

	if err := t.claimOrCarryETA(ctx, userID, stay, now); err != nil {
		return nil, err
	}

	if err := t.store.SetBool(ctx, userID, HomeProperty, false, now); err != nil {
		// The stay is already closed, so the stays table and the event
		// log now disagree about this user.
		t.logger.Error("departure recorded but event log write failed, presence state diverged",
			"user", userID, "stay", stay.ID, "error", err)
		return nil, fmt.Errorf("recording departure: %w", err)
	}

	t.logger.Info("user left home", "user", userID, "stay", stay.ID)
	return stay, nil
}

// claimOrCarryETA resolves outstanding ETA expectations on departure.
func (t *Tracker) claimOrCarryETA(ctx context.Context, userID string, closed *Stay, now time.Time) error {
	unclaimed, err := t.repo.FindUnclaimedETA(ctx, now.Add(-t.searchWindow))
	switch {
	case err == nil:
		unclaimed.UserID = &userID
		if err := t.repo.Update(ctx, unclaimed); err != nil {
			return fmt.Errorf("claiming eta stay: %w", err)
		}
		t.logger.Debug("claimed unclaimed eta stay",
			"user", userID, "stay", unclaimed.ID)
		return nil
	case !errors.Is(err, ErrStayNotFound):
		return err
	}

	if closed.ETA != nil && closed.ETA.After(now) {
		placeholder := &Stay{
			ID:        uuid.NewString(),
			ETA:       closed.ETA,
			CreatedAt: now,
		}
		if err := t.repo.Create(ctx, placeholder); err != nil {
			return fmt.Errorf("creating eta placeholder: %w", err)
		}
		t.logger.Debug("carried eta onto placeholder stay",
			"user", userID, "stay", placeholder.ID)
	}
	return nil
}

// RecordETA registers that someone is expected home at the given time. A
// nil userID records an unclaimed expectation ("someone is on their way,
// we don't know who yet"), claimable by a later transition.
func (t *Tracker) RecordETA(ctx context.Context, userID *string, eta time.Time) (*Stay, error) {
	return queue.Run(ctx, t.queue, func(ctx context.Context) (*Stay, error) {
		return t.recordETA(ctx, userID, eta)
	})
}

func (t *Tracker) recordETA(ctx context.Context, userID *string, eta time.Time) (*Stay, error) {
	now := t.now().UTC()

	// A user already home keeps the ETA on their open stay; it becomes
	// relevant if they leave before it passes.
	if userID != nil {
		current, err := t.repo.Current(ctx, *userID)
		if err == nil {
			utc := eta.UTC()
			current.ETA = &utc
			if err := t.repo.Update(ctx, current); err != nil {
				return nil, fmt.Errorf("recording eta on current stay: %w", err)
			}
			return current, nil
		}
		if !errors.Is(err, ErrStayNotFound) {
			return nil, err
		}
	}

	utc := eta.UTC()
	stay := &Stay{
		ID:        uuid.NewString(),
		UserID:    userID,
		ETA:       &utc,
		CreatedAt: now,
	}
	if err := t.repo.Create(ctx, stay); err != nil {
		return nil, fmt.Errorf("creating upcoming stay: %w", err)
	}
	return stay, nil
}
