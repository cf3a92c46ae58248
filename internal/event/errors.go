package event

import "errors"

// Domain errors for the event package, checked with errors.Is().
var (
	// ErrIntervalNotFound is returned when no interval exists for a key.
	ErrIntervalNotFound = errors.New("event: interval not found")

	// ErrIntervalClosed is returned when closing an interval that already
	// has an end.
	ErrIntervalClosed = errors.New("event: interval already closed")

	// ErrInvalidInterval is returned when an interval fails validation,
	// for example an end before its start.
	ErrInvalidInterval = errors.New("event: invalid interval")

	// ErrInvalidWindow is returned when a query window ends before it starts.
	ErrInvalidWindow = errors.New("event: invalid window")
)
