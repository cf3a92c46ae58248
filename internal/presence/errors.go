package presence

import "errors"

var (
	// ErrStayNotFound indicates no stay matched the lookup.
	ErrStayNotFound = errors.New("presence: stay not found")

	// ErrInvalidStateTransition indicates a transition that does not apply
	// to the user's current state, such as marking home a user who is
	// already home. Surfaced to the caller; never retried internally.
	ErrInvalidStateTransition = errors.New("presence: invalid state transition")
)
