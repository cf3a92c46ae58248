package event

import "time"

// Interval is the atomic unit of state history: one value held by a
// (subject, property) pair for a half-open duration [Start, End).
//
// An Interval with a nil End is "open" and represents the current, ongoing
// value for its key. Booleans are represented by interval presence: an open
// interval means true, no interval (or only closed intervals) means false.
// Numeric properties store the literal value, which holds for the entire
// duration of the interval.
type Interval struct {
	// ID is the unique identifier for the interval row.
	ID string `json:"id"`

	// SubjectID identifies the observed entity (device id, user id).
	SubjectID string `json:"subject_id"`

	// PropertyKey identifies the observed property ("on", "temperature").
	PropertyKey string `json:"property_key"`

	// Value is the numeric payload. Boolean properties ignore it.
	Value float64 `json:"value"`

	// Start is when the value began to hold (UTC).
	Start time.Time `json:"start"`

	// End is when the value stopped holding (UTC), or nil while open.
	End *time.Time `json:"end,omitempty"`
}

// IsOpen reports whether the interval has no end yet.
func (iv *Interval) IsOpen() bool {
	return iv.End == nil
}

// Window is a closed query range [Start, End] over history.
type Window struct {
	Start time.Time
	End   time.Time
}
