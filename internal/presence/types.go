package presence

import "time"

// Stay is one contiguous period a person spends at home, or the
// expectation of one.
//
// A stay with only ETA set is "upcoming": someone is expected but has not
// arrived. An upcoming stay with no UserID is "unclaimed" - we know
// someone is on their way but not who. Arrival set and Departure unset
// means the person is currently home; both set means the stay is over.
type Stay struct {
	ID        string     `json:"id"`
	UserID    *string    `json:"userId,omitempty"`
	Arrival   *time.Time `json:"arrival,omitempty"`
	Departure *time.Time `json:"departure,omitempty"`
	ETA       *time.Time `json:"eta,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// IsUpcoming reports whether the stay is still expected: no arrival and no
// departure recorded.
func (s *Stay) IsUpcoming() bool {
	return s.Arrival == nil && s.Departure == nil
}

// IsCurrent reports whether the person is home on this stay.
func (s *Stay) IsCurrent() bool {
	return s.Arrival != nil && s.Departure == nil
}
