// Package presence tracks who is home as a sequence of stays, each a
// period bounded by an arrival and a departure, optionally preceded by an
// ETA expectation.
//
// All state transitions run through the serialised work queue so that
// racing triggers (network presence polling, voice intents, geofences)
// cannot interleave. Presence is also mirrored into the interval event
// log as a boolean "home" property per user, so the usual
// property-changed listeners observe arrivals and departures.
package presence
