// Package queue provides a serialised work queue: jobs run strictly one
// at a time in enqueue order, with results delivered through futures.
//
// Compound state transitions that read then write the event log (presence
// arrivals, close-then-append pairs) enqueue here so they never
// interleave. All writers of a given key must share one queue instance
// for the exclusivity to hold.
package queue
