// Package event implements the interval-event model at the core of Karen.
//
// Every observable fact about the world (a light is on, a thermostat reads
// 19.5 degrees, a person is home) is represented as a half-open time
// interval [start, end) in an append-mostly log keyed by
// (subject, property). The most recent interval with an unset end is the
// current value.
//
// # Components
//
//   - Interval / Repository: the domain value type and its SQLite-backed
//     persistence (repository.go)
//   - Store: append/close/query plus the boolean and numeric property
//     semantics and property-changed notifications (store.go)
//   - Reconcile: repairs overlapping, missing-end and unsorted intervals
//     produced by unreliable sources, clamped to a window (reconcile.go)
//   - Buckets: bucketed min/max/average/duration statistics over a
//     reconciled sequence (aggregate.go)
//
// # Concurrency
//
// The Store's append/close pair is not atomic; compound transitions on the
// same key must be serialised through a work queue (see the queue package)
// when concurrent writers are possible. Reads are read-committed: they
// never block and may observe either side of an in-flight transition.
package event
