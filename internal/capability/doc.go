// Package capability builds typed property accessors over the interval
// event log and delegates hardware mutation to pluggable provider
// handlers.
//
// A Capability is declared by property descriptors and built on demand
// with BuildCapability; it is never persisted. Commands (Set) and
// observed-state writes (SetState) are deliberately decoupled: a command
// goes to the provider handler only, and history is written when the
// vendor integration observes the resulting state.
package capability
