package capability

import "errors"

var (
	// ErrProviderNotRegistered indicates a lookup for a provider id nothing
	// has registered. This is a configuration error and should fail the
	// wiring of the integration, not be retried.
	ErrProviderNotRegistered = errors.New("capability: provider not registered")

	// ErrCapabilityUnsupported indicates the provider is registered but its
	// handler set does not cover the requested capability. Callers should
	// treat this as a normal absence.
	ErrCapabilityUnsupported = errors.New("capability: not supported by provider")

	// ErrPropertyNotWriteable indicates a command was issued against a
	// read-only property.
	ErrPropertyNotWriteable = errors.New("capability: property not writeable")

	// ErrPropertyNotFound indicates the capability has no property with the
	// given name.
	ErrPropertyNotFound = errors.New("capability: property not found")
)
