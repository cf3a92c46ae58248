// Package config loads and validates the Karen configuration.
//
// Configuration is read from a YAML file, with hardcoded defaults applied
// first and KAREN_* environment variables applied last. The resulting
// Config is passed explicitly to each component at construction; nothing
// in this package is a process-wide singleton.
package config
