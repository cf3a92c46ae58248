// Package logging provides the structured logger used across Karen.
//
// It is a thin wrapper over log/slog that applies service-wide default
// attributes and maps the configuration's level/format/output settings
// onto slog handlers.
package logging
