package tsdb

import "errors"

var (
	// ErrDisabled indicates the time-series mirror is disabled in config.
	ErrDisabled = errors.New("tsdb: disabled in configuration")

	// ErrConnectionFailed indicates the InfluxDB server could not be
	// reached or is unhealthy.
	ErrConnectionFailed = errors.New("tsdb: connection failed")

	// ErrNotConnected indicates an operation on a closed client.
	ErrNotConnected = errors.New("tsdb: not connected")
)
