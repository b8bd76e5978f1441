package telemetry

import "errors"

// Sentinel errors for telemetry operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, telemetry.ErrNotConnected) {
//	    // Handle disconnected state
//	}
var (
	// ErrNotConnected indicates the client is not connected to InfluxDB.
	ErrNotConnected = errors.New("telemetry: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("telemetry: connection failed")

	// ErrWriteFailed indicates a write operation failed.
	// Note: Most write errors are handled asynchronously via the error callback.
	ErrWriteFailed = errors.New("telemetry: write failed")

	// ErrDisabled indicates InfluxDB integration is disabled in config.
	ErrDisabled = errors.New("telemetry: disabled in configuration")
)
