package conn

import "errors"

// Sentinel errors for connection operations
var (
	// ErrAlreadyConnected is returned when Connect is called while the
	// connection is not in the closed state
	ErrAlreadyConnected = errors.New("already connected")

	// ErrMaxRetriesExceeded is recorded as the last error when the
	// reconnect loop gives up after the configured number of attempts
	ErrMaxRetriesExceeded = errors.New("maximum reconnection attempts exceeded")
)
