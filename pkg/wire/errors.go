package wire

import "errors"

// Sentinel errors for frame decoding
var (
	// ErrMalformedFrame is returned when a frame cannot be parsed as JSON
	// or is missing required fields
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrUnknownType is returned when a frame carries a type this client
	// does not recognize
	ErrUnknownType = errors.New("unknown frame type")
)
