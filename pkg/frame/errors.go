package frame

import "errors"

// Frame package errors.
var (
	// ErrMessageTooLong is returned when a frame payload exceeds MaxPayloadSize.
	ErrMessageTooLong = errors.New("frame: payload exceeds maximum size")

	// ErrStreamReadFailed is returned when a mid-frame read fails.
	// This is distinct from a clean io.EOF between frames.
	ErrStreamReadFailed = errors.New("frame: stream read failed")
)
