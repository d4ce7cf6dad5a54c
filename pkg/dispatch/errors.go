package dispatch

import "errors"

// Dispatch package errors.
var (
	// ErrBadToken is returned when a hello's token doesn't match the
	// configured accepted set.
	ErrBadToken = errors.New("dispatch: invalid or missing token")

	// ErrUnknownKind names an unexpected or unknown envelope kind. The
	// dispatcher logs and ignores such envelopes and does not return it.
	ErrUnknownKind = errors.New("dispatch: unexpected envelope kind")

	errHeartbeatTimeout = errors.New("dispatch: no pong received within heartbeat timeout")
)
