package session

import "errors"

// Session package errors.
var (
	// ErrNotFound is returned when a session lookup by client id fails.
	ErrNotFound = errors.New("session: not found")

	// ErrDuplicateClientID is returned when Insert is called with a client id already present.
	ErrDuplicateClientID = errors.New("session: duplicate client id")

	// ErrSendQueueFull is returned by a non-blocking enqueue against a full send queue.
	ErrSendQueueFull = errors.New("session: send queue full")
)
