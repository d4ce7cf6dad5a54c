package envelope

import "errors"

// Envelope package errors.
var (
	// ErrMissingType is returned when a record has no type= line.
	ErrMissingType = errors.New("envelope: missing type field")

	// ErrMalformedRecord is returned when a key=value line cannot be parsed.
	ErrMalformedRecord = errors.New("envelope: malformed record")

	// ErrUnterminated is returned when a record is not terminated by a blank line.
	ErrUnterminated = errors.New("envelope: unterminated record")

	// ErrMissingField is returned when a required field for a known type is absent.
	ErrMissingField = errors.New("envelope: missing required field")

	// ErrInvalidField is returned when a field's value cannot be parsed into its expected type.
	ErrInvalidField = errors.New("envelope: invalid field value")
)
