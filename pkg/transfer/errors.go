package transfer

import "errors"

// Transfer package errors. Per spec §7 these are all TransferError: fatal
// to the owning session.
var (
	// ErrOversize is returned when a file-start declares a total size above MaxSize.
	ErrOversize = errors.New("transfer: declared size exceeds maximum")

	// ErrOutOfOrder is returned when a chunk index is not the next expected index.
	ErrOutOfOrder = errors.New("transfer: chunk index out of order")

	// ErrOverflow is returned when accumulated bytes would exceed the declared total size.
	ErrOverflow = errors.New("transfer: accumulated bytes exceed declared size")

	// ErrNotFound is returned when a chunk or end arrives for an unknown transfer id.
	ErrNotFound = errors.New("transfer: unknown transfer id")

	// ErrAlreadyExists is returned when file-start reuses an in-progress transfer id.
	ErrAlreadyExists = errors.New("transfer: transfer id already in progress")
)
