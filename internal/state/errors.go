package state

import "errors"

// Domain errors for the state package.
//
// These errors can be checked using errors.Is() for error handling.
var (
	// ErrLoadFailed is returned when the file-backed store cannot read or
	// decode its backing document.
	ErrLoadFailed = errors.New("state: load failed")

	// ErrPersistFailed is returned when the file-backed store cannot write
	// its backing document. The underlying I/O error is preserved as the
	// cause.
	ErrPersistFailed = errors.New("state: persist failed")
)
