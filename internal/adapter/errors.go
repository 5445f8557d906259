package adapter

import "errors"

// Domain errors for adapter registration.
//
// These errors can be checked using errors.Is() for error handling.
var (
	// ErrInvalidAdapter is returned when a registration candidate violates
	// the contract (nil adapter, empty name).
	ErrInvalidAdapter = errors.New("adapter: invalid adapter")

	// ErrAdapterExists is returned when registering a name that is already
	// present. The existing entry is never overwritten.
	ErrAdapterExists = errors.New("adapter: already registered")
)
