package dispatch

import "errors"

// Domain errors for the command dispatcher.
//
// These errors can be checked using errors.Is() for error handling.
var (
	// ErrInvalidCommand is returned when Submit receives a command
	// missing its adapter name, device ID, or payload.
	ErrInvalidCommand = errors.New("dispatch: invalid command")

	// ErrAdapterNotFound is returned when a command names an adapter
	// that is not registered.
	ErrAdapterNotFound = errors.New("dispatch: adapter not found")

	// ErrNotRunning is returned when Submit is called before Run.
	ErrNotRunning = errors.New("dispatch: dispatcher not running")
)
