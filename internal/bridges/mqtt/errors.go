package mqtt

import "errors"

// Domain errors for the MQTT bridge adapter.
//
// These errors can be checked using errors.Is() for error handling.
var (
	// ErrInvalidConfig is returned when Initialize receives a config the
	// bridge cannot use.
	ErrInvalidConfig = errors.New("mqtt bridge: invalid config")

	// ErrNotInitialized is returned when Start is called before Initialize.
	ErrNotInitialized = errors.New("mqtt bridge: not initialized")

	// ErrAlreadyStarted is returned when Start is called on a running bridge.
	ErrAlreadyStarted = errors.New("mqtt bridge: already started")

	// ErrNotStarted is returned when an operation requires a running bridge.
	ErrNotStarted = errors.New("mqtt bridge: not started")

	// ErrInvalidCommand is returned when ExecuteCommand receives an empty
	// device id or a nil command payload.
	ErrInvalidCommand = errors.New("mqtt bridge: invalid command")
)
