package broker

import "errors"

// Domain errors for the embedded broker.
//
// These errors can be checked using errors.Is() for error handling.
var (
	// ErrNoFreePort is returned when every probed port is already bound.
	ErrNoFreePort = errors.New("broker: no free port in configured range")

	// ErrAlreadyStarted is returned when Start is called on a running broker.
	ErrAlreadyStarted = errors.New("broker: already started")

	// ErrInvalidConfig is returned for unusable broker configuration.
	ErrInvalidConfig = errors.New("broker: invalid config")
)
