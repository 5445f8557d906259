package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrResourceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrInvalidDevice is returned when device metadata fails validation
	// (empty identifier).
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrDeviceExists is returned when registering an identifier that is
	// already present in the directory.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrResourceConflict is returned when a device's canonical resource
	// URI collides with an already-registered device.
	ErrResourceConflict = errors.New("device: resource uri conflict")

	// ErrInvalidPatch is returned when a state patch is not a plain object.
	ErrInvalidPatch = errors.New("device: invalid patch")

	// ErrStatePatchFailed wraps a store-layer failure while applying a
	// patch. The underlying store error is preserved as the cause.
	ErrStatePatchFailed = errors.New("device: state patch failed")

	// ErrResourceNotFound is returned when no device's canonical URI
	// matches a requested resource URI.
	ErrResourceNotFound = errors.New("device: resource not found")
)
