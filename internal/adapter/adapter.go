package adapter

import "context"

// Config is the opaque configuration document handed to Initialize.
// Its schema is adapter-specific and out of core scope.
type Config map[string]any

// StateChangeHandler receives asynchronous device state-change
// notifications from an adapter. newState is the full state document the
// adapter observed, keyed by top-level state field.
//
// Handlers may be invoked from adapter-owned goroutines and should not
// block for extended periods.
type StateChangeHandler func(deviceID string, newState map[string]any)

// Adapter is the uniform contract every protocol implementation exposes.
//
// Lifecycle: Initialize is called once with adapter-specific config before
// Start. Stop must release the adapter's transport resources and is called
// at most once after a successful Start.
type Adapter interface {
	// Name returns the unique, non-empty protocol name ("mqtt", "http").
	Name() string

	// Initialize prepares the adapter with its configuration.
	// No I/O should happen before Start.
	Initialize(cfg Config) error

	// Start establishes the adapter's transport connection.
	Start(ctx context.Context) error

	// Stop releases the adapter's transport connection.
	Stop(ctx context.Context) error

	// DeviceState returns the adapter's current view of a device's state.
	DeviceState(ctx context.Context, deviceID string) (map[string]any, error)

	// ExecuteCommand delivers a command payload to a device. The payload
	// shape is owned by the caller; the adapter translates it onto the
	// wire. Transient transport failures are eligible for retry wrapping
	// by the dispatcher.
	ExecuteCommand(ctx context.Context, deviceID string, command map[string]any) error

	// OnDeviceStateChange subscribes to asynchronous state-change
	// notifications. Multiple handlers may be registered; each observed
	// change is delivered to all of them.
	OnDeviceStateChange(handler StateChangeHandler)
}

// DiscoveredDevice describes a device found by a protocol scan.
type DiscoveredDevice struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Scanner is the optional discovery capability. Adapters that can
// enumerate devices on their transport implement it alongside Adapter;
// callers feature-detect with a type assertion.
type Scanner interface {
	ScanDevices(ctx context.Context) ([]DiscoveredDevice, error)
}
