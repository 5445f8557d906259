// Package device provides the device manager: the directory of device
// metadata and the layer that merges adapter state changes into the state
// store and republishes them as resource views.
//
// Metadata (identifier, friendly name, location, type, capabilities,
// protocol) lives in an in-memory directory keyed by identifier. Devices
// are created by explicit registration and never auto-expire. Current
// state lives in the state store and is mutated exclusively through
// shallow patch merges.
//
// Every device is addressable through a canonical, derived resource URI:
//
//	iot://home/<location-slug>/<name-slug>/state
//
// The scheme is fixed and non-configurable. URI collisions between two
// devices whose slugs coincide are rejected at registration rather than
// silently shadowing the earlier device.
package device
