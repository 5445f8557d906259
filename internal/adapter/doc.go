// Package adapter defines the capability contract every protocol adapter
// must satisfy, and the registry that resolves adapters by name.
//
// An adapter translates one device protocol (MQTT/Zigbee bridge, HTTP
// device, ...) into the uniform command/state surface the core consumes.
// The Adapter interface is the sole extension point for new protocols;
// discovery is optional and expressed through the separate Scanner
// interface rather than an optional method.
//
// Registration is validated at the plugin boundary: nil adapters, empty
// names, and name conflicts are rejected before insertion. Lookup of an
// unknown name is a routine condition and reports absence rather than an
// error.
package adapter
