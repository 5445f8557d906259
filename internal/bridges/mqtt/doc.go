// Package mqtt implements the MQTT protocol adapter for iotbridge.
//
// The bridge normalizes zigbee2mqtt-style MQTT devices into the uniform
// adapter contract. It holds one physical subscription to the configured
// base-topic subtree and fans incoming messages out to logical handlers
// locally, using its own wildcard matcher rather than the transport
// library's filter logic.
//
// Topic conventions (base topic "zigbee2mqtt"):
//
//	zigbee2mqtt/<deviceId>/state   device state observations (inbound)
//	zigbee2mqtt/<deviceId>/set     command payloads (outbound)
//
// State payloads are JSON objects merged into a last-seen cache, so
// DeviceState can answer without a round-trip to the device.
package mqtt
