package mqtt

import (
	"fmt"
	"strings"
)

// Topic suffix conventions for zigbee2mqtt-style devices.
const (
	// stateSuffix is the final segment of state observation topics.
	stateSuffix = "state"

	// commandSuffix is the final segment of command topics.
	commandSuffix = "set"
)

// DeviceIDFromTopic extracts a device identifier from an observed topic.
//
// The base prefix is stripped (tolerating any number of trailing slashes
// on the base); an identifier is extracted only when the remaining path
// has at least two segments and the final segment is literally "state".
// The identifier is the second-to-last segment.
//
// This is a best-effort classifier, not a validator: any other shape
// (wrong prefix, too few segments, wrong suffix, empty identifier)
// reports no match rather than an error.
//
//	DeviceIDFromTopic("zigbee2mqtt", "zigbee2mqtt/lamp/state")  == ("lamp", true)
//	DeviceIDFromTopic("zigbee2mqtt", "zigbee2mqtt/lamp/config") == ("", false)
func DeviceIDFromTopic(baseTopic, topic string) (string, bool) {
	base := strings.TrimRight(baseTopic, "/")
	if base == "" {
		return "", false
	}

	if !strings.HasPrefix(topic, base+"/") {
		return "", false
	}

	remainder := strings.TrimPrefix(topic, base+"/")
	segments := strings.Split(remainder, "/")
	if len(segments) < 2 {
		return "", false
	}
	if segments[len(segments)-1] != stateSuffix {
		return "", false
	}

	deviceID := segments[len(segments)-2]
	if deviceID == "" {
		return "", false
	}
	return deviceID, true
}

// StateTopic returns the state observation topic for a device.
//
// Example: zigbee2mqtt/lamp-1/state
func StateTopic(baseTopic, deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(baseTopic, "/"), deviceID, stateSuffix)
}

// CommandTopic returns the command topic for a device.
//
// Example: zigbee2mqtt/lamp-1/set
func CommandTopic(baseTopic, deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(baseTopic, "/"), deviceID, commandSuffix)
}

// subtreeFilter returns the single physical subscription pattern covering
// the whole base-topic subtree.
func subtreeFilter(baseTopic string) string {
	return strings.TrimRight(baseTopic, "/") + "/#"
}
