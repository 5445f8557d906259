package device

import "fmt"

// Device holds protocol-independent device metadata. Current state is not
// part of the metadata; it lives in the state store under the device ID.
type Device struct {
	// ID is the unique, immutable device identifier.
	ID string `json:"id"`

	// Name is the human-facing friendly name ("Main Light").
	Name string `json:"name"`

	// Location is the human-facing placement ("Living Room").
	Location string `json:"location"`

	// Type classifies the device ("light", "sensor", "switch").
	Type string `json:"type"`

	// Capabilities names the operations the device supports
	// ("power", "brightness", "color_temp").
	Capabilities []string `json:"capabilities"`

	// Protocol is the name of the adapter that owns this device.
	Protocol string `json:"protocol"`
}

// ResourceURI returns the device's canonical resource URI.
func (d Device) ResourceURI() string {
	return BuildResourceURI(d.Location, d.Name)
}

// clone returns an independent copy of the device.
func (d Device) clone() Device {
	cpy := d
	if d.Capabilities != nil {
		cpy.Capabilities = make([]string, len(d.Capabilities))
		copy(cpy.Capabilities, d.Capabilities)
	}
	return cpy
}

// Resource is the rendered current-state view of a device, consumed by the
// outer protocol gateway.
type Resource struct {
	// URI is the canonical resource URI.
	URI string `json:"uri"`

	// Title is the device's friendly name.
	Title string `json:"title"`

	// Description summarises the device for listings.
	Description string `json:"description"`

	// MIMEType is always application/json.
	MIMEType string `json:"mime_type"`

	// Text is the JSON-serialized current state ("{}" when no state has
	// been recorded yet).
	Text string `json:"text"`
}

// describe renders the listing description for a device.
func describe(d Device) string {
	return fmt.Sprintf("%s %q in %s (protocol: %s)", d.Type, d.Name, d.Location, d.Protocol)
}
