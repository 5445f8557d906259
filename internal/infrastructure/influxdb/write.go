package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceState records the numeric and boolean fields of a device
// state document as a single point in the device_state measurement.
//
// Strings, nulls, and nested documents are skipped: InfluxDB fields are
// typed per series, and free-form state values would poison the schema.
// Booleans are flattened to 0/1 so on/off devices graph alongside
// numeric sensors.
//
// The write is non-blocking; data is batched and sent asynchronously.
func (c *Client) WriteDeviceState(deviceID string, state map[string]any) {
	if !c.IsConnected() {
		return
	}

	fields := numericFields(state)
	if len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"device_state",
		map[string]string{
			"device_id": deviceID,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDeviceMetric records a single named measurement for a device.
//
// Example:
//
//	client.WriteDeviceMetric("sensor-1", "temperature_c", 21.5)
func (c *Client) WriteDeviceMetric(deviceID string, measurement string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_metrics",
		map[string]string{
			"device_id":   deviceID,
			"measurement": measurement,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and
// fields, for measurements the helpers above do not cover.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// numericFields extracts the InfluxDB-safe fields from a state document.
func numericFields(state map[string]any) map[string]interface{} {
	fields := make(map[string]interface{}, len(state))
	for key, value := range state {
		switch v := value.(type) {
		case float64:
			fields[key] = v
		case float32:
			fields[key] = float64(v)
		case int:
			fields[key] = float64(v)
		case int64:
			fields[key] = float64(v)
		case bool:
			if v {
				fields[key] = float64(1)
			} else {
				fields[key] = float64(0)
			}
		}
	}
	return fields
}
