// Package influxdb ships device telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes, and health checking.
//
// # Purpose
//
// Numeric and boolean fields from normalized device state documents are
// recorded as time-series points, one point per state change. This gives
// deployments a history of sensor readings and actuator states without
// coupling the core to any dashboarding stack.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteDeviceState("lamp-1", map[string]any{"brightness": 128.0, "on": true})
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are batched and sent
// asynchronously; batch errors surface through the SetOnError callback.
package influxdb
