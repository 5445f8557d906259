// Package broker runs an embedded MQTT broker for deployments without
// an external one.
//
// The broker is optional and disabled by default. When enabled it binds
// the first free TCP port starting at the configured base port, probing
// sequentially up to a bounded number of attempts. The chosen port is
// exposed via Port so the MQTT bridge can be pointed at it.
//
// Usage:
//
//	b := broker.New(cfg.Broker)
//	if err := b.Start(); err != nil {
//	    return err
//	}
//	defer b.Stop()
//
// Backed by mochi-mqtt, a pure-Go MQTT v3.1.1/v5 broker, so no external
// daemon is required.
package broker
