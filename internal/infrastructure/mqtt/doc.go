// Package mqtt provides the MQTT client transport for iotbridge adapters.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees and JSON payload encoding
//   - Topic subscriptions with wildcard support
//   - Transparent subscription restoration after reconnects
//
// # Subscription restoration
//
// Every successful Subscribe is tracked in a local table. The paho
// OnConnect handler fires on the initial connect and on every reconnect,
// and re-asserts each tracked subscription against the broker, so a
// transport-level drop never silently loses a subscription. Disconnect
// clears the table, so a later reconnect starts clean.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe("zigbee2mqtt/#", 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	err = client.PublishPayload("zigbee2mqtt/lamp-1/set",
//	    map[string]any{"state": "ON"}, 1, false)
package mqtt
