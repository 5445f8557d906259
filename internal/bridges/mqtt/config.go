package mqtt

import (
	"fmt"

	"github.com/nerrad567/iotbridge-core/internal/adapter"
	"github.com/nerrad567/iotbridge-core/internal/infrastructure/config"
)

// BridgeConfig converts typed MQTT configuration into the opaque adapter
// config document handed to Initialize. The main package uses this to
// hand config.yaml settings across the adapter boundary.
func BridgeConfig(cfg config.MQTTConfig) adapter.Config {
	return adapter.Config{
		"host":                    cfg.Broker.Host,
		"port":                    cfg.Broker.Port,
		"tls":                     cfg.Broker.TLS,
		"client_id":               cfg.Broker.ClientID,
		"username":                cfg.Auth.Username,
		"password":                cfg.Auth.Password,
		"qos":                     cfg.QoS,
		"base_topic":              cfg.BaseTopic,
		"reconnect_initial_delay": cfg.Reconnect.InitialDelay,
		"reconnect_max_delay":     cfg.Reconnect.MaxDelay,
	}
}

// parseConfig validates and converts the opaque adapter config back into
// typed transport settings.
func parseConfig(cfg adapter.Config) (config.MQTTConfig, error) {
	var out config.MQTTConfig

	if cfg == nil {
		return out, fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}

	out.Broker.Host = stringValue(cfg, "host", "localhost")
	out.Broker.Port = intValue(cfg, "port", 1883)
	out.Broker.TLS = boolValue(cfg, "tls")
	out.Broker.ClientID = stringValue(cfg, "client_id", "iotbridge-mqtt")
	out.Auth.Username = stringValue(cfg, "username", "")
	out.Auth.Password = stringValue(cfg, "password", "")
	out.QoS = intValue(cfg, "qos", 1)
	out.BaseTopic = stringValue(cfg, "base_topic", "")
	out.Reconnect.InitialDelay = intValue(cfg, "reconnect_initial_delay", 1)
	out.Reconnect.MaxDelay = intValue(cfg, "reconnect_max_delay", 60)

	if out.BaseTopic == "" {
		return out, fmt.Errorf("%w: base_topic is required", ErrInvalidConfig)
	}
	if out.QoS < 0 || out.QoS > 2 {
		return out, fmt.Errorf("%w: qos must be 0, 1, or 2, got %d", ErrInvalidConfig, out.QoS)
	}
	if out.Broker.Port < 1 || out.Broker.Port > 65535 {
		return out, fmt.Errorf("%w: port must be between 1 and 65535, got %d", ErrInvalidConfig, out.Broker.Port)
	}

	return out, nil
}

// stringValue reads an optional string key with a default.
func stringValue(cfg adapter.Config, key, fallback string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// intValue reads an optional integer key with a default. JSON-decoded
// configs carry numbers as float64, so both forms are accepted.
func intValue(cfg adapter.Config, key string, fallback int) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}

// boolValue reads an optional boolean key, defaulting to false.
func boolValue(cfg adapter.Config, key string) bool {
	v, _ := cfg[key].(bool)
	return v
}
