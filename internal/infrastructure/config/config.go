package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for iotbridge.
// All configuration is loaded from YAML and can be overridden by
// environment variables.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Logging  LoggingConfig  `yaml:"logging"`
	State    StateConfig    `yaml:"state"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Broker   BrokerConfig   `yaml:"broker"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Audit    AuditConfig    `yaml:"audit"`
	Queue    QueueConfig    `yaml:"queue"`
	Retry    RetryConfig    `yaml:"retry"`
}

// ServiceConfig identifies this iotbridge instance.
type ServiceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// StateConfig selects and configures the device state store backend.
type StateConfig struct {
	// Backend is "memory" (no persistence) or "file" (JSON document with
	// atomic writes).
	Backend string `yaml:"backend"`

	// Path is the backing document path for the file backend.
	Path string `yaml:"path"`
}

// DatabaseConfig contains SQLite settings for the state history trail.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT transport settings for the bridge adapter.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	BaseTopic string              `yaml:"base_topic"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// BrokerConfig contains embedded MQTT broker settings. When enabled,
// iotbridge raises its own broker instead of expecting an external one.
type BrokerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`

	// BasePort is the first candidate port; free-port probing starts here.
	BasePort int `yaml:"base_port"`

	// MaxPortAttempts bounds the sequential port probe.
	MaxPortAttempts int `yaml:"max_port_attempts"`
}

// InfluxDBConfig contains InfluxDB v2 telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// AuditConfig contains audit event log settings.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// QueueConfig contains command queue settings.
type QueueConfig struct {
	Capacity int `yaml:"capacity"`
}

// RetryConfig contains the command retry policy (delays in milliseconds).
type RetryConfig struct {
	Retries     int  `yaml:"retries"`
	BaseDelayMs int  `yaml:"base_delay_ms"`
	MaxDelayMs  int  `yaml:"max_delay_ms"`
	Jitter      bool `yaml:"jitter"`
}

// BaseDelay returns the retry base delay as a Duration.
func (r RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMs) * time.Millisecond
}

// MaxDelay returns the retry delay cap as a Duration.
func (r RetryConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMs) * time.Millisecond
}

// Load reads, merges, and validates configuration from a YAML file.
//
// Precedence (lowest to highest): built-in defaults, YAML file,
// IOTBRIDGE_* environment variables.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			ID:   "iotbridge-001",
			Name: "iotbridge",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		State: StateConfig{
			Backend: "file",
			Path:    "./data/state.json",
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/iotbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "iotbridge-core",
			},
			QoS:       1,
			BaseTopic: "zigbee2mqtt",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Broker: BrokerConfig{
			Enabled:         false,
			Host:            "127.0.0.1",
			BasePort:        1883,
			MaxPortAttempts: 10,
		},
		Audit: AuditConfig{
			Enabled: true,
			Dir:     "./data/audit",
		},
		Queue: QueueConfig{
			Capacity: 100,
		},
		Retry: RetryConfig{
			Retries:     3,
			BaseDelayMs: 100,
			MaxDelayMs:  2000,
			Jitter:      true,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Variables follow the pattern IOTBRIDGE_SECTION_KEY.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IOTBRIDGE_STATE_PATH"); v != "" {
		cfg.State.Path = v
	}
	if v := os.Getenv("IOTBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("IOTBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("IOTBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("IOTBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("IOTBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Service.ID == "" {
		errs = append(errs, "service.id is required")
	}

	switch c.State.Backend {
	case "memory":
	case "file":
		if c.State.Path == "" {
			errs = append(errs, "state.path is required for the file backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("state.backend must be \"memory\" or \"file\", got %q", c.State.Backend))
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database.enabled is true")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.BaseTopic == "" {
		errs = append(errs, "mqtt.base_topic is required")
	}

	if c.Broker.Enabled {
		if c.Broker.BasePort < 1 || c.Broker.BasePort > 65535 {
			errs = append(errs, "broker.base_port must be between 1 and 65535")
		}
		if c.Broker.MaxPortAttempts < 1 {
			errs = append(errs, "broker.max_port_attempts must be at least 1")
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb.enabled is true")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required (set IOTBRIDGE_INFLUXDB_TOKEN environment variable)")
		}
	}

	if c.Audit.Enabled && c.Audit.Dir == "" {
		errs = append(errs, "audit.dir is required when audit.enabled is true")
	}

	if c.Queue.Capacity < 1 {
		errs = append(errs, "queue.capacity must be at least 1")
	}

	if c.Retry.Retries < 0 {
		errs = append(errs, "retry.retries must be non-negative")
	}
	if c.Retry.BaseDelayMs < 1 {
		errs = append(errs, "retry.base_delay_ms must be positive")
	}
	if c.Retry.MaxDelayMs < c.Retry.BaseDelayMs {
		errs = append(errs, "retry.max_delay_ms must be at least retry.base_delay_ms")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
