package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig writes a config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "service:\n  id: test-bridge\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.QoS != 1 {
		t.Errorf("MQTT.QoS = %d, want default 1", cfg.MQTT.QoS)
	}
	if cfg.MQTT.BaseTopic != "zigbee2mqtt" {
		t.Errorf("MQTT.BaseTopic = %q, want default zigbee2mqtt", cfg.MQTT.BaseTopic)
	}
	if cfg.Queue.Capacity != 100 {
		t.Errorf("Queue.Capacity = %d, want default 100", cfg.Queue.Capacity)
	}
	if !cfg.Retry.Jitter {
		t.Error("Retry.Jitter = false, want default true")
	}
	if cfg.State.Backend != "file" {
		t.Errorf("State.Backend = %q, want default file", cfg.State.Backend)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
service:
  id: bridge-7
state:
  backend: memory
mqtt:
  base_topic: devices
  qos: 2
queue:
  capacity: 16
retry:
  retries: 5
  base_delay_ms: 50
  max_delay_ms: 500
  jitter: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.State.Backend != "memory" {
		t.Errorf("State.Backend = %q, want memory", cfg.State.Backend)
	}
	if cfg.MQTT.BaseTopic != "devices" || cfg.MQTT.QoS != 2 {
		t.Errorf("MQTT = %+v, want base_topic=devices qos=2", cfg.MQTT)
	}
	if cfg.Queue.Capacity != 16 {
		t.Errorf("Queue.Capacity = %d, want 16", cfg.Queue.Capacity)
	}
	if cfg.Retry.Jitter {
		t.Error("Retry.Jitter = true, want false")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("IOTBRIDGE_MQTT_HOST", "broker.internal")
	t.Setenv("IOTBRIDGE_MQTT_PASSWORD", "hunter2")

	path := writeConfig(t, "service:\n  id: test-bridge\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "broker.internal" {
		t.Errorf("MQTT.Broker.Host = %q, want env override", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Auth.Password != "hunter2" {
		t.Errorf("MQTT.Auth.Password = %q, want env override", cfg.MQTT.Auth.Password)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	path := writeConfig(t, `
service:
  id: ""
state:
  backend: redis
mqtt:
  qos: 7
  base_topic: ""
queue:
  capacity: 0
retry:
  retries: -1
  base_delay_ms: 0
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() should fail validation")
	}

	for _, want := range []string{
		"service.id",
		"state.backend",
		"mqtt.qos",
		"mqtt.base_topic",
		"queue.capacity",
		"retry.retries",
		"retry.base_delay_ms",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("validation error missing %q: %v", want, err)
		}
	}
}

func TestValidate_FileBackendRequiresPath(t *testing.T) {
	path := writeConfig(t, `
service:
  id: test-bridge
state:
  backend: file
  path: ""
`)

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "state.path") {
		t.Errorf("Load() error = %v, want state.path validation failure", err)
	}
}

func TestRetryConfig_Durations(t *testing.T) {
	r := RetryConfig{BaseDelayMs: 100, MaxDelayMs: 2000}

	if r.BaseDelay().Milliseconds() != 100 {
		t.Errorf("BaseDelay() = %v, want 100ms", r.BaseDelay())
	}
	if r.MaxDelay().Milliseconds() != 2000 {
		t.Errorf("MaxDelay() = %v, want 2000ms", r.MaxDelay())
	}
}
