package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/iotbridge-core/internal/adapter"
	"github.com/nerrad567/iotbridge-core/internal/infrastructure/config"
	transportmqtt "github.com/nerrad567/iotbridge-core/internal/infrastructure/mqtt"
)

// fakeTransport records subscribe/publish calls in place of a broker
// connection.
type fakeTransport struct {
	mu sync.Mutex

	subscribeTopic string
	subscribeQoS   byte
	handler        transportmqtt.MessageHandler
	subscribeErr   error

	published  []publishCall
	publishErr error

	closed    int
	connected bool
}

type publishCall struct {
	topic    string
	payload  any
	qos      byte
	retained bool
}

func (f *fakeTransport) Subscribe(topic string, qos byte, handler transportmqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.subscribeTopic = topic
	f.subscribeQoS = qos
	f.handler = handler
	return nil
}

func (f *fakeTransport) PublishPayload(topic string, payload any, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, publishCall{topic, payload, qos, retained})
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	f.connected = false
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func validConfig() adapter.Config {
	return adapter.Config{
		"host":       "localhost",
		"port":       1883,
		"base_topic": "zigbee2mqtt",
		"qos":        1,
	}
}

// startedBridge returns a bridge wired to a fake transport, already
// initialized and started.
func startedBridge(t *testing.T) (*Bridge, *fakeTransport) {
	t.Helper()

	ft := &fakeTransport{connected: true}
	b := New()
	b.dial = func(config.MQTTConfig) (transport, error) { return ft, nil }

	if err := b.Initialize(validConfig()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return b, ft
}

func TestBridgeName(t *testing.T) {
	if got := New().Name(); got != "mqtt" {
		t.Errorf("Name = %q, want mqtt", got)
	}
}

func TestBridgeInitializeValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  adapter.Config
	}{
		{"nil config", nil},
		{"missing base topic", adapter.Config{"host": "localhost"}},
		{"qos out of range", adapter.Config{"base_topic": "z", "qos": 3}},
		{"port out of range", adapter.Config{"base_topic": "z", "port": 70000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Initialize(tt.cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Initialize error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestBridgeInitializeDefaults(t *testing.T) {
	b := New()
	if err := b.Initialize(adapter.Config{"base_topic": "zigbee2mqtt"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if b.cfg.Broker.Host != "localhost" {
		t.Errorf("default host = %q", b.cfg.Broker.Host)
	}
	if b.cfg.Broker.Port != 1883 {
		t.Errorf("default port = %d", b.cfg.Broker.Port)
	}
	if b.cfg.QoS != 1 {
		t.Errorf("default qos = %d", b.cfg.QoS)
	}
}

func TestBridgeInitializeFloatNumbers(t *testing.T) {
	// JSON-decoded configs carry numbers as float64.
	b := New()
	err := b.Initialize(adapter.Config{"base_topic": "z", "port": float64(8883), "qos": float64(2)})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if b.cfg.Broker.Port != 8883 || b.cfg.QoS != 2 {
		t.Errorf("parsed port=%d qos=%d", b.cfg.Broker.Port, b.cfg.QoS)
	}
}

func TestBridgeStartLifecycle(t *testing.T) {
	b := New()
	if err := b.Start(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Start before Initialize = %v, want ErrNotInitialized", err)
	}

	b, ft := startedBridge(t)

	if ft.subscribeTopic != "zigbee2mqtt/#" {
		t.Errorf("subscribed to %q, want zigbee2mqtt/#", ft.subscribeTopic)
	}
	if ft.subscribeQoS != 1 {
		t.Errorf("subscribe qos = %d, want 1", ft.subscribeQoS)
	}

	if err := b.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
}

func TestBridgeStartDialFailure(t *testing.T) {
	dialErr := errors.New("connection refused")
	b := New()
	b.dial = func(config.MQTTConfig) (transport, error) { return nil, dialErr }

	if err := b.Initialize(validConfig()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := b.Start(context.Background()); !errors.Is(err, dialErr) {
		t.Errorf("Start = %v, want wrapped dial error", err)
	}

	// A failed Start leaves the bridge stopped; retrying is allowed.
	ft := &fakeTransport{connected: true}
	b.dial = func(config.MQTTConfig) (transport, error) { return ft, nil }
	if err := b.Start(context.Background()); err != nil {
		t.Errorf("Start after failed dial = %v", err)
	}
}

func TestBridgeStartSubscribeFailureClosesClient(t *testing.T) {
	subErr := errors.New("subscribe rejected")
	ft := &fakeTransport{connected: true, subscribeErr: subErr}
	b := New()
	b.dial = func(config.MQTTConfig) (transport, error) { return ft, nil }

	if err := b.Initialize(validConfig()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := b.Start(context.Background()); !errors.Is(err, subErr) {
		t.Errorf("Start = %v, want wrapped subscribe error", err)
	}
	if ft.closed != 1 {
		t.Errorf("client closed %d times, want 1", ft.closed)
	}
}

func TestBridgeStopIdempotent(t *testing.T) {
	b, ft := startedBridge(t)

	if err := b.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := b.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if ft.closed != 1 {
		t.Errorf("client closed %d times, want 1", ft.closed)
	}
}

func TestBridgeStateObservation(t *testing.T) {
	b, ft := startedBridge(t)

	var mu sync.Mutex
	var gotID string
	var gotState map[string]any
	b.OnDeviceStateChange(func(deviceID string, newState map[string]any) {
		mu.Lock()
		defer mu.Unlock()
		gotID = deviceID
		gotState = newState
	})

	payload := []byte(`{"power":"on","brightness":128}`)
	if err := ft.handler("zigbee2mqtt/lamp-1/state", payload); err != nil {
		t.Fatalf("handler: %v", err)
	}

	mu.Lock()
	if gotID != "lamp-1" {
		t.Errorf("handler device ID = %q, want lamp-1", gotID)
	}
	if gotState["power"] != "on" {
		t.Errorf("handler state power = %v, want on", gotState["power"])
	}
	mu.Unlock()

	st, err := b.DeviceState(context.Background(), "lamp-1")
	if err != nil {
		t.Fatalf("DeviceState: %v", err)
	}
	if st["power"] != "on" {
		t.Errorf("cached power = %v, want on", st["power"])
	}
}

func TestBridgeStateObservationMergesFields(t *testing.T) {
	b, ft := startedBridge(t)

	ft.handler("zigbee2mqtt/lamp-1/state", []byte(`{"power":"on","brightness":128}`))
	ft.handler("zigbee2mqtt/lamp-1/state", []byte(`{"brightness":200}`))

	st, err := b.DeviceState(context.Background(), "lamp-1")
	if err != nil {
		t.Fatalf("DeviceState: %v", err)
	}
	if st["power"] != "on" {
		t.Errorf("power = %v, want on (untouched fields survive partial updates)", st["power"])
	}
	if st["brightness"] != float64(200) {
		t.Errorf("brightness = %v, want 200", st["brightness"])
	}
}

func TestBridgeIgnoresNonStateTopics(t *testing.T) {
	b, ft := startedBridge(t)

	notified := false
	b.OnDeviceStateChange(func(string, map[string]any) { notified = true })

	if err := ft.handler("zigbee2mqtt/lamp-1/availability", []byte(`{"state":"online"}`)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if notified {
		t.Error("non-state topic triggered a state-change notification")
	}
}

func TestBridgeDiscardsMalformedPayload(t *testing.T) {
	b, ft := startedBridge(t)

	if err := ft.handler("zigbee2mqtt/lamp-1/state", []byte(`not json`)); err != nil {
		t.Fatalf("handler returned error for malformed payload: %v", err)
	}

	st, _ := b.DeviceState(context.Background(), "lamp-1")
	if len(st) != 0 {
		t.Errorf("malformed payload mutated cache: %v", st)
	}
}

func TestBridgeDeviceStateUnknownDevice(t *testing.T) {
	b, _ := startedBridge(t)

	st, err := b.DeviceState(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("DeviceState: %v", err)
	}
	if st == nil || len(st) != 0 {
		t.Errorf("unknown device state = %v, want empty map", st)
	}
}

func TestBridgeDeviceStateReturnsCopy(t *testing.T) {
	b, ft := startedBridge(t)
	ft.handler("zigbee2mqtt/lamp-1/state", []byte(`{"power":"on"}`))

	st, _ := b.DeviceState(context.Background(), "lamp-1")
	st["power"] = "tampered"

	again, _ := b.DeviceState(context.Background(), "lamp-1")
	if again["power"] != "on" {
		t.Error("DeviceState exposed internal cache state")
	}
}

func TestBridgeExecuteCommand(t *testing.T) {
	b, ft := startedBridge(t)

	cmd := map[string]any{"state": "ON", "brightness": 255}
	if err := b.ExecuteCommand(context.Background(), "lamp-1", cmd); err != nil {
		t.Fatalf("ExecuteCommand: %v", err)
	}

	if len(ft.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(ft.published))
	}
	pub := ft.published[0]
	if pub.topic != "zigbee2mqtt/lamp-1/set" {
		t.Errorf("published to %q, want zigbee2mqtt/lamp-1/set", pub.topic)
	}
	if pub.qos != 1 {
		t.Errorf("published qos = %d, want 1", pub.qos)
	}
	if pub.retained {
		t.Error("command published retained")
	}
	// The payload must survive JSON encoding intact.
	raw, err := json.Marshal(pub.payload)
	if err != nil {
		t.Fatalf("command payload not JSON encodable: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["state"] != "ON" {
		t.Errorf("payload state = %v, want ON", decoded["state"])
	}
}

func TestBridgeExecuteCommandValidation(t *testing.T) {
	b, _ := startedBridge(t)

	if err := b.ExecuteCommand(context.Background(), "", map[string]any{"state": "ON"}); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("empty device ID error = %v, want ErrInvalidCommand", err)
	}
	if err := b.ExecuteCommand(context.Background(), "lamp-1", nil); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("nil command error = %v, want ErrInvalidCommand", err)
	}
}

func TestBridgeExecuteCommandNotStarted(t *testing.T) {
	b := New()
	if err := b.Initialize(validConfig()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	err := b.ExecuteCommand(context.Background(), "lamp-1", map[string]any{"state": "ON"})
	if !errors.Is(err, ErrNotStarted) {
		t.Errorf("ExecuteCommand before Start = %v, want ErrNotStarted", err)
	}
}

func TestBridgeExecuteCommandCancelledContext(t *testing.T) {
	b, ft := startedBridge(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.ExecuteCommand(ctx, "lamp-1", map[string]any{"state": "ON"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ExecuteCommand = %v, want context.Canceled", err)
	}
	if len(ft.published) != 0 {
		t.Error("cancelled command still published")
	}
}

func TestBridgeScanDevices(t *testing.T) {
	b, ft := startedBridge(t)

	ft.handler("zigbee2mqtt/lamp-2/state", []byte(`{"power":"off"}`))
	ft.handler("zigbee2mqtt/lamp-1/state", []byte(`{"power":"on"}`))
	ft.handler("zigbee2mqtt/sensor-1/state", []byte(`{"temperature":21.5}`))

	devices, err := b.ScanDevices(context.Background())
	if err != nil {
		t.Fatalf("ScanDevices: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("discovered %d devices, want 3", len(devices))
	}
	want := []string{"lamp-1", "lamp-2", "sensor-1"}
	for i, d := range devices {
		if d.ID != want[i] {
			t.Errorf("devices[%d].ID = %q, want %q", i, d.ID, want[i])
		}
		if d.Type != "mqtt" {
			t.Errorf("devices[%d].Type = %q, want mqtt", i, d.Type)
		}
	}
}

func TestBridgeConnected(t *testing.T) {
	b := New()
	if b.Connected() {
		t.Error("unstarted bridge reports connected")
	}

	b, ft := startedBridge(t)
	if !b.Connected() {
		t.Error("started bridge with live transport reports disconnected")
	}

	ft.mu.Lock()
	ft.connected = false
	ft.mu.Unlock()
	if b.Connected() {
		t.Error("bridge reports connected after transport dropped")
	}
}

func TestBridgeImplementsAdapter(t *testing.T) {
	var _ adapter.Adapter = New()
	var _ adapter.Scanner = New()
}
