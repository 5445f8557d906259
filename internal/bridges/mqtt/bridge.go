package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/iotbridge-core/internal/adapter"
	"github.com/nerrad567/iotbridge-core/internal/infrastructure/config"
	transportmqtt "github.com/nerrad567/iotbridge-core/internal/infrastructure/mqtt"
)

// AdapterName is the protocol name the bridge registers under.
const AdapterName = "mqtt"

// transport is the subset of the MQTT client the bridge depends on.
// Satisfied by *transportmqtt.Client; narrowed for testability.
type transport interface {
	Subscribe(topic string, qos byte, handler transportmqtt.MessageHandler) error
	PublishPayload(topic string, payload any, qos byte, retained bool) error
	Close() error
	IsConnected() bool
}

// Logger is the minimal logging interface the bridge needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Bridge is the MQTT protocol adapter. It subscribes to the broker's
// device subtree, translates state topics into state-change
// notifications, and publishes commands onto per-device command topics.
//
// Thread Safety: all methods are safe for concurrent use.
type Bridge struct {
	mu sync.RWMutex

	cfg    config.MQTTConfig
	logger Logger

	// dial opens the transport connection. Replaced in tests.
	dial func(config.MQTTConfig) (transport, error)

	client      transport
	initialized bool
	started     bool

	// states caches the last observed state document per device ID.
	states   map[string]map[string]any
	handlers []adapter.StateChangeHandler
}

// New creates an uninitialized MQTT bridge.
func New() *Bridge {
	return &Bridge{
		logger: noopLogger{},
		dial: func(cfg config.MQTTConfig) (transport, error) {
			return transportmqtt.Connect(cfg)
		},
		states: make(map[string]map[string]any),
	}
}

// SetLogger replaces the bridge's logger. Must be called before Start.
func (b *Bridge) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
}

// Name returns the protocol name.
func (b *Bridge) Name() string {
	return AdapterName
}

// Initialize parses and validates the bridge configuration. No broker
// connection is made until Start.
func (b *Bridge) Initialize(cfg adapter.Config) error {
	parsed, err := parseConfig(cfg)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = parsed
	b.initialized = true
	return nil
}

// Start connects to the broker and subscribes to the device subtree.
// A single wildcard subscription covers every device under the base
// topic; per-device routing happens in handleMessage.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if !b.initialized {
		b.mu.Unlock()
		return ErrNotInitialized
	}
	if b.started {
		b.mu.Unlock()
		return ErrAlreadyStarted
	}
	cfg := b.cfg
	dial := b.dial
	b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := dial(cfg)
	if err != nil {
		return fmt.Errorf("mqtt bridge: connect: %w", err)
	}

	filter := subtreeFilter(cfg.BaseTopic)
	if err := client.Subscribe(filter, byte(cfg.QoS), b.handleMessage); err != nil {
		client.Close()
		return fmt.Errorf("mqtt bridge: subscribe %s: %w", filter, err)
	}

	b.mu.Lock()
	b.client = client
	b.started = true
	logger := b.logger
	b.mu.Unlock()

	logger.Info("mqtt bridge started",
		"host", cfg.Broker.Host,
		"port", cfg.Broker.Port,
		"base_topic", cfg.BaseTopic,
	)
	return nil
}

// Stop disconnects from the broker. Safe to call more than once; only
// the first call after Start tears the connection down.
func (b *Bridge) Stop(_ context.Context) error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return nil
	}
	client := b.client
	b.client = nil
	b.started = false
	logger := b.logger
	b.mu.Unlock()

	if client != nil {
		if err := client.Close(); err != nil {
			return fmt.Errorf("mqtt bridge: close: %w", err)
		}
	}
	logger.Info("mqtt bridge stopped")
	return nil
}

// DeviceState returns the last observed state for a device. Devices the
// bridge has not yet heard from report an empty state document.
func (b *Bridge) DeviceState(_ context.Context, deviceID string) (map[string]any, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st, ok := b.states[deviceID]
	if !ok {
		return map[string]any{}, nil
	}
	return cloneState(st), nil
}

// ExecuteCommand publishes the command payload to the device's command
// topic as JSON.
func (b *Bridge) ExecuteCommand(ctx context.Context, deviceID string, command map[string]any) error {
	if deviceID == "" {
		return fmt.Errorf("%w: device ID is empty", ErrInvalidCommand)
	}
	if command == nil {
		return fmt.Errorf("%w: command payload is nil", ErrInvalidCommand)
	}

	b.mu.RLock()
	started := b.started
	client := b.client
	cfg := b.cfg
	b.mu.RUnlock()

	if !started {
		return ErrNotStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	topic := CommandTopic(cfg.BaseTopic, deviceID)
	if err := client.PublishPayload(topic, command, byte(cfg.QoS), false); err != nil {
		return fmt.Errorf("mqtt bridge: publish %s: %w", topic, err)
	}
	return nil
}

// Connected reports whether the broker connection is currently up.
func (b *Bridge) Connected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.started && b.client != nil && b.client.IsConnected()
}

// OnDeviceStateChange registers a handler for asynchronous state
// observations. Handlers receive a private copy of the merged state.
func (b *Bridge) OnDeviceStateChange(handler adapter.StateChangeHandler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// ScanDevices reports every device the bridge has observed state for,
// sorted by ID. Passive discovery only; the broker is not probed.
func (b *Bridge) ScanDevices(ctx context.Context) ([]adapter.DiscoveredDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]string, 0, len(b.states))
	for id := range b.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	devices := make([]adapter.DiscoveredDevice, 0, len(ids))
	for _, id := range ids {
		devices = append(devices, adapter.DiscoveredDevice{ID: id, Type: AdapterName})
	}
	return devices, nil
}

// handleMessage routes an inbound publish from the device subtree. Only
// state topics are acted on; everything else under the base topic is
// ignored.
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	b.mu.RLock()
	base := b.cfg.BaseTopic
	logger := b.logger
	b.mu.RUnlock()

	deviceID, ok := DeviceIDFromTopic(base, topic)
	if !ok {
		return nil
	}

	var observed map[string]any
	if err := json.Unmarshal(payload, &observed); err != nil {
		logger.Warn("discarding malformed state payload",
			"topic", topic,
			"error", err,
		)
		return nil
	}

	merged, handlers := b.mergeObservation(deviceID, observed)

	logger.Debug("device state observed", "device_id", deviceID, "fields", len(observed))

	for _, handler := range handlers {
		handler(deviceID, cloneState(merged))
	}
	return nil
}

// mergeObservation folds an observed state document into the cache and
// returns the merged result plus the handler list to notify.
func (b *Bridge) mergeObservation(deviceID string, observed map[string]any) (map[string]any, []adapter.StateChangeHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, ok := b.states[deviceID]
	if !ok {
		current = make(map[string]any, len(observed))
	}
	for k, v := range observed {
		current[k] = v
	}
	b.states[deviceID] = current

	handlers := make([]adapter.StateChangeHandler, len(b.handlers))
	copy(handlers, b.handlers)
	return current, handlers
}

// cloneState returns a shallow copy of a state document.
func cloneState(st map[string]any) map[string]any {
	out := make(map[string]any, len(st))
	for k, v := range st {
		out[k] = v
	}
	return out
}
