package device

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/iotbridge-core/internal/state"
)

// emptyStateText is the resource body served before any state is recorded.
const emptyStateText = "{}"

// Logger defines the logging interface used by the Manager.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// TelemetrySink receives merged device states for time-series recording.
// Implementations must not block; failures are the sink's to report.
type TelemetrySink interface {
	WriteDeviceState(deviceID string, merged map[string]any)
}

// StateChangeSubscriber observes merged state changes after they have been
// committed to the store. Subscribers republish resource views; they must
// not mutate the state they receive.
type StateChangeSubscriber func(deviceID string, merged state.State)

// Manager layers device metadata over the state store.
//
// It owns the in-memory device directory, validates and applies state
// patches, and renders devices as resource views for the outer gateway.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - No ordering is guaranteed across independent callers patching the
//     same device concurrently.
type Manager struct {
	store state.Store

	mu      sync.RWMutex
	devices map[string]Device
	order   []string // Registration order, for stable enumeration.

	subMu       sync.RWMutex
	subscribers []StateChangeSubscriber

	history   StateHistoryRepository
	telemetry TelemetrySink
	logger    Logger
}

// NewManager creates a device manager reading and writing state through
// the given store.
func NewManager(store state.Store) *Manager {
	return &Manager{
		store:   store,
		devices: make(map[string]Device),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetHistory attaches a state-history repository. Recording is best-effort:
// a history failure is logged and never fails the patch that triggered it.
func (m *Manager) SetHistory(history StateHistoryRepository) {
	m.history = history
}

// SetTelemetry attaches a telemetry sink for merged state changes.
func (m *Manager) SetTelemetry(sink TelemetrySink) {
	m.telemetry = sink
}

// OnStateChange registers a subscriber for committed state changes.
// Subscribers are invoked synchronously, in registration order, after the
// store merge succeeds.
func (m *Manager) OnStateChange(sub StateChangeSubscriber) {
	m.subMu.Lock()
	m.subscribers = append(m.subscribers, sub)
	m.subMu.Unlock()
}

// RegisterDevice adds a device to the directory.
//
// The identifier must be non-empty and unused. A canonical resource URI
// colliding with an already-registered device is rejected rather than
// silently shadowing the earlier device's resource.
//
// Returns:
//   - error: ErrInvalidDevice, ErrDeviceExists, ErrResourceConflict, or nil
func (m *Manager) RegisterDevice(d Device) error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: identifier is required", ErrInvalidDevice)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.devices[d.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDeviceExists, d.ID)
	}

	uri := d.ResourceURI()
	for _, id := range m.order {
		if m.devices[id].ResourceURI() == uri {
			return fmt.Errorf("%w: %q collides with device %q", ErrResourceConflict, uri, id)
		}
	}

	m.devices[d.ID] = d.clone()
	m.order = append(m.order, d.ID)

	m.logger.Info("device registered", "device_id", d.ID, "protocol", d.Protocol, "uri", uri)
	return nil
}

// GetDevice returns a copy of the device with the given identifier.
func (m *Manager) GetDevice(id string) (Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.devices[id]
	if !ok {
		return Device{}, false
	}
	return d.clone(), true
}

// Devices returns all registered devices in registration order.
func (m *Manager) Devices() []Device {
	m.mu.RLock()
	defer m.mu.RUnlock()

	devices := make([]Device, 0, len(m.order))
	for _, id := range m.order {
		devices = append(devices, m.devices[id].clone())
	}
	return devices
}

// ApplyStatePatch shallow-merges a patch into a device's stored state.
//
// The patch must be a plain object; nil is rejected. A missing prior state
// is treated as empty (first write creates). Store-layer failures are
// wrapped as ErrStatePatchFailed with the original error as cause.
//
// After a successful merge the snapshot is recorded to history and
// telemetry (both best-effort) and fanned out to state-change subscribers.
//
// Parameters:
//   - ctx: Context for history recording
//   - deviceID: Device identifier (store key)
//   - patch: Partial state; top-level keys replace their previous values
//   - source: Origin of the change for the history trail (adapter, command)
//
// Returns:
//   - state.State: The merged state after the patch
//   - error: Validation or wrapped store error
func (m *Manager) ApplyStatePatch(ctx context.Context, deviceID string, patch map[string]any, source string) (state.State, error) {
	if strings.TrimSpace(deviceID) == "" {
		return nil, fmt.Errorf("%w: identifier is required", ErrInvalidDevice)
	}
	if patch == nil {
		return nil, fmt.Errorf("%w: patch must be a plain object", ErrInvalidPatch)
	}

	merged, err := m.store.Patch(deviceID, state.State(patch))
	if err != nil {
		return nil, fmt.Errorf("%w: device %q: %w", ErrStatePatchFailed, deviceID, err)
	}

	m.record(ctx, deviceID, merged, source)
	m.notify(deviceID, merged)

	return merged, nil
}

// DeviceState returns the stored state for a device, or an empty state
// when nothing has been recorded yet.
func (m *Manager) DeviceState(deviceID string) (state.State, error) {
	st, found, err := m.store.Get(deviceID)
	if err != nil {
		return nil, fmt.Errorf("reading state for %q: %w", deviceID, err)
	}
	if !found {
		return state.State{}, nil
	}
	return st, nil
}

// DeviceStates renders every registered device as a resource view.
//
// Parameters:
//   - filter: Optional substring; when non-empty, only resources whose URI
//     contains it are returned
//
// Returns:
//   - []Resource: Resource views in device registration order
//   - error: Store-layer failure reading a device's state
func (m *Manager) DeviceStates(filter string) ([]Resource, error) {
	devices := m.Devices()

	resources := make([]Resource, 0, len(devices))
	for _, d := range devices {
		uri := d.ResourceURI()
		if filter != "" && !strings.Contains(uri, filter) {
			continue
		}

		resource, err := m.render(d, uri)
		if err != nil {
			return nil, err
		}
		resources = append(resources, resource)
	}
	return resources, nil
}

// ReadDeviceResource resolves a resource URI back to its device and
// returns the rendered view. Matching recomputes each device's canonical
// URI and compares by equality.
//
// Returns:
//   - Resource: The rendered view
//   - error: ErrResourceNotFound when no device's URI matches
func (m *Manager) ReadDeviceResource(uri string) (Resource, error) {
	for _, d := range m.Devices() {
		candidate := d.ResourceURI()
		if candidate != uri {
			continue
		}
		return m.render(d, candidate)
	}
	return Resource{}, fmt.Errorf("%w: %q", ErrResourceNotFound, uri)
}

// render builds the resource view for a device.
func (m *Manager) render(d Device, uri string) (Resource, error) {
	text := emptyStateText

	st, found, err := m.store.Get(d.ID)
	if err != nil {
		return Resource{}, fmt.Errorf("reading state for %q: %w", d.ID, err)
	}
	if found {
		raw, marshalErr := json.Marshal(st)
		if marshalErr != nil {
			return Resource{}, fmt.Errorf("encoding state for %q: %w", d.ID, marshalErr)
		}
		text = string(raw)
	}

	return Resource{
		URI:         uri,
		Title:       d.Name,
		Description: describe(d),
		MIMEType:    "application/json",
		Text:        text,
	}, nil
}

// record persists the merged snapshot to the history trail. History is a
// peripheral; failures are logged, never propagated to the patch caller.
func (m *Manager) record(ctx context.Context, deviceID string, merged state.State, source string) {
	if m.history != nil {
		if err := m.history.RecordStateChange(ctx, deviceID, merged, source); err != nil {
			m.logger.Warn("state history write failed", "device_id", deviceID, "error", err)
		}
	}
	if m.telemetry != nil {
		m.telemetry.WriteDeviceState(deviceID, merged)
	}
}

// notify fans the committed state out to subscribers.
func (m *Manager) notify(deviceID string, merged state.State) {
	m.subMu.RLock()
	subscribers := m.subscribers
	m.subMu.RUnlock()

	for _, sub := range subscribers {
		sub(deviceID, state.Clone(merged))
	}
}
