package device

import (
	"context"
	"time"

	"github.com/nerrad567/iotbridge-core/internal/state"
)

// State history source values.
const (
	// StateHistorySourceAdapter marks changes observed from a protocol
	// adapter's state-change notifications.
	StateHistorySourceAdapter = "adapter"

	// StateHistorySourceCommand marks changes applied as the result of a
	// dispatched command.
	StateHistorySourceCommand = "command"
)

// StateHistoryEntry represents a single device state change record.
//
// Each entry stores a full snapshot of the merged state at the time the
// change was committed, providing a local audit trail independent of the
// time-series database.
type StateHistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// DeviceID is the unique identifier of the device.
	DeviceID string `json:"device_id"`

	// State is the merged state snapshot.
	State state.State `json:"state"`

	// Source identifies how the change was observed (adapter, command).
	Source string `json:"source"`

	// CreatedAt is the timestamp of the state change (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// StateHistoryRepository stores and retrieves device state change history.
//
// Implementations must be thread-safe and use UTC timestamps.
type StateHistoryRepository interface {
	// RecordStateChange records a committed state change.
	RecordStateChange(ctx context.Context, deviceID string, st state.State, source string) error

	// GetHistory returns recent state changes for the device, ordered
	// newest first. Implementations may clamp the limit.
	GetHistory(ctx context.Context, deviceID string, limit int) ([]StateHistoryEntry, error)
}
