// Package audit records system activity to append-only JSON-lines
// files, one file per calendar day.
//
// Each event is a single JSON object on its own line in
// events-YYYY-MM-DD.log under the configured directory. Files roll over
// at the first write after midnight UTC. Writes are synchronous and
// serialized; a recording failure is reported to the caller but never
// crashes recording for later events.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Domain errors for the audit recorder.
var (
	// ErrInvalidEvent is returned for events missing required fields.
	ErrInvalidEvent = errors.New("audit: invalid event")

	// ErrWriteFailed is returned when an event could not be persisted.
	ErrWriteFailed = errors.New("audit: write failed")

	// ErrClosed is returned when recording on a closed recorder.
	ErrClosed = errors.New("audit: recorder closed")
)

// Event is a single audit trail entry.
type Event struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Recorder persists audit events.
type Recorder interface {
	Record(event Event) error
}

// NopRecorder discards every event. Used when auditing is disabled.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(Event) error { return nil }

// FileRecorder appends events to date-partitioned JSON-lines files.
//
// Thread Safety: all methods are safe for concurrent use.
type FileRecorder struct {
	mu sync.Mutex

	dir    string
	file   *os.File
	day    string
	closed bool

	// now is replaced in tests to pin the partition date.
	now func() time.Time
}

// NewFileRecorder creates a recorder writing under dir, creating the
// directory if needed.
func NewFileRecorder(dir string) (*FileRecorder, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: directory is empty", ErrWriteFailed)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create directory: %w", ErrWriteFailed, err)
	}
	return &FileRecorder{
		dir: dir,
		now: time.Now,
	}, nil
}

// Record appends one event as a JSON line, assigning an ID and
// timestamp when absent.
//
// Returns:
//   - ErrInvalidEvent if action or entity type is empty
//   - ErrClosed after Close
//   - ErrWriteFailed when the file cannot be written
func (r *FileRecorder) Record(event Event) error {
	if event.Action == "" {
		return fmt.Errorf("%w: action is required", ErrInvalidEvent)
	}
	if event.EntityType == "" {
		return fmt.Errorf("%w: entity type is required", ErrInvalidEvent)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	now := r.now().UTC()
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}

	if err := r.rotate(now); err != nil {
		return err
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrWriteFailed, err)
	}
	line = append(line, '\n')

	if _, err := r.file.Write(line); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// Close flushes and closes the current partition file. Record calls
// after Close fail with ErrClosed. Safe to call more than once.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if r.file == nil {
		return nil
	}
	file := r.file
	r.file = nil
	if err := file.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrWriteFailed, err)
	}
	return nil
}

// rotate opens the partition file for the given day, closing the
// previous day's file on the first write after midnight. Caller holds
// the mutex.
func (r *FileRecorder) rotate(now time.Time) error {
	day := now.Format("2006-01-02")
	if r.file != nil && day == r.day {
		return nil
	}

	if r.file != nil {
		r.file.Close()
		r.file = nil
	}

	path := filepath.Join(r.dir, fmt.Sprintf("events-%s.log", day))
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrWriteFailed, path, err)
	}

	r.file = file
	r.day = day
	return nil
}
