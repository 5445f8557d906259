package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/iotbridge-core/internal/adapter"
	"github.com/nerrad567/iotbridge-core/internal/audit"
	"github.com/nerrad567/iotbridge-core/internal/queue"
	"github.com/nerrad567/iotbridge-core/internal/retry"
)

// Command is one outbound device command awaiting execution.
type Command struct {
	// Adapter names the protocol adapter to route through.
	Adapter string

	// DeviceID identifies the target device within that adapter.
	DeviceID string

	// Payload is the command document; its shape is owned by the
	// adapter protocol.
	Payload map[string]any
}

// Logger is the minimal logging interface the dispatcher needs.
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

// Dispatcher owns the command queue and drains it through registered
// adapters under the retry policy.
//
// Commands execute strictly in submission order; each runs to
// completion (success or exhausted retries) before the next starts.
//
// Thread Safety: all methods are safe for concurrent use.
type Dispatcher struct {
	mu sync.Mutex

	commands *queue.Queue[Command]
	registry *adapter.Registry
	retryCfg retry.Config

	logger    Logger
	recorder  audit.Recorder
	onFailure func(cmd Command, err error)

	// pending wakes the worker when a command arrives. Buffered so a
	// Submit during an active drain never blocks.
	pending chan struct{}
}

// New creates a dispatcher draining into the given registry.
//
// Returns queue.ErrInvalidCapacity for a non-positive capacity and
// retry.ErrInvalidConfig for an unusable retry policy.
func New(registry *adapter.Registry, capacity int, retryCfg retry.Config) (*Dispatcher, error) {
	commands, err := queue.New[Command](capacity)
	if err != nil {
		return nil, err
	}
	if err := retryCfg.Validate(); err != nil {
		return nil, err
	}

	return &Dispatcher{
		commands: commands,
		registry: registry,
		retryCfg: retryCfg,
		logger:   noopLogger{},
		recorder: audit.NopRecorder{},
		pending:  make(chan struct{}, 1),
	}, nil
}

// SetLogger replaces the dispatcher's logger. Must be called before Run.
func (d *Dispatcher) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logger = logger
}

// SetRecorder replaces the audit recorder. Must be called before Run.
func (d *Dispatcher) SetRecorder(recorder audit.Recorder) {
	if recorder == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recorder = recorder
}

// OnFailure registers a callback invoked when a command fails
// terminally, after retries are exhausted or the adapter is missing.
// Must be called before Run.
func (d *Dispatcher) OnFailure(callback func(cmd Command, err error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onFailure = callback
}

// Submit enqueues one command without blocking.
//
// Returns:
//   - ErrInvalidCommand for a missing adapter name, device ID, or payload
//   - ErrAdapterNotFound when the named adapter is not registered
//   - queue.ErrQueueFull when the queue is at capacity
func (d *Dispatcher) Submit(cmd Command) error {
	if cmd.Adapter == "" {
		return fmt.Errorf("%w: adapter name is empty", ErrInvalidCommand)
	}
	if cmd.DeviceID == "" {
		return fmt.Errorf("%w: device ID is empty", ErrInvalidCommand)
	}
	if cmd.Payload == nil {
		return fmt.Errorf("%w: payload is nil", ErrInvalidCommand)
	}
	if _, ok := d.registry.Get(cmd.Adapter); !ok {
		return fmt.Errorf("%w: %s", ErrAdapterNotFound, cmd.Adapter)
	}

	if err := d.commands.Enqueue(cmd); err != nil {
		return err
	}

	select {
	case d.pending <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of queued commands.
func (d *Dispatcher) Pending() int {
	return d.commands.Len()
}

// Run drains the queue until ctx is cancelled, then returns ctx's
// error. Commands already queued when cancellation hits are left in
// place; execution in progress is interrupted through the context
// handed to the adapter.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		d.drain(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.pending:
		}
	}
}

// drain executes queued commands in FIFO order until the queue is
// empty or ctx is cancelled.
func (d *Dispatcher) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		cmd, ok := d.commands.Dequeue()
		if !ok {
			return
		}
		d.execute(ctx, cmd)
	}
}

// execute runs one command through its adapter under the retry policy
// and reports the outcome.
func (d *Dispatcher) execute(ctx context.Context, cmd Command) {
	d.mu.Lock()
	logger := d.logger
	recorder := d.recorder
	onFailure := d.onFailure
	d.mu.Unlock()

	a, ok := d.registry.Get(cmd.Adapter)
	if !ok {
		// The adapter was present at Submit but has since gone away.
		d.fail(logger, recorder, onFailure, cmd, fmt.Errorf("%w: %s", ErrAdapterNotFound, cmd.Adapter))
		return
	}

	err := retry.Do(ctx, d.retryPolicy(logger, cmd), func(ctx context.Context) error {
		return a.ExecuteCommand(ctx, cmd.DeviceID, cmd.Payload)
	})
	if err != nil {
		d.fail(logger, recorder, onFailure, cmd, err)
		return
	}

	logger.Debug("command executed",
		"adapter", cmd.Adapter,
		"device_id", cmd.DeviceID,
	)

	if err := recorder.Record(audit.Event{
		Action:     "command",
		EntityType: "device",
		EntityID:   cmd.DeviceID,
		Source:     "dispatcher",
		Details:    map[string]any{"adapter": cmd.Adapter},
	}); err != nil {
		logger.Warn("audit record failed", "error", err)
	}
}

// retryPolicy clones the configured policy with a logging retry hook
// for this command.
func (d *Dispatcher) retryPolicy(logger Logger, cmd Command) retry.Config {
	cfg := d.retryCfg
	cfg.OnRetry = func(err error, attempt int, delay time.Duration) {
		logger.Warn("command attempt failed, retrying",
			"adapter", cmd.Adapter,
			"device_id", cmd.DeviceID,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
	}
	return cfg
}

// fail reports a terminal command failure to the log, the audit trail,
// and the failure hook.
func (d *Dispatcher) fail(logger Logger, recorder audit.Recorder, onFailure func(Command, error), cmd Command, err error) {
	logger.Error("command failed",
		"adapter", cmd.Adapter,
		"device_id", cmd.DeviceID,
		"error", err,
	)

	if auditErr := recorder.Record(audit.Event{
		Action:     "command_failed",
		EntityType: "device",
		EntityID:   cmd.DeviceID,
		Source:     "dispatcher",
		Details:    map[string]any{"adapter": cmd.Adapter, "error": err.Error()},
	}); auditErr != nil {
		logger.Warn("audit record failed", "error", auditErr)
	}

	if onFailure != nil {
		onFailure(cmd, err)
	}
}
