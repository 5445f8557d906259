package broker

import (
	"fmt"
	"net"
	"sync"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/nerrad567/iotbridge-core/internal/infrastructure/config"
)

// Logger is the minimal logging interface the broker needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Broker wraps an embedded mochi-mqtt server bound to the first free
// port at or above the configured base port.
//
// Thread Safety: all methods are safe for concurrent use.
type Broker struct {
	mu sync.Mutex

	cfg    config.BrokerConfig
	logger Logger

	server  *mochi.Server
	port    int
	started bool
}

// New creates an embedded broker from configuration. The server is not
// started and no port is bound until Start.
func New(cfg config.BrokerConfig) *Broker {
	return &Broker{
		cfg:    cfg,
		logger: noopLogger{},
	}
}

// SetLogger replaces the broker's logger. Must be called before Start.
func (b *Broker) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
}

// Start probes for a free port, binds the embedded server to it, and
// begins serving in a background goroutine.
//
// Returns:
//   - ErrAlreadyStarted if the broker is running
//   - ErrInvalidConfig for an unusable port range
//   - ErrNoFreePort when every candidate port is bound
func (b *Broker) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return ErrAlreadyStarted
	}
	if b.cfg.BasePort < 1 || b.cfg.BasePort > 65535 {
		return fmt.Errorf("%w: base_port %d out of range", ErrInvalidConfig, b.cfg.BasePort)
	}
	if b.cfg.MaxPortAttempts < 1 {
		return fmt.Errorf("%w: max_port_attempts must be at least 1", ErrInvalidConfig)
	}

	host := b.cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}

	port, err := probePort(host, b.cfg.BasePort, b.cfg.MaxPortAttempts, b.logger)
	if err != nil {
		return err
	}

	server := mochi.New(&mochi.Options{InlineClient: true})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return fmt.Errorf("broker: add auth hook: %w", err)
	}

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	tcp := listeners.NewTCP(listeners.Config{ID: "tcp", Address: addr})
	if err := server.AddListener(tcp); err != nil {
		return fmt.Errorf("broker: bind %s: %w", addr, err)
	}

	go func() {
		// Serve blocks until Close; its error surfaces there, not here.
		_ = server.Serve()
	}()

	b.server = server
	b.port = port
	b.started = true
	b.logger.Info("embedded broker started", "addr", addr)
	return nil
}

// Stop shuts the embedded server down. Safe to call more than once and
// before Start.
func (b *Broker) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return nil
	}
	server := b.server
	b.server = nil
	b.started = false

	if err := server.Close(); err != nil {
		return fmt.Errorf("broker: close: %w", err)
	}
	b.logger.Info("embedded broker stopped")
	return nil
}

// Port returns the bound port, or zero before a successful Start.
func (b *Broker) Port() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.port
}

// Running reports whether the broker is serving.
func (b *Broker) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}

// probePort finds the first bindable TCP port in [base, base+attempts).
// Each candidate is tested with a throwaway listener which is closed
// immediately; the small race against another process grabbing the port
// before the broker binds it is accepted.
func probePort(host string, base, attempts int, logger Logger) (int, error) {
	for i := 0; i < attempts; i++ {
		port := base + i
		if port > 65535 {
			break
		}
		addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Warn("port in use, trying next", "addr", addr)
			continue
		}
		ln.Close()
		return port, nil
	}
	return 0, fmt.Errorf("%w: %d attempts from port %d", ErrNoFreePort, attempts, base)
}
