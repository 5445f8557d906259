package mqtt

import (
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/iotbridge-core/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang with iotbridge-specific functionality.
//
// It provides connection management, message publishing, subscription
// handling, and automatic re-subscription after reconnects.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are automatically restored on reconnection.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig

	// subscriptions tracks active subscriptions for re-subscription on
	// reconnect. Cleared on Close so a fresh connect starts clean.
	subscriptions map[string]subscription
	subMu         sync.RWMutex

	// connected tracks current connection state. closed is terminal:
	// once Close has run, late reconnect callbacks must not flip the
	// client back to connected.
	connected bool
	closed    bool
	connMu    sync.RWMutex

	// Callbacks for connection events (optional, set via SetOnConnect/SetOnDisconnect).
	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	// logger for error/panic logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription holds subscription details for re-subscription on reconnect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked in separate goroutines by the paho library.
// They should not block for extended periods.
//
// Parameters:
//   - topic: The topic the message was received on (wildcards expanded)
//   - payload: The raw message payload (typically JSON)
//
// Returns:
//   - error: Logged but does not affect message acknowledgment
type MessageHandler func(topic string, payload []byte) error

// Connect establishes a connection to the MQTT broker.
//
// The OnConnect handler runs on the initial connect and on every
// reconnect, restoring all tracked subscriptions each time.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: If the initial connection fails within the timeout
func Connect(cfg config.MQTTConfig) (*Client, error) {
	opts := buildClientOptions(cfg)

	c := &Client{
		cfg:           cfg,
		options:       opts,
		subscriptions: make(map[string]subscription),
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// Set connected state immediately after successful connection.
	// The OnConnectHandler callback runs asynchronously and may not have
	// executed yet, so set it here to ensure IsConnected() returns true.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return c, nil
}

// handleConnect is called when a connection is established, on the first
// connect and on every reconnect.
func (c *Client) handleConnect() {
	c.connMu.Lock()
	if c.closed {
		c.connMu.Unlock()
		// Paho's auto-reconnect raced Close; put the transport back down.
		c.client.Disconnect(0)
		return
	}
	c.connected = true
	c.connMu.Unlock()

	c.restoreSubscriptions()

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect is called when the connection is lost.
func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions re-asserts every tracked topic against the broker.
// Runs synchronously with the connect acknowledgment so no message window
// is left uncovered after a reconnect.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	if len(c.subscriptions) == 0 {
		return
	}

	// Batch all topics into one SubscribeMultiple call.
	filters := make(map[string]byte, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		filters[sub.topic] = sub.qos
	}

	token := c.client.SubscribeMultiple(filters, c.dispatchTracked)
	if token.WaitTimeout(defaultPublishTimeout) {
		if err := token.Error(); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Error("subscription restore failed", "error", err)
			}
		}
	}
}

// dispatchTracked routes a message from the batched restore subscription
// to the handler registered for its topic filter.
func (c *Client) dispatchTracked(_ pahomqtt.Client, msg pahomqtt.Message) {
	c.subMu.RLock()
	var handler MessageHandler
	for _, sub := range c.subscriptions {
		if MatchTopic(sub.topic, msg.Topic()) {
			handler = sub.handler
			break
		}
	}
	c.subMu.RUnlock()

	if handler == nil {
		return
	}
	c.wrapHandler(handler)(nil, msg)
}

// Close gracefully disconnects from the MQTT broker.
//
// Close is idempotent: a second call while already disconnected is a
// no-op, not an error. The local subscription table is cleared so a
// subsequent reconnect starts clean.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.connMu.Lock()
	alreadyClosed := c.closed
	c.closed = true
	c.connected = false
	c.connMu.Unlock()

	c.subMu.Lock()
	c.subscriptions = make(map[string]subscription)
	c.subMu.Unlock()

	if !alreadyClosed {
		// Disconnect even when the connection is currently lost: paho's
		// auto-reconnect loop keeps running until told to stop, and a
		// reconnect after Close would leak the transport. The quiesce
		// period lets in-flight publishes complete.
		c.client.Disconnect(defaultDisconnectQuiesce)
	}

	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// SetOnConnect sets a callback invoked when a connection is established.
// This is called on the initial connect and on every reconnect, after
// subscriptions have been restored.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
// The error parameter describes why the connection was lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for error and panic logging.
// If not set, errors in handlers are silently ignored.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}
