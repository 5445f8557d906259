package mqtt

import (
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/iotbridge-core/internal/infrastructure/config"
)

// fakeToken is a paho token that completes immediately.
type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// fakePahoClient records calls without touching the network.
type fakePahoClient struct {
	mu             sync.Mutex
	connected      bool
	published      []fakePublish
	subscribed     []string
	batchRestores  []map[string]byte
	unsubscribed   []string
	disconnects    int
	subscribeErr   error
}

type fakePublish struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func (f *fakePahoClient) IsConnected() bool       { return f.connected }
func (f *fakePahoClient) IsConnectionOpen() bool  { return f.connected }
func (f *fakePahoClient) Connect() pahomqtt.Token { return &fakeToken{} }

func (f *fakePahoClient) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.connected = false
}

func (f *fakePahoClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, _ := payload.([]byte)
	f.published = append(f.published, fakePublish{topic: topic, payload: raw, qos: qos, retained: retained})
	return &fakeToken{}
}

func (f *fakePahoClient) Subscribe(topic string, _ byte, _ pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, topic)
	return &fakeToken{err: f.subscribeErr}
}

func (f *fakePahoClient) SubscribeMultiple(filters map[string]byte, _ pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	cloned := make(map[string]byte, len(filters))
	for k, v := range filters {
		cloned[k] = v
	}
	f.batchRestores = append(f.batchRestores, cloned)
	return &fakeToken{}
}

func (f *fakePahoClient) Unsubscribe(topics ...string) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, topics...)
	return &fakeToken{}
}

func (f *fakePahoClient) AddRoute(string, pahomqtt.MessageHandler) {}

func (f *fakePahoClient) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.ClientOptionsReader{}
}

// newTestClient builds a Client wired to a fake transport in the
// connected state.
func newTestClient(fake *fakePahoClient) *Client {
	fake.connected = true
	c := &Client{
		cfg:           config.MQTTConfig{QoS: 1},
		client:        fake,
		subscriptions: make(map[string]subscription),
	}
	c.connected = true
	return c
}

func noopHandler(string, []byte) error { return nil }

func TestPublish_Validation(t *testing.T) {
	c := newTestClient(&fakePahoClient{})

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "a/b", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "a/b", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublish_WhileDisconnected(t *testing.T) {
	c := newTestClient(&fakePahoClient{})
	c.handleDisconnect(errors.New("connection lost"))

	if err := c.Publish("a/b", []byte("x"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}

func TestSubscribe_WhileDisconnected(t *testing.T) {
	c := newTestClient(&fakePahoClient{})
	c.handleDisconnect(errors.New("connection lost"))

	if err := c.Subscribe("a/b", 1, noopHandler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}
}

func TestPublishPayload_Encoding(t *testing.T) {
	fake := &fakePahoClient{}
	c := newTestClient(fake)

	// Object payloads serialize to JSON.
	if err := c.PublishPayload("dev/set", map[string]any{"state": "ON"}, 1, false); err != nil {
		t.Fatalf("PublishPayload(map) error = %v", err)
	}
	// Strings pass through unchanged.
	if err := c.PublishPayload("dev/set", "TOGGLE", 1, false); err != nil {
		t.Fatalf("PublishPayload(string) error = %v", err)
	}

	if len(fake.published) != 2 {
		t.Fatalf("published %d messages, want 2", len(fake.published))
	}
	if got := string(fake.published[0].payload); got != `{"state":"ON"}` {
		t.Errorf("object payload = %s, want JSON encoding", got)
	}
	if got := string(fake.published[1].payload); got != "TOGGLE" {
		t.Errorf("string payload = %s, want pass-through", got)
	}
}

func TestSubscribe_TracksTopic(t *testing.T) {
	fake := &fakePahoClient{}
	c := newTestClient(fake)

	if err := c.Subscribe("devices/+/state", 1, noopHandler); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if c.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", c.SubscriptionCount())
	}
	if len(fake.subscribed) != 1 || fake.subscribed[0] != "devices/+/state" {
		t.Errorf("broker subscriptions = %v", fake.subscribed)
	}
}

func TestSubscribe_FailureUntracksTopic(t *testing.T) {
	fake := &fakePahoClient{subscribeErr: errors.New("broker refused")}
	c := newTestClient(fake)

	if err := c.Subscribe("devices/+/state", 1, noopHandler); !errors.Is(err, ErrSubscribeFailed) {
		t.Fatalf("Subscribe() error = %v, want ErrSubscribeFailed", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after failed subscribe, want 0", c.SubscriptionCount())
	}
}

func TestReconnect_RestoresSubscriptions(t *testing.T) {
	fake := &fakePahoClient{}
	c := newTestClient(fake)

	topics := []string{"zigbee2mqtt/#", "devices/+/state"}
	for _, topic := range topics {
		if err := c.Subscribe(topic, 1, noopHandler); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}

	// Simulate a transport drop followed by the reconnect acknowledgment.
	c.handleDisconnect(errors.New("connection lost"))
	c.handleConnect()

	if len(fake.batchRestores) != 1 {
		t.Fatalf("restore batches = %d, want 1", len(fake.batchRestores))
	}
	restored := fake.batchRestores[0]
	for _, topic := range topics {
		if _, ok := restored[topic]; !ok {
			t.Errorf("topic %q missing from restored batch %v", topic, restored)
		}
	}
}

func TestReconnect_RestoreRunsOnEveryConnect(t *testing.T) {
	fake := &fakePahoClient{}
	c := newTestClient(fake)

	if err := c.Subscribe("zigbee2mqtt/#", 1, noopHandler); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	// Two drops, two reconnects: each reconnect re-asserts the table.
	for i := 0; i < 2; i++ {
		c.handleDisconnect(errors.New("connection lost"))
		c.handleConnect()
	}

	if len(fake.batchRestores) != 2 {
		t.Errorf("restore batches = %d, want 2 (one per reconnect)", len(fake.batchRestores))
	}
}

func TestClose_IdempotentAndClearsSubscriptions(t *testing.T) {
	fake := &fakePahoClient{}
	c := newTestClient(fake)

	if err := c.Subscribe("zigbee2mqtt/#", 1, noopHandler); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after Close, want 0", c.SubscriptionCount())
	}
	if fake.disconnects != 1 {
		t.Errorf("disconnects = %d, want 1", fake.disconnects)
	}

	// Second Close while already disconnected is a no-op, not an error.
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
	if fake.disconnects != 1 {
		t.Errorf("disconnects = %d after second Close, want still 1", fake.disconnects)
	}
}

func TestClose_DuringOutageStopsReconnectLoop(t *testing.T) {
	fake := &fakePahoClient{}
	c := newTestClient(fake)

	// Connection drops, then the caller shuts down mid-outage.
	c.handleDisconnect(errors.New("connection lost"))
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if fake.disconnects != 1 {
		t.Errorf("disconnects = %d, want 1; the reconnect loop must be told to stop", fake.disconnects)
	}

	// A reconnect that was already in flight when Close ran must not
	// bring the client back up.
	fake.connected = true
	c.handleConnect()
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close, want false")
	}
	if fake.disconnects != 2 {
		t.Errorf("disconnects = %d after post-Close reconnect, want 2", fake.disconnects)
	}
	if len(fake.batchRestores) != 0 {
		t.Errorf("batchRestores = %d after post-Close reconnect, want 0", len(fake.batchRestores))
	}
}

func TestConnectionCallbacks(t *testing.T) {
	c := newTestClient(&fakePahoClient{})

	var gotConnect bool
	var gotErr error
	c.SetOnConnect(func() { gotConnect = true })
	c.SetOnDisconnect(func(err error) { gotErr = err })

	cause := errors.New("connection lost")
	c.handleDisconnect(cause)
	c.handleConnect()

	if !gotConnect {
		t.Error("OnConnect callback not invoked")
	}
	if !errors.Is(gotErr, cause) {
		t.Errorf("OnDisconnect error = %v, want %v", gotErr, cause)
	}
}
