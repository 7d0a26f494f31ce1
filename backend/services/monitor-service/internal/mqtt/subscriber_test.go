package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type fakeClient struct {
	mu             sync.Mutex
	connected      bool
	connectErr     error
	subscribeErr   error
	subscribeCalls []string
	callback       paho.MessageHandler
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) IsConnectionOpen() bool { return c.IsConnected() }

func (c *fakeClient) Connect() paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectErr == nil {
		c.connected = true
	}
	return &fakeToken{err: c.connectErr}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *fakeClient) Publish(string, byte, bool, interface{}) paho.Token {
	return &fakeToken{}
}

func (c *fakeClient) Subscribe(topic string, _ byte, callback paho.MessageHandler) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribeCalls = append(c.subscribeCalls, topic)
	c.callback = callback
	return &fakeToken{err: c.subscribeErr}
}

func (c *fakeClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &fakeToken{}
}

func (c *fakeClient) Unsubscribe(...string) paho.Token { return &fakeToken{} }

func (c *fakeClient) AddRoute(string, paho.MessageHandler) {}

func (c *fakeClient) OptionsReader() paho.ClientOptionsReader {
	return paho.ClientOptionsReader{}
}

func (c *fakeClient) calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.subscribeCalls))
	copy(out, c.subscribeCalls)
	return out
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func newTestSubscriber(client *fakeClient, handler MessageHandler) *Subscriber {
	s := NewSubscriber(Settings{
		Broker:   "localhost",
		Port:     1883,
		ClientID: "test",
		Topic:    "stations/telemetry/#",
	}, handler, zap.NewNop())
	s.client = client
	return s
}

func TestOnConnectSubscribesOnEveryReconnect(t *testing.T) {
	client := &fakeClient{}
	s := newTestSubscriber(client, func(string, []byte) {})

	// The broker drops a clean session's subscriptions on every disconnect,
	// so each reconnect must subscribe again.
	s.onConnect(client)
	s.onConnect(client)
	s.onConnect(client)

	assert.Equal(t, []string{
		"stations/telemetry/#",
		"stations/telemetry/#",
		"stations/telemetry/#",
	}, client.calls())
}

func TestConnectWaitsForFirstSubscription(t *testing.T) {
	client := &fakeClient{}
	s := newTestSubscriber(client, func(string, []byte) {})

	result := make(chan error, 1)
	go func() {
		result <- s.Connect(context.Background())
	}()

	// Connect must not return before the connect handler has confirmed the
	// subscription, no matter how late the client fires it.
	select {
	case err := <-result:
		t.Fatalf("Connect returned before subscription confirmed: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	s.onConnect(client)

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Connect did not return after subscription")
	}
	assert.Len(t, client.calls(), 1)
}

func TestConnectSurfacesSubscribeFailure(t *testing.T) {
	client := &fakeClient{subscribeErr: errors.New("not authorized")}
	s := newTestSubscriber(client, func(string, []byte) {})

	result := make(chan error, 1)
	go func() {
		result <- s.Connect(context.Background())
	}()

	s.onConnect(client)

	select {
	case err := <-result:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "subscribe")
	case <-time.After(time.Second):
		t.Fatal("Connect did not return")
	}
}

func TestSubscribeForwardsFramesToHandler(t *testing.T) {
	type received struct {
		topic   string
		payload string
	}
	got := make(chan received, 1)

	client := &fakeClient{}
	s := newTestSubscriber(client, func(topic string, payload []byte) {
		got <- received{topic: topic, payload: string(payload)}
	})

	s.onConnect(client)
	require.NotNil(t, client.callback)

	client.callback(client, &fakeMessage{
		topic:   "stations/telemetry/ST-7",
		payload: []byte(`{"did":"ST-7"}`),
	})

	select {
	case frame := <-got:
		assert.Equal(t, "stations/telemetry/ST-7", frame.topic)
		assert.Equal(t, `{"did":"ST-7"}`, frame.payload)
	case <-time.After(time.Second):
		t.Fatal("handler never received the frame")
	}
}

func TestConnectAfterDisconnectRefuses(t *testing.T) {
	client := &fakeClient{}
	s := newTestSubscriber(client, func(string, []byte) {})

	s.Disconnect()

	err := s.Connect(context.Background())
	require.Error(t, err)
	assert.Empty(t, client.calls())
}
