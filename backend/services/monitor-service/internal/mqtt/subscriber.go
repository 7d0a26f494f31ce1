package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MessageHandler receives every raw frame from the broker. It must not
// block; slow work belongs on the dispatcher queue.
type MessageHandler func(topic string, payload []byte)

// Settings configures the broker connection.
type Settings struct {
	Broker   string
	Port     int
	ClientID string
	Topic    string
}

// Subscriber maintains the broker connection and forwards raw frames to the
// registered handler.
type Subscriber struct {
	client  mqtt.Client
	topic   string
	broker  string
	port    int
	logger  *zap.Logger
	handler MessageHandler

	subOnce  sync.Once
	firstSub chan error

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSubscriber builds the MQTT client with auto-reconnect and keepalive.
func NewSubscriber(settings Settings, handler MessageHandler, logger *zap.Logger) *Subscriber {
	s := &Subscriber{
		topic:    settings.Topic,
		broker:   settings.Broker,
		port:     settings.Port,
		logger:   logger,
		handler:  handler,
		firstSub: make(chan error, 1),
		stopCh:   make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", settings.Broker, settings.Port))
	opts.SetClientID(settings.ClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(s.onConnect)

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})

	s.client = mqtt.NewClient(opts)
	return s
}

// onConnect runs on every connect and reconnect. The session is clean, so
// the broker forgets the subscription whenever the connection drops and it
// must be re-established here each time, not once at startup.
func (s *Subscriber) onConnect(client mqtt.Client) {
	s.logger.Info("mqtt connected", zap.String("broker", s.broker), zap.Int("port", s.port))

	err := s.subscribe(client)
	if err != nil {
		s.logger.Error("mqtt subscribe failed",
			zap.String("topic", s.topic),
			zap.Error(err))
	}
	s.subOnce.Do(func() { s.firstSub <- err })
}

// Connect establishes the broker connection and blocks until the first
// subscription attempt reports back. Respects ctx and Disconnect().
func (s *Subscriber) Connect(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return fmt.Errorf("subscriber stopped")
	default:
	}

	if s.client.IsConnected() {
		return nil
	}

	token := s.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			break
		}

		select {
		case <-ctx.Done():
			s.client.Disconnect(0)
			return ctx.Err()
		case <-s.stopCh:
			s.client.Disconnect(0)
			return fmt.Errorf("subscriber stopped")
		default:
		}
	}

	select {
	case err := <-s.firstSub:
		if err != nil {
			s.client.Disconnect(0)
			return fmt.Errorf("subscribe: %w", err)
		}
	case <-ctx.Done():
		s.client.Disconnect(0)
		return ctx.Err()
	case <-s.stopCh:
		s.client.Disconnect(0)
		return fmt.Errorf("subscriber stopped")
	}

	return nil
}

func (s *Subscriber) subscribe(client mqtt.Client) error {
	qos := byte(1) // at-least-once; the dedup gate absorbs redelivery

	token := client.Subscribe(s.topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		s.handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", s.topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", s.topic, token.Error())
	}

	s.logger.Info("subscribed to mqtt topic", zap.String("topic", s.topic), zap.Uint8("qos", uint8(qos)))
	return nil
}

// IsConnected returns whether the client is connected.
func (s *Subscriber) IsConnected() bool {
	return s.client.IsConnected()
}

// Disconnect stops the subscriber and closes the MQTT connection.
// Idempotent and safe to call multiple times.
func (s *Subscriber) Disconnect() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	if s.client != nil && s.client.IsConnected() {
		token := s.client.Unsubscribe(s.topic)
		token.WaitTimeout(2 * time.Second)
	}

	if s.client != nil {
		s.client.Disconnect(250)
	}

	s.logger.Info("mqtt subscriber disconnected")
}
