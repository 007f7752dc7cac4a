package mqtt

import (
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 1000 // milliseconds
	defaultKeepAlive         = 60 * time.Second
	maxReconnectInterval     = time.Minute

	maxQoS = 2
)

// MessageHandler receives one message. A returned error is logged.
type MessageHandler func(topic string, payload []byte) error

// Client is the part of a broker connection the Bridge needs.
type Client interface {
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(topic string, handler MessageHandler) error
	Close() error
}

type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
	// StatusTopic receives "online" on connect and "offline" on close or as
	// the broker's last will.
	StatusTopic string
	// ConnectTimeout bounds the first connection. Zero means 10s.
	ConnectTimeout time.Duration
	// RetryInterval is the pause between failed connection attempts. Zero
	// keeps the paho default.
	RetryInterval time.Duration
}

// PahoClient is a Client backed by eclipse/paho.mqtt.golang. Subscriptions
// are replayed after every reconnect.
type PahoClient struct {
	client pahomqtt.Client
	cfg    Config
	log    zerolog.Logger

	subMu         sync.RWMutex
	subscriptions map[string]MessageHandler
}

func (cfg Config) connectTimeout() time.Duration {
	if cfg.ConnectTimeout > 0 {
		return cfg.ConnectTimeout
	}
	return defaultConnectTimeout
}

func buildClientOptions(cfg Config) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetMaxReconnectInterval(maxReconnectInterval)
	opts.SetConnectTimeout(cfg.connectTimeout())
	if cfg.RetryInterval > 0 {
		opts.SetConnectRetryInterval(cfg.RetryInterval)
	}
	opts.SetKeepAlive(defaultKeepAlive)
	if cfg.StatusTopic != "" {
		opts.SetWill(cfg.StatusTopic, "offline", cfg.QoS, true)
	}
	return opts
}

// Connect dials the broker and waits for the first connection.
func Connect(cfg Config) (*PahoClient, error) {
	if cfg.QoS > maxQoS {
		return nil, ErrInvalidQoS
	}
	c := &PahoClient{
		cfg:           cfg,
		log:           log.Logger.With().Str("broker", cfg.Broker).Logger(),
		subscriptions: make(map[string]MessageHandler),
	}

	opts := buildClientOptions(cfg)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.log.Info().Msg("MQTT connected")
		c.restoreSubscriptions()
		if cfg.StatusTopic != "" {
			c.client.Publish(cfg.StatusTopic, cfg.QoS, true, "online")
		}
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.log.Warn().Err(err).Msg("MQTT connection lost")
	})

	c.client = pahomqtt.NewClient(opts)
	if err := c.connect(cfg.connectTimeout()); err != nil {
		return nil, err
	}
	return c, nil
}

// connect waits for the first connection. On failure the client is
// disconnected so paho stops retrying in the background.
func (c *PahoClient) connect(timeout time.Duration) error {
	token := c.client.Connect()
	var err error
	if !token.WaitTimeout(timeout) {
		err = fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, timeout)
	} else if token.Error() != nil {
		err = fmt.Errorf("%w: %w", ErrConnectionFailed, token.Error())
	}
	if err != nil {
		c.client.Disconnect(0)
		return err
	}
	return nil
}

func (c *PahoClient) Publish(topic string, payload []byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.client.IsConnected() {
		return ErrNotConnected
	}
	token := c.client.Publish(topic, c.cfg.QoS, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

func (c *PahoClient) Subscribe(topic string, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.client.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subscriptions[topic] = handler
	c.subMu.Unlock()

	token := c.client.Subscribe(topic, c.cfg.QoS, c.wrapHandler(handler))
	var err error
	if !token.WaitTimeout(defaultPublishTimeout) {
		err = fmt.Errorf("timeout after %v", defaultPublishTimeout)
	} else {
		err = token.Error()
	}
	if err != nil {
		c.subMu.Lock()
		delete(c.subscriptions, topic)
		c.subMu.Unlock()
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

func (c *PahoClient) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	for topic, handler := range c.subscriptions {
		c.client.Subscribe(topic, c.cfg.QoS, c.wrapHandler(handler))
	}
}

func (c *PahoClient) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.log.Error().Str("topic", msg.Topic()).Interface("panic", r).Msg("MQTT handler panic recovered")
			}
		}()
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.log.Warn().Err(err).Str("topic", msg.Topic()).Msg("MQTT handler returned error")
		}
	}
}

// Close publishes the offline status and disconnects.
func (c *PahoClient) Close() error {
	if c.client == nil {
		return nil
	}
	if c.cfg.StatusTopic != "" && c.client.IsConnected() {
		c.client.Publish(c.cfg.StatusTopic, c.cfg.QoS, true, "offline").WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}
