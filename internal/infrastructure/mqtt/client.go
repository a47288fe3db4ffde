package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/ponbike-core/internal/infrastructure/config"
)

// Logger receives handler failures. *logging.Logger satisfies it.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Hooks are optional callbacks fixed at Connect time.
type Hooks struct {
	Logger Logger

	// OnConnect runs after every successful connect, the first included.
	OnConnect func()

	// OnConnectionLost runs when paho reports the link dropped. paho keeps
	// reconnecting in the background.
	OnConnectionLost func(err error)
}

// MessageHandler receives inbound commands. It runs on a paho goroutine and
// must not block; a returned error is logged.
type MessageHandler func(topic string, payload []byte) error

// Client is the bridge's broker link. It announces the process on
// ponbike/status (with a Last Will for crashes) and re-subscribes command
// topics after each reconnect. Safe for concurrent use.
type Client struct {
	paho   pahomqtt.Client
	cfg    config.MQTTConfig
	hooks  Hooks
	online atomic.Bool

	mu     sync.Mutex
	routes map[string]route
}

// route is a tracked subscription.
type route struct {
	qos     byte
	deliver pahomqtt.MessageHandler
}

func newClient(cfg config.MQTTConfig, hooks Hooks) *Client {
	return &Client{cfg: cfg, hooks: hooks, routes: make(map[string]route)}
}

// Connect dials the broker and waits for the first session.
func Connect(cfg config.MQTTConfig, hooks Hooks) (*Client, error) {
	c := newClient(cfg, hooks)

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.linkUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.linkDown(err) })

	c.paho = pahomqtt.NewClient(opts)
	if err := await(c.paho.Connect(), ErrConnect, defaultConnectTimeout); err != nil {
		return nil, err
	}
	// linkUp runs on a paho goroutine and may not have fired yet.
	c.online.Store(true)
	return c, nil
}

func (c *Client) linkUp() {
	c.online.Store(true)

	c.mu.Lock()
	for topic, r := range c.routes {
		c.paho.Subscribe(topic, r.qos, r.deliver)
	}
	c.mu.Unlock()

	c.publishStatus(statusOnline, "")
	if c.hooks.OnConnect != nil {
		c.hooks.OnConnect()
	}
}

func (c *Client) linkDown(err error) {
	c.online.Store(false)
	if c.hooks.OnConnectionLost != nil {
		c.hooks.OnConnectionLost(err)
	}
}

// publishStatus sends the retained ponbike/status document.
func (c *Client) publishStatus(status, reason string) pahomqtt.Token {
	payload := statusPayload(status, c.cfg.Broker.ClientID, reason)
	return c.paho.Publish(Topics{}.Status(), byte(c.cfg.QoS), true, payload)
}

// Close marks the bridge offline on ponbike/status and disconnects.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		c.publishStatus(statusOffline, reasonGraceful).WaitTimeout(defaultPublishTimeout)
	}
	c.paho.Disconnect(defaultDisconnectQuiesce)
	c.online.Store(false)
	return nil
}

// HealthCheck returns ErrNotConnected while the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the last known link state.
func (c *Client) IsConnected() bool {
	return c.paho != nil && c.online.Load() && c.paho.IsConnected()
}
