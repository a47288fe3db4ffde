package mqtt

import (
	"fmt"
	"maps"
	"slices"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Subscribe routes messages on topic (wildcards allowed) to handler. The
// route survives reconnects until Unsubscribe.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := checkRequest(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribe, topic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	r := route{qos: qos, deliver: c.guard(handler)}
	if err := await(c.paho.Subscribe(topic, qos, r.deliver), ErrSubscribe, defaultPublishTimeout); err != nil {
		return err
	}

	c.mu.Lock()
	c.routes[topic] = r
	c.mu.Unlock()
	return nil
}

// Unsubscribe drops the route for topic. Messages already in flight may
// still reach the handler.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrEmptyTopic
	}

	c.mu.Lock()
	delete(c.routes, topic)
	c.mu.Unlock()

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return await(c.paho.Unsubscribe(topic), ErrSubscribe, defaultPublishTimeout)
}

// Routes returns the subscribed topics in sorted order.
func (c *Client) Routes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Sorted(maps.Keys(c.routes))
}

// guard adapts handler to paho. Errors are logged and panics recovered.
func (c *Client) guard(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		log := c.hooks.Logger
		defer func() {
			if r := recover(); r != nil && log != nil {
				log.Error("MQTT handler panicked", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil && log != nil {
			log.Warn("MQTT handler failed", "topic", msg.Topic(), "error", err)
		}
	}
}
