package mqtt

import "fmt"

// maxPayloadSize caps one message. Device documents are the largest
// payload the bridge sends and stay well below it.
const maxPayloadSize = 1 << 20

// Publish sends payload and waits for the broker ack (QoS 1 and 2) or the
// publish timeout. The bridge publishes state, entity and device documents
// retained so late consumers see the current value.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := checkRequest(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes for %s", ErrPayloadTooLarge, len(payload), topic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return await(c.paho.Publish(topic, qos, retained, payload), ErrPublish, defaultPublishTimeout)
}
