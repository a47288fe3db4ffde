package mqtt

import (
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Errors returned by Client. Match with errors.Is.
var (
	ErrNotConnected    = errors.New("mqtt: broker link is down")
	ErrConnect         = errors.New("mqtt: connect")
	ErrPublish         = errors.New("mqtt: publish")
	ErrSubscribe       = errors.New("mqtt: subscribe")
	ErrEmptyTopic      = errors.New("mqtt: empty topic")
	ErrQoS             = errors.New("mqtt: qos must be 0, 1 or 2")
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")
)

// checkRequest validates the arguments Publish and Subscribe share.
func checkRequest(topic string, qos byte) error {
	if topic == "" {
		return ErrEmptyTopic
	}
	if qos > maxQoS {
		return fmt.Errorf("%w: got %d", ErrQoS, qos)
	}
	return nil
}

// await blocks until the broker acknowledges token or timeout passes, and
// reports a failure as kind.
func await(token pahomqtt.Token, kind error, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: no broker ack within %v", kind, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return nil
}
