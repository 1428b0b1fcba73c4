package mqtt

import "fmt"

// maxPayloadSize caps MQTT message payloads (1MB). Notifications carry the
// sound reference, never the audio bytes; devices fetch those over HTTP.
const maxPayloadSize = 1 << 20

// Publish sends a message to the specified topic and waits for the broker
// acknowledgement appropriate to the QoS level.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes",
			ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishQoS publishes with the configured default QoS, not retained.
// Play notifications use this: a device that was offline asks the due
// endpoint on reconnect rather than replaying stale retained commands.
func (c *Client) PublishQoS(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), false)
}
