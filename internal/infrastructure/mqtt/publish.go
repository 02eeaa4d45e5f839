package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20

// Publish sends a message to the specified MQTT topic.
//
// Commands are published with retained=false; state and status topics are
// retained so late subscribers see the current value.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return c.PublishContext(context.Background(), topic, payload, qos, retained)
}

// PublishContext is Publish bounded by ctx. It waits for the broker
// acknowledgement until ctx is done or defaultPublishTimeout elapses,
// whichever comes first. A message already handed to paho may still be
// delivered after ctx ends.
func (c *Client) PublishContext(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)

	timer := time.NewTimer(defaultPublishTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrPublishFailed, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishJSON marshals v and publishes it with the configured QoS.
func (c *Client) PublishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: marshalling payload: %w", ErrPublishFailed, err)
	}
	return c.Publish(topic, payload, byte(c.cfg.QoS), retained)
}

// Broadcast publishes a scene engine event on the given channel topic.
// Delivery failures are logged rather than returned: event fan-out is
// best-effort and must never stall scene execution.
func (c *Client) Broadcast(channel string, payload any) {
	if err := c.PublishJSON(channel, payload, false); err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("event broadcast failed", "topic", channel, "error", err)
		}
	}
}
