package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-scenes/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-scenes/internal/state"
)

// Publisher is the publishing side of the MQTT client. *mqtt.Client
// satisfies it.
type Publisher interface {
	PublishContext(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error
}

// Directory resolves a device's routing record. *state.Store satisfies it.
type Directory interface {
	Device(id string) (state.DeviceRecord, bool)
}

// Recorder receives one call per command sent. *influxdb.Client satisfies it.
type Recorder interface {
	WriteDeviceCommand(device, feature string, value float64, ok bool)
}

// Logger is the logging interface used by commanders.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}

// commandQoS is at-least-once; bridges de-duplicate on command id.
const commandQoS = 1

// commandPayload is the document bridges consume on graylogic/command/{protocol}/{device}.
type commandPayload struct {
	ID          string         `json:"id"`
	DeviceID    string         `json:"device_id"`
	Command     string         `json:"command"`
	Parameters  map[string]any `json:"parameters"`
	Source      string         `json:"source"`
	ExecutionID string         `json:"execution_id,omitempty"`
}

// MQTTCommander publishes set_value commands to protocol bridges.
type MQTTCommander struct {
	publisher       Publisher
	directory       Directory
	defaultProtocol string
	recorder        Recorder
	logger          Logger
}

// MQTTCommanderOption configures an MQTTCommander.
type MQTTCommanderOption func(*MQTTCommander)

// WithDefaultProtocol routes devices with no known record to protocol.
func WithDefaultProtocol(protocol string) MQTTCommanderOption {
	return func(c *MQTTCommander) { c.defaultProtocol = protocol }
}

// WithRecorder reports every command to r.
func WithRecorder(r Recorder) MQTTCommanderOption {
	return func(c *MQTTCommander) { c.recorder = r }
}

// WithLogger sets the commander's logger.
func WithLogger(l Logger) MQTTCommanderOption {
	return func(c *MQTTCommander) { c.logger = l }
}

// NewMQTTCommander creates a commander publishing through publisher and
// resolving device protocols through directory.
func NewMQTTCommander(publisher Publisher, directory Directory, opts ...MQTTCommanderOption) *MQTTCommander {
	c := &MQTTCommander{
		publisher: publisher,
		directory: directory,
		logger:    noopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetValue publishes a set_value command for one feature of device. The
// wait for the broker acknowledgement ends when ctx does.
func (c *MQTTCommander) SetValue(ctx context.Context, device string, feature Feature, value any) (err error) {
	if device == "" {
		return fmt.Errorf("%w: empty device", ErrInvalidCommand)
	}
	if c.publisher == nil {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	defer func() {
		if c.recorder != nil {
			if v, ok := numericValue(value); ok {
				c.recorder.WriteDeviceCommand(device, feature.String(), v, err == nil)
			}
		}
	}()

	protocol, err := c.protocolFor(device)
	if err != nil {
		return err
	}

	msg := commandPayload{
		ID:       uuid.NewString(),
		DeviceID: device,
		Command:  "set_value",
		Parameters: map[string]any{
			"feature": feature,
			"value":   value,
		},
		Source: "scene-engine",
	}
	if origin, ok := OriginFrom(ctx); ok {
		msg.Source = "scene:" + origin.Scene
		msg.ExecutionID = origin.ExecutionID
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshalling command: %w", err)
	}

	topic := mqtt.Topics{}.DeviceCommand(protocol, device)
	if err := c.publisher.PublishContext(ctx, topic, payload, commandQoS, false); err != nil {
		if errors.Is(err, mqtt.ErrNotConnected) {
			return fmt.Errorf("%w: %w", ErrNotConnected, err)
		}
		return fmt.Errorf("publishing to %q: %w", topic, err)
	}

	c.logger.Debug("device command published",
		"device", device,
		"feature", feature.String(),
		"command_id", msg.ID,
		"topic", topic,
	)
	return nil
}

func (c *MQTTCommander) protocolFor(device string) (string, error) {
	if c.directory != nil {
		if record, ok := c.directory.Device(device); ok && record.Protocol != "" {
			return record.Protocol, nil
		}
	}
	if c.defaultProtocol != "" {
		return c.defaultProtocol, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDevice, device)
}

// numericValue converts command values to float64 for telemetry.
func numericValue(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
