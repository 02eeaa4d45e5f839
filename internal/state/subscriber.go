package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-scenes/internal/infrastructure/mqtt"
)

// MQTTSubscriber is the subscription side of the MQTT client.
type MQTTSubscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Logger is the logging interface used by the Subscriber.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// statePayload is the document bridges publish on graylogic/state/{protocol}/{device}.
type statePayload struct {
	Online    *bool                      `json:"online"`
	Features  map[string]FeatureSnapshot `json:"features"`
	Timestamp *time.Time                 `json:"timestamp"`
}

// Subscriber folds bridge state updates into a Store.
type Subscriber struct {
	store  *Store
	logger Logger
	now    func() time.Time
}

// NewSubscriber creates a subscriber writing into store.
func NewSubscriber(store *Store, logger Logger) *Subscriber {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Subscriber{store: store, logger: logger, now: time.Now}
}

// Start subscribes to every bridge state topic.
func (s *Subscriber) Start(client MQTTSubscriber, qos byte) error {
	if err := client.Subscribe(mqtt.Topics{}.AllDeviceStates(), qos, s.Apply); err != nil {
		return fmt.Errorf("subscribing to device state: %w", err)
	}
	return nil
}

// Apply decodes one state message and writes the device record and every
// feature snapshot it carries.
func (s *Subscriber) Apply(topic string, payload []byte) error {
	protocol, device, ok := mqtt.ParseDeviceState(topic)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}

	var msg statePayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	updated := s.now().UTC()
	if msg.Timestamp != nil {
		updated = msg.Timestamp.UTC()
	}

	online := true
	if msg.Online != nil {
		online = *msg.Online
	}

	s.store.Set(EntityDevice, device, DeviceRecord{
		ID:        device,
		Protocol:  protocol,
		Online:    online,
		UpdatedAt: updated,
	})

	for selector, snapshot := range msg.Features {
		if selector == "" {
			continue
		}
		snapshot.Device = device
		s.store.Set(EntityDeviceFeature, selector, snapshot)
	}

	s.logger.Debug("device state applied",
		"device", device,
		"protocol", protocol,
		"features", len(msg.Features),
	)
	return nil
}
