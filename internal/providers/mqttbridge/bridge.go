package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mattlunn/karen-sub001/internal/capability"
	"github.com/mattlunn/karen-sub001/internal/infrastructure/mqtt"
)

// ProviderID is the provider identifier MQTT-attached devices carry.
const ProviderID = "mqtt"

const commandQoS = 1

// Logger defines the logging interface used by the Bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Broker is the subset of the MQTT client the bridge uses.
type Broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Store is where observed device state is recorded.
type Store interface {
	SetBool(ctx context.Context, subjectID, propertyKey string, value bool, at time.Time) error
	SetNumber(ctx context.Context, subjectID, propertyKey string, value float64, at time.Time) error
}

// statePayload is the wire format on state and command topics. Value is
// a JSON boolean or number; Timestamp is optional and defaults to the
// receive time.
type statePayload struct {
	Value     any        `json:"value"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Bridge connects MQTT-attached devices to the event core.
//
// Observed state arrives on state topics and is recorded in the event
// log; commands issued through the capability layer are published to
// command topics. Recording happens only on the state path, so a command
// the device never acted on leaves no trace in history.
type Bridge struct {
	broker Broker
	store  Store
	topics mqtt.Topics
	logger Logger
}

// New creates a bridge over the given broker and store.
func New(broker Broker, store Store) *Bridge {
	return &Bridge{
		broker: broker,
		store:  store,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.logger = logger
}

// Register adds the bridge to the registry as the handler for every
// capability named. Call once during wiring, with the capabilities the
// deployment's MQTT devices expose.
func (b *Bridge) Register(registry *capability.Registry, capabilities ...string) {
	handlers := make(capability.HandlerSet, len(capabilities))
	for _, name := range capabilities {
		handlers[name] = capability.HandlerFunc(b.write)
	}
	registry.Register(ProviderID, handlers)
}

// Start subscribes to the device state topics. Subscriptions survive
// reconnects; Start is needed once.
func (b *Bridge) Start() error {
	if err := b.broker.Subscribe(b.topics.AllDeviceStates(), commandQoS, b.handleState); err != nil {
		return fmt.Errorf("subscribing to device states: %w", err)
	}
	return nil
}

// write publishes a command for one device property.
func (b *Bridge) write(_ context.Context, subjectID, property string, value float64) error {
	payload, err := json.Marshal(statePayload{Value: value})
	if err != nil {
		return fmt.Errorf("encoding command: %w", err)
	}

	topic := b.topics.DeviceCommand(subjectID, property)
	if err := b.broker.Publish(topic, payload, commandQoS, false); err != nil {
		return fmt.Errorf("publishing command: %w", err)
	}

	b.logger.Debug("published device command",
		"device", subjectID, "property", property, "value", value)
	return nil
}

// handleState records an observed device state message.
func (b *Bridge) handleState(topic string, payload []byte) error {
	deviceID, property, ok := b.topics.ParseDeviceState(topic)
	if !ok {
		return fmt.Errorf("unexpected state topic %q", topic)
	}

	var msg statePayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding state payload on %q: %w", topic, err)
	}

	at := time.Now().UTC()
	if msg.Timestamp != nil {
		at = msg.Timestamp.UTC()
	}

	ctx := context.Background()
	switch value := msg.Value.(type) {
	case bool:
		return b.store.SetBool(ctx, deviceID, property, value, at)
	case float64:
		return b.store.SetNumber(ctx, deviceID, property, value, at)
	default:
		return fmt.Errorf("state payload on %q has unsupported value type %T", topic, msg.Value)
	}
}
