package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"smart-maintenance/internal/observability/metrics"
	telemetry "smart-maintenance/internal/telemetry/domain"
)

const defaultHandleTimeout = 30 * time.Second

// Handler consumes a decoded sample.
type Handler func(ctx context.Context, sample telemetry.Sample) error

// Subscriber bridges an MQTT topic into the maintenance pipeline.
type Subscriber struct {
	client  paho.Client
	topic   string
	qos     byte
	handler Handler
	logger  zerolog.Logger
	timeout time.Duration
}

// Option configures a subscriber.
type Option func(*Subscriber)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Subscriber) {
		s.logger = logger
	}
}

// WithQoS sets the subscription QoS.
func WithQoS(qos byte) Option {
	return func(s *Subscriber) {
		s.qos = qos
	}
}

// WithHandleTimeout bounds each handler call.
func WithHandleTimeout(timeout time.Duration) Option {
	return func(s *Subscriber) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// NewSubscriber constructs a subscriber. The client may be nil when only HandleMessage is used.
func NewSubscriber(client paho.Client, topic string, handler Handler, opts ...Option) (*Subscriber, error) {
	if handler == nil {
		return nil, errors.New("mqtt subscriber: nil handler")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, errors.New("mqtt subscriber: topic is required")
	}
	s := &Subscriber{
		client:  client,
		topic:   topic,
		handler: handler,
		logger:  zerolog.Nop(),
		timeout: defaultHandleTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// NewClient connects to the broker.
func NewClient(broker, clientID string) (paho.Client, error) {
	if strings.TrimSpace(broker) == "" {
		return nil, errors.New("mqtt: broker is required")
	}
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID(clientID).SetAutoReconnect(true)
	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return client, nil
}

// Run subscribes and blocks until ctx is done.
func (s *Subscriber) Run(ctx context.Context) error {
	if s == nil || s.client == nil {
		return errors.New("mqtt subscriber: not configured")
	}
	callback := func(_ paho.Client, msg paho.Message) {
		if err := s.HandleMessage(ctx, msg.Topic(), msg.Payload()); err != nil {
			s.logger.Error().Err(err).Str("topic", msg.Topic()).Msg("mqtt message failed")
		}
	}
	if token := s.client.Subscribe(s.topic, s.qos, callback); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", s.topic, token.Error())
	}
	s.logger.Info().Str("topic", s.topic).Msg("mqtt subscriber running")
	<-ctx.Done()
	if token := s.client.Unsubscribe(s.topic); token.Wait() && token.Error() != nil {
		s.logger.Warn().Err(token.Error()).Msg("mqtt unsubscribe failed")
	}
	return nil
}

// HandleMessage decodes a payload and passes it to the handler.
func (s *Subscriber) HandleMessage(ctx context.Context, topic string, payload []byte) error {
	sample, err := Decode(topic, payload)
	if err != nil {
		metrics.IncIngestSample("mqtt", metrics.ResultError)
		return err
	}
	metrics.IncIngestSample("mqtt", metrics.ResultSuccess)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.handler(ctx, sample)
}

type payloadDTO struct {
	DeviceID    string   `json:"device_id"`
	Timestamp   string   `json:"timestamp"`
	Temperature *float64 `json:"temperature"`
	Pressure    *float64 `json:"pressure"`
	CPULoad     *float64 `json:"cpu_load"`
	CPUUsage    *float64 `json:"cpu_usage"`
}

// Decode parses a JSON telemetry payload. When device_id is empty the last
// topic segment is used, so "plant/telemetry/pump-17" maps to pump-17.
func Decode(topic string, payload []byte) (telemetry.Sample, error) {
	var dto payloadDTO
	if err := json.Unmarshal(payload, &dto); err != nil {
		return telemetry.Sample{}, fmt.Errorf("%w: decode payload: %v", telemetry.ErrInvalidInput, err)
	}
	deviceID := strings.TrimSpace(dto.DeviceID)
	if deviceID == "" && topic != "" {
		parts := strings.Split(strings.Trim(topic, "/"), "/")
		deviceID = parts[len(parts)-1]
	}
	sample := telemetry.Sample{
		DeviceID:    deviceID,
		Timestamp:   time.Now().UTC(),
		Temperature: dto.Temperature,
		Pressure:    dto.Pressure,
		CPULoad:     dto.CPULoad,
	}
	if sample.CPULoad == nil {
		sample.CPULoad = dto.CPUUsage
	}
	if dto.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, dto.Timestamp)
		if err != nil {
			return telemetry.Sample{}, fmt.Errorf("%w: timestamp %q", telemetry.ErrInvalidInput, dto.Timestamp)
		}
		sample.Timestamp = ts.UTC()
	}
	return sample, nil
}
