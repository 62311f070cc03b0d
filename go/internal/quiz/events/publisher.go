package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Envelope is the wire format for session events on the bus.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType EventType       `json:"eventType"`
	SessionID string          `json:"sessionId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Publisher emits session lifecycle events. Publishing is best-effort
// everywhere in the coordinator: a failed publish is logged, never fatal.
type Publisher interface {
	Publish(ctx context.Context, sessionID uuid.UUID, eventType EventType, payload any) error
}

// JetStreamPublisherConfig holds configuration for the JetStream publisher.
type JetStreamPublisherConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string // e.g., "quiz.events"
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultJetStreamPublisherConfig returns default publisher configuration.
func DefaultJetStreamPublisherConfig() JetStreamPublisherConfig {
	return JetStreamPublisherConfig{
		URL:           nats.DefaultURL,
		StreamName:    "QUIZ_EVENTS",
		SubjectPrefix: "quiz.events",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// JetStreamPublisher publishes session events to a JetStream stream.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamPublisherConfig
}

// NewJetStreamPublisher connects to NATS and ensures the event stream exists.
func NewJetStreamPublisher(config JetStreamPublisherConfig) (*JetStreamPublisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        config.StreamName,
		Description: "Quiz session lifecycle events",
		Subjects:    []string{config.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return &JetStreamPublisher{nc: nc, js: js, config: config}, nil
}

// Publish marshals the payload into an envelope and publishes it on
// "<prefix>.<EventType>.<sessionID>".
func (p *JetStreamPublisher) Publish(ctx context.Context, sessionID uuid.UUID, eventType EventType, payload any) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	envelope := Envelope{
		EventID:   uuid.New().String(),
		EventType: eventType,
		SessionID: sessionID.String(),
		Timestamp: time.Now(),
		Payload:   payloadBytes,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	subject := fmt.Sprintf("%s.%s.%s", p.config.SubjectPrefix, eventType, sessionID)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	log.Debug().
		Str("event_id", envelope.EventID).
		Str("session_id", envelope.SessionID).
		Str("event_type", string(eventType)).
		Msg("event published")
	return nil
}

// Close releases the NATS connection.
func (p *JetStreamPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}

// NoopPublisher drops every event. Used when the event bus is not configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, sessionID uuid.UUID, eventType EventType, payload any) error {
	return nil
}
