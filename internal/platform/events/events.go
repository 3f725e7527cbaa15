// Package events publishes run lifecycle events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	AdmissionStarted   = "admission.started"
	AdmissionCompleted = "admission.completed"
	AdmissionFailed    = "admission.failed"
	PatientCompleted   = "patient.completed"
)

type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	RunID      string         `json:"run_id"`
	SubjectID  int64          `json:"subject_id"`
	HadmID     *int64         `json:"hadm_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// New stamps an event with a fresh id and the current UTC time.
func New(eventType, runID string, subjectID int64, hadmID *int64, payload map[string]any) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		RunID:      runID,
		SubjectID:  subjectID,
		HadmID:     hadmID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON messages keyed by run id, so one
// run's events stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	log    zerolog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log zerolog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &KafkaPublisher{writer: writer, topic: topic, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(e.RunID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
			{Key: "source", Value: []byte("medbench")},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error().Err(err).Str("event_id", e.ID).Str("event_type", e.Type).Msg("failed to publish event")
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}

	p.log.Debug().Str("event_id", e.ID).Str("event_type", e.Type).Str("topic", p.topic).Msg("event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
