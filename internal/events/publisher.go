package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"sentimentpipe/backend-go/internal/models"
)

// Publisher announces finished analysis runs.
type Publisher interface {
	Publish(ctx context.Context, res models.AnalysisResult) error
	Close() error
}

// AnalysisEvent is the compact message published per run.
type AnalysisEvent struct {
	RunID       string                    `json:"run_id"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Degraded    bool                      `json:"degraded"`
	Features    models.JointFeatureVector `json:"features"`
	Prediction  *models.PredictionOutcome `json:"prediction,omitempty"`
	Failures    []models.SourceFailure    `json:"failures"`
	Warnings    []string                  `json:"warnings"`
}

func NewAnalysisEvent(res models.AnalysisResult) AnalysisEvent {
	return AnalysisEvent{
		RunID:       res.RunID,
		GeneratedAt: res.GeneratedAt,
		Degraded:    res.Degraded,
		Features:    res.Features,
		Prediction:  res.Prediction,
		Failures:    res.Failures,
		Warnings:    res.Warnings,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
			RequiredAcks:           kafka.RequireOne,
			MaxAttempts:            3,
			WriteBackoffMin:        100 * time.Millisecond,
			WriteBackoffMax:        time.Second,
		},
		topic: topic,
	}
}

// Publish keys messages by run id so one run always lands on one partition.
func (p *KafkaPublisher) Publish(ctx context.Context, res models.AnalysisResult) error {
	data, err := json.Marshal(NewAnalysisEvent(res))
	if err != nil {
		return fmt.Errorf("encode analysis event: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(res.RunID), Value: data}); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.AnalysisResult) error { return nil }
func (NopPublisher) Close() error { return nil }

// New returns a Kafka publisher, or a no-op one when brokers is empty.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return NopPublisher{}
	}
	return NewKafkaPublisher(brokers, topic)
}
