package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/TravisHFan/at-Cloud-sign-up-system-sub020/pkg/kafka"
)

// Kafka topics for trio lifecycle events.
var (
	TopicTrioCompleted = pkgkafka.Topic("trio", "completed")
	TopicTrioFailed    = pkgkafka.Topic("trio", "failed")
)

// Aggregate type constant.
const AggregateTypeTrio = "trio"

// Source identifier for events from this engine.
const SourceTrioEngine = "trio-engine"

// TrioCompletedData is the payload for a trio.completed event.
type TrioCompletedData struct {
	TransactionID     string `json:"transaction_id"`
	MessageID         string `json:"message_id"`
	EmailSent         bool   `json:"email_sent"`
	NotificationsSent int    `json:"notifications_sent"`
	DurationMs        int64  `json:"duration_ms"`
}

// TrioFailedData is the payload for a trio.failed event.
type TrioFailedData struct {
	TransactionID     string `json:"transaction_id"`
	Error             string `json:"error"`
	RecoveryAction    string `json:"recovery_action,omitempty"`
	RollbackCompleted bool   `json:"rollback_completed"`
}

// Producer publishes trio lifecycle events to Kafka. A nil Kafka producer
// makes every publish a no-op, so tests and minimal deployments can skip the
// broker entirely.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a trio event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// PublishTrioCompleted publishes a trio.completed event.
func (p *Producer) PublishTrioCompleted(ctx context.Context, data TrioCompletedData) error {
	if p.kafka == nil {
		return nil
	}

	event, err := pkgkafka.NewEvent(TopicTrioCompleted, data.TransactionID, AggregateTypeTrio, SourceTrioEngine, data)
	if err != nil {
		return fmt.Errorf("create trio.completed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicTrioCompleted, event); err != nil {
		return fmt.Errorf("publish trio.completed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published trio.completed event",
		slog.String("transaction_id", data.TransactionID),
	)
	return nil
}

// PublishTrioFailed publishes a trio.failed event.
func (p *Producer) PublishTrioFailed(ctx context.Context, data TrioFailedData) error {
	if p.kafka == nil {
		return nil
	}

	event, err := pkgkafka.NewEvent(TopicTrioFailed, data.TransactionID, AggregateTypeTrio, SourceTrioEngine, data)
	if err != nil {
		return fmt.Errorf("create trio.failed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicTrioFailed, event); err != nil {
		return fmt.Errorf("publish trio.failed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published trio.failed event",
		slog.String("transaction_id", data.TransactionID),
	)
	return nil
}
