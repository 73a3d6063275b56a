// Package kafka publishes snippet events to a Kafka topic using
// segmentio/kafka-go. Messages are keyed by snippet ID so all events for one
// snippet land on the same partition, in order.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	segkafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/snipstash/snipstash/pkg/eventstream"
)

// DefaultTopic is the topic snippet events are written to.
const DefaultTopic = "snipstash.snippets"

// Publisher writes snippet events to Kafka.
type Publisher struct {
	writer *segkafka.Writer
	logger *zap.Logger
}

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers is the list of broker addresses. Required.
	Brokers []string

	// Topic defaults to DefaultTopic if empty.
	Topic string
}

// NewPublisher creates a Kafka-backed eventstream publisher.
func NewPublisher(c Config, logger *zap.Logger) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}

	topic := c.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	writer := &segkafka.Writer{
		Addr:         segkafka.TCP(c.Brokers...),
		Topic:        topic,
		Balancer:     &segkafka.LeastBytes{},
		RequiredAcks: segkafka.RequireOne,
	}

	logger.Info("kafka event publisher initialized",
		zap.Strings("brokers", c.Brokers),
		zap.String("topic", topic),
	)

	return &Publisher{writer: writer, logger: logger}, nil
}

// PublishSnippet writes one event, keyed by snippet ID.
func (p *Publisher) PublishSnippet(ctx context.Context, event *eventstream.SnippetEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: marshaling event: %v", eventstream.ErrPublish, err)
	}

	msg := segkafka.Message{
		Key:   MessageKey(event),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%w: writing to kafka: %v", eventstream.ErrPublish, err)
	}

	p.logger.Debug("published snippet event",
		zap.String("event_type", event.EventType),
		zap.Int64("snippet_id", event.Snippet.ID),
	)

	return nil
}

// MessageKey derives the Kafka message key for an event.
func MessageKey(event *eventstream.SnippetEvent) []byte {
	return []byte(strconv.FormatInt(event.Snippet.ID, 10))
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)
