// Package kafka publishes image events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/eventstream"
)

// DefaultTopic is the topic image events are written to.
const DefaultTopic = "snaps.images"

// Config holds configuration for the Kafka publisher.
type Config struct {
	Brokers []string
	Topic   string
	Logger  *zap.Logger
}

// messageWriter is the part of kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes JSON-encoded image events keyed by image id, so every
// event for one image lands on the same partition.
type Publisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

// NewPublisher creates a publisher backed by a kafka.Writer.
func NewPublisher(c Config) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	topic := c.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(c.Brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}

	return newPublisher(w, topic, c.Logger), nil
}

func newPublisher(w messageWriter, topic string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{writer: w, topic: topic, logger: logger}
}

// PublishImage writes one event synchronously.
func (p *Publisher) PublishImage(ctx context.Context, event *eventstream.ImageEvent) error {
	if event == nil {
		return eventstream.ErrNilImageEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling image event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.Image.ID),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing image event to %s: %w", p.topic, err)
	}

	p.logger.Debug("published image event",
		zap.String("event_type", event.EventType),
		zap.String("image_id", event.Image.ID),
	)
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)
