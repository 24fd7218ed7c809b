// Package publisher announces finished matching runs on Kafka.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rumbo/drivermatch/internal/domain/model"
	"github.com/rumbo/drivermatch/internal/domain/result"
	"github.com/rumbo/drivermatch/pkg/logger"
	"github.com/rumbo/drivermatch/pkg/metrics"
)

const defaultBatchTimeout = 10 * time.Millisecond

// ErrNoTopic is returned when brokers are given without a topic.
var ErrNoTopic = errors.New("kafka topic must not be empty")

// Message is the JSON payload written for each successful run.
type Message struct {
	RunID       string             `json:"run_id"`
	Algorithm   string             `json:"algorithm"`
	PublishedAt time.Time          `json:"published_at"`
	Summary     result.Summary     `json:"summary"`
	Assignments []model.Assignment `json:"assignments"`
}

// Publisher delivers run results downstream.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per run keyed by run id.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger logger.Logger
}

// New returns a KafkaPublisher for brokers, or a Nop publisher when no
// brokers are configured.
func New(brokers []string, topic string, opts ...Option) (Publisher, error) {
	if len(brokers) == 0 {
		return Nop{}, nil
	}
	if strings.TrimSpace(topic) == "" {
		return nil, ErrNoTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           defaultBatchTimeout,
		AllowAutoTopicCreation: true,
	}
	return newWithWriter(w, topic, opts...), nil
}

func newWithWriter(w messageWriter, topic string, opts ...Option) *KafkaPublisher {
	p := &KafkaPublisher{
		writer: w,
		topic:  topic,
		logger: logger.Get().Named("publisher"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish encodes msg and writes it synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, msg Message) error {
	if msg.PublishedAt.IsZero() {
		msg.PublishedAt = time.Now().UTC()
	}
	value, err := json.Marshal(msg)
	if err != nil {
		metrics.RecordPublish("error")
		return fmt.Errorf("encode run %s: %w", msg.RunID, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.RunID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	})
	if err != nil {
		metrics.RecordPublish("error")
		metrics.RecordErrorByComponent("publisher", "write")
		p.logger.Warn(ctx, "publish failed",
			logger.String("run_id", msg.RunID),
			logger.String("topic", p.topic),
			logger.Error(err))
		return fmt.Errorf("publish run %s to %s: %w", msg.RunID, p.topic, err)
	}

	metrics.RecordPublish("ok")
	p.logger.Debug(ctx, "run published", logger.String("run_id", msg.RunID), logger.Int("bytes", len(value)))
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop drops every message.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Message) error {
	metrics.RecordPublish("skipped")
	return nil
}

// Close implements Publisher.
func (Nop) Close() error { return nil }
