package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"audiolicense/pkg/contracts/domain"
)

// messageWriter is the subset of *kafka.Writer used by KafkaSink
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events as JSON messages keyed by the event key
type KafkaSink struct {
	writer       messageWriter
	topic        string
	topicByEvent map[string]string
	timeout      time.Duration
	logger       *slog.Logger
}

// NewKafkaSink creates a sink writing to brokers. Events go to topic unless
// topicByEvent maps their name elsewhere.
func NewKafkaSink(brokers []string, topic string, topicByEvent map[string]string, logger *slog.Logger) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka sink requires at least one broker")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
	}
	return newKafkaSink(w, topic, topicByEvent, logger), nil
}

func newKafkaSink(w messageWriter, topic string, topicByEvent map[string]string, logger *slog.Logger) *KafkaSink {
	return &KafkaSink{
		writer:       w,
		topic:        topic,
		topicByEvent: topicByEvent,
		timeout:      5 * time.Second,
		logger:       logger.With(slog.String("component", "kafka_sink")),
	}
}

// Emit implements Sink. Delivery failures are logged, never returned.
func (s *KafkaSink) Emit(ctx context.Context, event domain.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode event", slog.String("event", event.Name), slog.Any("error", err))
		return
	}

	topic := s.topic
	if mapped, ok := s.topicByEvent[event.Name]; ok && mapped != "" {
		topic = mapped
	}

	// detach from the request so a finished response does not abort delivery
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	err = s.writer.WriteMessages(writeCtx, kafka.Message{
		Topic:   topic,
		Key:     []byte(event.Key),
		Value:   payload,
		Time:    event.OccurredAt,
		Headers: []kafka.Header{{Key: "event", Value: []byte(event.Name)}},
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to publish event",
			slog.String("event", event.Name),
			slog.String("topic", topic),
			slog.Any("error", err))
	}
}

// Close flushes and closes the writer
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
