package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"podium/internal/registration/metrics"
	"podium/internal/registration/models"
	"podium/pkg/platform/circuit"
	"podium/pkg/platform/sentinel"
)

const eventTypeTransitioned = "submission.transitioned"

// Producer is the subset of *kgo.Client used for publishing.
type Producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Flush(ctx context.Context) error
}

// TransitionMessage is the JSON value of a published record.
type TransitionMessage struct {
	Type string `json:"type"`
	models.TransitionEvent
}

// Kafka produces transition events asynchronously, keyed by submission id so
// all events of one submission land on one partition in order.
type Kafka struct {
	producer Producer
	topic    string
	logger   *slog.Logger
	metrics  *metrics.Metrics
	breaker  *circuit.Breaker
}

type KafkaOption func(*Kafka)

func WithLogger(logger *slog.Logger) KafkaOption {
	return func(k *Kafka) {
		k.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) KafkaOption {
	return func(k *Kafka) {
		k.metrics = m
	}
}

// WithBreaker replaces the default breaker guarding the producer.
func WithBreaker(b *circuit.Breaker) KafkaOption {
	return func(k *Kafka) {
		k.breaker = b
	}
}

// NewKafka publishes to topic; an empty topic uses the client's default
// produce topic.
func NewKafka(producer Producer, topic string, opts ...KafkaOption) *Kafka {
	k := &Kafka{
		producer: producer,
		topic:    topic,
		logger:   slog.New(slog.DiscardHandler),
		breaker:  circuit.New("kafka-notify"),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Notify enqueues the event and returns without waiting for the broker.
// Delivery failures surface in the log and metrics only.
func (k *Kafka) Notify(ctx context.Context, event models.TransitionEvent) error {
	if !k.breaker.Allow() {
		return fmt.Errorf("kafka notifier circuit open: %w", sentinel.ErrUnavailable)
	}

	value, err := json.Marshal(TransitionMessage{Type: eventTypeTransitioned, TransitionEvent: event})
	if err != nil {
		return fmt.Errorf("encode transition event: %w", err)
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(event.SubmissionID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event-type", Value: []byte(eventTypeTransitioned)},
		},
	}

	// the request context ends before the broker acks
	k.producer.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err != nil {
			k.metrics.IncNotifyFailure()
			_, change := k.breaker.RecordFailure()
			k.logger.Warn("transition event delivery failed",
				"error", err,
				"submission_id", string(r.Key),
				"circuit_opened", change.Opened)
			return
		}
		if _, change := k.breaker.RecordSuccess(); change.Closed {
			k.logger.Info("transition event delivery recovered")
		}
	})
	return nil
}

// Flush waits for buffered records; call on shutdown.
func (k *Kafka) Flush(ctx context.Context) error {
	return k.producer.Flush(ctx)
}
