package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/kjstillabower/drought-index-service/internal/models"
	"github.com/kjstillabower/drought-index-service/internal/observability"
)

// Publisher dispatches a triggered alert to subscribers.
type Publisher interface {
	Publish(ctx context.Context, alert models.Alert) error
	Close() error
}

// Channels the log publisher announces for each alert.
var Channels = []string{"SMS", "EMAIL", "WHATSAPP"}

// LogPublisher writes alerts to the structured log, one entry per channel.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, alert models.Alert) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	logger := p.logger
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		logger = logger.With(zap.String("correlation_id", corrID))
	}
	for _, ch := range Channels {
		logger.Info("alert dispatched",
			zap.String("channel", ch),
			zap.String("alert_id", alert.ID),
			zap.String("region", alert.RegionID),
			zap.String("type", alert.Type),
			zap.String("severity", alert.Severity),
			zap.String("message", alert.Message),
		)
	}
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher produces alerts as JSON to a Kafka topic, keyed by region.
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
}

// NewKafkaPublisher creates a producer for topic. writeTimeout bounds each
// publish; zero leaves it to the caller's context.
func NewKafkaPublisher(brokers []string, topic string, writeTimeout time.Duration) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka publisher: at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("kafka publisher: topic is required")
	}
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: false,
		WriteTimeout:           writeTimeout,
	}
	return &KafkaPublisher{writer: w, timeout: writeTimeout}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, alert models.Alert) error {
	msg, err := serializeAlert(alert)
	if err != nil {
		return err
	}
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		msg.Headers = append(msg.Headers, kafkago.Header{Key: "correlation_id", Value: []byte(corrID)})
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish alert %s: %w", alert.ID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// serializeAlert marshals an alert into a Kafka message keyed by region so a
// region's alerts stay ordered within one partition.
func serializeAlert(alert models.Alert) (kafkago.Message, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(alert.RegionID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "alert_type", Value: []byte(alert.Type)},
			{Key: "severity", Value: []byte(alert.Severity)},
			{Key: "triggered_at", Value: []byte(alert.TriggeredAt.Format(time.RFC3339))},
		},
	}, nil
}
