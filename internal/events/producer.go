// Package events relays outbox rows to the message broker.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"dental-clinic-server/internal/config"
)

// Publisher delivers one serialized event.
type Publisher interface {
	Publish(ctx context.Context, key, eventType string, payload []byte) error
	Topic() string
	Close() error
}

// Producer publishes to Kafka.
type Producer struct {
	writer *kafka.Writer
	log    zerolog.Logger
}

// NewProducer builds a Kafka writer for the configured brokers and topic.
func NewProducer(cfg config.KafkaConfig, log zerolog.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is not configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("KAFKA_TOPIC is not configured")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 10 * time.Second,
	}
	log.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("kafka producer created")
	return &Producer{writer: writer, log: log}, nil
}

// Publish writes one message keyed by aggregate so an order's events stay ordered within a partition.
func (p *Producer) Publish(ctx context.Context, key, eventType string, payload []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   payload,
		Headers: []kafka.Header{{Key: "event-type", Value: []byte(eventType)}},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	p.log.Debug().Str("topic", p.writer.Topic).Str("key", key).Str("event_type", eventType).Msg("message published")
	return nil
}

func (p *Producer) Topic() string { return p.writer.Topic }

func (p *Producer) Close() error { return p.writer.Close() }

// LogPublisher writes events to the log. The relay uses it when no brokers are configured.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, key, eventType string, payload []byte) error {
	p.log.Info().Str("key", key).Str("event_type", eventType).RawJSON("payload", payload).Msg("event")
	return nil
}

func (p *LogPublisher) Topic() string { return "log" }

func (p *LogPublisher) Close() error { return nil }
