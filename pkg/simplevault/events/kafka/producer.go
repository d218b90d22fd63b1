// Package kafka carries durable file events over Kafka with sarama.
package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/tendant/simple-vault/pkg/simplevault"
)

// NewConfig returns the sarama configuration shared by producer and consumer.
func NewConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Return.Successes = true
	config.Producer.Retry.Max = 3
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Version = sarama.V2_8_0_0
	return config
}

// Producer implements simplevault.DurableLog. Records carry no key, so the
// partitioner spreads them and ordering is not guaranteed across files.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewProducer connects a synchronous producer to brokers
func NewProducer(brokers []string, topic string, logger *slog.Logger) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to start Kafka producer: %w", err)
	}
	return NewProducerFromClient(producer, topic, logger), nil
}

// NewProducerFromClient wraps an existing sarama producer
func NewProducerFromClient(producer sarama.SyncProducer, topic string, logger *slog.Logger) *Producer {
	if topic == "" {
		topic = simplevault.DurableTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{producer: producer, topic: topic, logger: logger}
}

// Publish appends the event's durable record and waits for all in-sync
// replicas to acknowledge it.
func (p *Producer) Publish(ctx context.Context, event simplevault.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := simplevault.NewDurableRecord(event).Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode durable record: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}

	p.logger.DebugContext(ctx, "durable event published",
		"kind", event.Kind(), "file_id", event.Subject(), "partition", partition, "offset", offset)
	return nil
}

// Close flushes and closes the producer
func (p *Producer) Close() error {
	return p.producer.Close()
}
