package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/tendant/simple-vault/pkg/simplevault"
)

// DefaultGroup is the consumer group of the audit consumer.
const DefaultGroup = "storage-consumer"

// retryDelay is the pause before rejoining after a failed session.
const retryDelay = 5 * time.Second

// Handler processes one durable record. Returning an error leaves the offset
// uncommitted so the record is delivered again.
type Handler func(ctx context.Context, record simplevault.DurableRecord) error

// ConsumerGroup reads the durable topic as one named group. Each group keeps
// its own offsets, so a new group catches up from the oldest retained record.
type ConsumerGroup struct {
	group  sarama.ConsumerGroup
	topic  string
	logger *slog.Logger
}

// NewConsumerGroup joins groupID on brokers
func NewConsumerGroup(brokers []string, groupID, topic string, logger *slog.Logger) (*ConsumerGroup, error) {
	if groupID == "" {
		groupID = DefaultGroup
	}
	group, err := sarama.NewConsumerGroup(brokers, groupID, NewConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to start Kafka consumer group: %w", err)
	}
	return NewConsumerGroupFromClient(group, topic, logger), nil
}

// NewConsumerGroupFromClient wraps an existing sarama consumer group
func NewConsumerGroupFromClient(group sarama.ConsumerGroup, topic string, logger *slog.Logger) *ConsumerGroup {
	if topic == "" {
		topic = simplevault.DurableTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsumerGroup{group: group, topic: topic, logger: logger}
}

// Consume runs sessions until ctx is done. A failed session is retried after
// a short pause, as happens on rebalances.
func (c *ConsumerGroup) Consume(ctx context.Context, handler Handler) error {
	claims := &claimHandler{handler: handler, logger: c.logger}

	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("Kafka consumer error", "err", err)
		}
	}()

	for {
		err := c.group.Consume(ctx, []string{c.topic}, claims)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return err
		}
		if err != nil {
			c.logger.Error("Kafka consumer session failed", "err", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
			}
		}
	}
}

// Close leaves the group
func (c *ConsumerGroup) Close() error {
	return c.group.Close()
}

// claimHandler implements sarama.ConsumerGroupHandler
type claimHandler struct {
	handler Handler
	logger  *slog.Logger
}

func (h *claimHandler) Setup(_ sarama.ConsumerGroupSession) error {
	return nil
}

func (h *claimHandler) Cleanup(_ sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim marks each message only after the handler accepted it. A
// record that cannot be decoded is logged and skipped, since redelivery
// would never succeed.
func (h *claimHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			record, err := simplevault.UnmarshalDurableRecord(message.Value)
			if err != nil {
				h.logger.Error("Skipping undecodable durable record",
					"partition", message.Partition, "offset", message.Offset, "err", err)
				session.MarkMessage(message, "")
				continue
			}
			if err := h.handler(session.Context(), record); err != nil {
				return fmt.Errorf("handler failed at offset %d: %w", message.Offset, err)
			}
			session.MarkMessage(message, "")
		}
	}
}
