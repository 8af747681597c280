package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

// MessageHandler returns nil for messages that are done with, including ones it
// chose to drop. An error means the message should be delivered again.
type MessageHandler interface {
	Handle(ctx context.Context, msg *sarama.ConsumerMessage) error
}

var defaultRetryBackoff = []time.Duration{200 * time.Millisecond, time.Second, 5 * time.Second}

// Consumer reads a topic as part of a consumer group. Offsets are marked only
// after the handler succeeds, so a failing message blocks its partition and is
// retried with backoff instead of being skipped.
type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
	logger  *slog.Logger
	backoff []time.Duration
}

func NewConsumer(brokers []string, groupID string, cfg *sarama.Config, handler MessageHandler, logger *slog.Logger) (*Consumer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	g, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	return &Consumer{group: g, handler: handler, logger: logger, backoff: defaultRetryBackoff}, nil
}

func (c *Consumer) Run(ctx context.Context, topics []string) error {
	h := claimHandler{handler: c.handler, logger: c.logger, backoff: c.backoff}
	for {
		err := c.group.Consume(ctx, topics, h)
		if err != nil && !errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return err
		}
		if ctx.Err() != nil || errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return nil
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type claimHandler struct {
	handler MessageHandler
	logger  *slog.Logger
	backoff []time.Duration
}

func (h claimHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h claimHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h claimHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if !h.deliver(sess.Context(), message) {
			// Session is ending; the unmarked message is redelivered after rebalance.
			return nil
		}
		sess.MarkMessage(message, "")
	}
	return nil
}

// deliver retries the handler until it succeeds or ctx ends.
func (h claimHandler) deliver(ctx context.Context, message *sarama.ConsumerMessage) bool {
	for attempt := 0; ; attempt++ {
		err := h.handler.Handle(ctx, message)
		if err == nil {
			return true
		}
		wait := h.wait(attempt)
		if h.logger != nil {
			h.logger.Warn("kafka message not handled, retrying",
				"topic", message.Topic, "partition", message.Partition, "offset", message.Offset,
				"attempt", attempt+1, "retry_in", wait, "error", err)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

func (h claimHandler) wait(attempt int) time.Duration {
	if len(h.backoff) == 0 {
		return time.Second
	}
	if attempt >= len(h.backoff) {
		return h.backoff[len(h.backoff)-1]
	}
	return h.backoff[attempt]
}
