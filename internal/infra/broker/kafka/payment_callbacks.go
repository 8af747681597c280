package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"motorent/internal/app/commands"
	"motorent/internal/app/dto"
	paymenthandlers "motorent/internal/app/handlers/payments"
	domainbooking "motorent/internal/domain/booking"
	"motorent/internal/domain/payment"
	"motorent/internal/infra/inbox"
	"motorent/internal/infra/validation"
)

// PaymentCallback is the gateway webhook relayed onto the callback topic.
type PaymentCallback struct {
	EventID    string `json:"event_id"`
	OrderRef   string `json:"order_ref"`
	PaymentRef string `json:"payment_ref"`
	Signature  string `json:"signature"`
}

// PaymentCallbackHandler turns relayed gateway callbacks into verify commands.
// A callback is recorded in the inbox only after its outcome is settled: confirmed,
// or rejected for good. Transient failures are returned so the consumer redelivers,
// and Confirm tolerates the repeat.
type PaymentCallbackHandler struct {
	Bus    commands.Bus
	Inbox  inbox.Inbox
	Logger *slog.Logger
}

func (h *PaymentCallbackHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var cb PaymentCallback
	if err := json.Unmarshal(msg.Value, &cb); err != nil {
		h.warn("malformed payment callback", msg, err)
		return nil
	}
	eventID := cb.EventID
	if eventID == "" {
		eventID = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}
	if h.Inbox != nil {
		done, err := h.Inbox.Processed(ctx, eventID)
		if err != nil {
			return err
		}
		if done {
			if h.Logger != nil {
				h.Logger.Debug("duplicate payment callback skipped", "event_id", eventID)
			}
			return nil
		}
	}

	_, err := commands.Dispatch[paymenthandlers.VerifyPaymentCommand, *dto.BookingTransition](ctx, h.Bus, paymenthandlers.VerifyPaymentCommand{
		OrderRef:   cb.OrderRef,
		PaymentRef: cb.PaymentRef,
		Signature:  cb.Signature,
	})
	if err != nil && !permanent(err) {
		return err
	}
	if err != nil {
		h.warn("payment callback rejected", msg, err)
	}
	h.record(ctx, eventID, msg)
	return nil
}

// record failures are only logged: the outcome is already committed and a
// redelivery converges on it.
func (h *PaymentCallbackHandler) record(ctx context.Context, eventID string, msg *sarama.ConsumerMessage) {
	if h.Inbox == nil {
		return
	}
	if err := h.Inbox.Record(ctx, eventID); err != nil {
		h.warn("payment callback not recorded", msg, err)
	}
}

func permanent(err error) bool {
	return errors.Is(err, payment.ErrPaymentVerification) ||
		errors.Is(err, domainbooking.ErrInvalidTransition) ||
		errors.Is(err, validation.ErrInvalidInput)
}

func (h *PaymentCallbackHandler) warn(text string, msg *sarama.ConsumerMessage, err error) {
	if h.Logger != nil {
		h.Logger.Warn(text, "topic", msg.Topic, "offset", msg.Offset, "error", err)
	}
}

var _ MessageHandler = (*PaymentCallbackHandler)(nil)
