package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"motorent/internal/app/commands"
	"motorent/internal/app/dto"
	"motorent/internal/app/handlers/support"
	"motorent/internal/app/outbox"
	"motorent/internal/app/policies"
	"motorent/internal/app/uow"
	domainbooking "motorent/internal/domain/booking"
	"motorent/internal/domain/payment"
)

const verifyPaymentKey = "payments.verify"

// VerifyPaymentCommand carries a gateway callback. It has no actor: the callback
// is authenticated by its signature, not by the caller.
type VerifyPaymentCommand struct {
	OrderRef   string `validate:"required"`
	PaymentRef string `validate:"required"`
	Signature  string `validate:"required"`
}

func (c VerifyPaymentCommand) Key() string { return verifyPaymentKey }

func (c VerifyPaymentCommand) callback() payment.Callback {
	return payment.Callback{OrderRef: c.OrderRef, PaymentRef: c.PaymentRef, Signature: c.Signature}.Normalize()
}

type VerifyPaymentHandler struct {
	UoWFactory uow.UoWFactory
	Gateway    policies.PaymentGateway
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
	Logger     *slog.Logger
}

func (h *VerifyPaymentHandler) Handle(ctx context.Context, cmd VerifyPaymentCommand) (*dto.BookingTransition, error) {
	cb := cmd.callback()
	var result *dto.BookingTransition
	err := support.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByOrderRef(ctx, cb.OrderRef)
		if err != nil {
			if errors.Is(err, domainbooking.ErrBookingNotFound) {
				return fmt.Errorf("%w: unknown order %s", payment.ErrPaymentVerification, cb.OrderRef)
			}
			return err
		}
		if !h.Gateway.VerifySignature(cb) {
			return h.reject(ctx, unit, b)
		}

		changed, err := b.Confirm(cb.PaymentRef, h.now())
		if err != nil {
			if h.Logger != nil {
				h.Logger.Error("verified payment cannot confirm booking", "booking_id", b.ID, "status", b.Status, "payment_ref", cb.PaymentRef, "error", err)
			}
			return err
		}
		result = &dto.BookingTransition{BookingID: string(b.ID), Status: string(b.Status)}
		if !changed {
			return nil
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		return outbox.RecordPending(ctx, h.Outbox, h.Encoder, b)
	})
	if err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("payment verified", "booking_id", result.BookingID, "order_ref", cb.OrderRef, "payment_ref", cb.PaymentRef)
	}
	return result, nil
}

// reject fails a pending booking whose callback did not verify. The failure is
// committed and the caller still receives ErrPaymentVerification.
func (h *VerifyPaymentHandler) reject(ctx context.Context, unit uow.UnitOfWork, b *domainbooking.Booking) error {
	if h.Logger != nil {
		h.Logger.Warn("payment signature mismatch", "booking_id", b.ID, "order_ref", b.OrderRef, "status", b.Status)
	}
	if b.Status != domainbooking.StatusPending {
		return payment.ErrPaymentVerification
	}
	if err := b.Fail(domainbooking.ReasonSignatureMismatch, h.now()); err != nil {
		return err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return err
	}
	if err := outbox.RecordPending(ctx, h.Outbox, h.Encoder, b); err != nil {
		return err
	}
	return &payment.VerificationError{BookingID: string(b.ID), Reason: domainbooking.ReasonSignatureMismatch}
}

func (h *VerifyPaymentHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

var _ commands.Handler[VerifyPaymentCommand, *dto.BookingTransition] = (*VerifyPaymentHandler)(nil)
