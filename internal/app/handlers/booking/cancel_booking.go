package booking

import (
	"context"
	"log/slog"
	"time"

	"motorent/internal/app/commands"
	"motorent/internal/app/dto"
	"motorent/internal/app/handlers/support"
	"motorent/internal/app/outbox"
	"motorent/internal/app/uow"
	domainbooking "motorent/internal/domain/booking"
	"motorent/internal/domain/identity"
)

const cancelBookingKey = "booking.cancel"

type CancelBookingCommand struct {
	Actor     identity.Identity
	BookingID string `validate:"required"`
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

func (c CancelBookingCommand) ActorIdentity() identity.Identity { return c.Actor }

type CancelBookingHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
	Logger     *slog.Logger
}

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (*dto.BookingTransition, error) {
	var result *dto.BookingTransition
	err := support.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(cmd.BookingID))
		if err != nil {
			return err
		}
		if err := b.Cancel(cmd.Actor.UserID, h.now()); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		result = &dto.BookingTransition{BookingID: string(b.ID), Status: string(b.Status)}
		return outbox.RecordPending(ctx, h.Outbox, h.Encoder, b)
	})
	if err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("booking cancelled", "booking_id", cmd.BookingID, "actor_id", cmd.Actor.UserID)
	}
	return result, nil
}

func (h *CancelBookingHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

var _ commands.Handler[CancelBookingCommand, *dto.BookingTransition] = (*CancelBookingHandler)(nil)
