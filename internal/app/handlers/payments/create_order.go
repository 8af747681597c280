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
	"motorent/internal/app/middleware"
	"motorent/internal/app/outbox"
	"motorent/internal/app/policies"
	"motorent/internal/app/uow"
	domainbooking "motorent/internal/domain/booking"
	"motorent/internal/domain/identity"
	"motorent/internal/domain/payment"
)

const createOrderKey = "payments.create_order"

type CreateOrderCommand struct {
	Actor     identity.Identity
	BookingID string `validate:"required"`
}

func (c CreateOrderCommand) Key() string { return createOrderKey }

func (c CreateOrderCommand) ActorIdentity() identity.Identity { return c.Actor }

// ScopesOwnUnits keeps the gateway call outside any unit of work.
func (c CreateOrderCommand) ScopesOwnUnits() bool { return true }

// CreateOrderHandler opens a gateway order for the server-held booking total.
// Retrying after a gateway failure is safe: a booking that already carries an
// order returns it instead of opening another.
type CreateOrderHandler struct {
	UoWFactory uow.UoWFactory
	Gateway    policies.PaymentGateway
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	KeyID      string
	Now        func() time.Time
	Logger     *slog.Logger
}

func (h *CreateOrderHandler) Handle(ctx context.Context, cmd CreateOrderCommand) (*dto.PaymentOrder, error) {
	b, err := h.loadOrderable(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if b.OrderRef != "" {
		return h.result(b, b.OrderRef), nil
	}

	order, err := h.Gateway.CreateOrder(ctx, b.TotalPrice, string(b.ID))
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("gateway order failed", "booking_id", b.ID, "error", err)
		}
		if errors.Is(err, payment.ErrGatewayUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", payment.ErrGatewayUnavailable, err)
	}
	if order.Amount.Amount != b.TotalPrice.Amount || order.Amount.Currency != b.TotalPrice.Currency {
		return nil, fmt.Errorf("%w: order amount %s does not match booking total %s", payment.ErrGatewayUnavailable, order.Amount, b.TotalPrice)
	}

	var result *dto.PaymentOrder
	err = support.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		current, err := unit.Bookings().ByID(ctx, b.ID)
		if err != nil {
			return err
		}
		// A concurrent request may have attached its order while the gateway ran.
		if current.OrderRef != "" && current.Status == domainbooking.StatusPending {
			result = h.result(current, current.OrderRef)
			return nil
		}
		if err := current.AttachOrder(order.Ref, h.now()); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, current); err != nil {
			return err
		}
		result = h.result(current, order.Ref)
		if order.KeyID != "" {
			result.KeyID = order.KeyID
		}
		return outbox.RecordPending(ctx, h.Outbox, h.Encoder, current)
	})
	if err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("payment order ready", "booking_id", result.BookingID, "order_ref", result.OrderRef, "amount", result.AmountMinorUnits)
	}
	return result, nil
}

func (h *CreateOrderHandler) loadOrderable(ctx context.Context, cmd CreateOrderCommand) (*domainbooking.Booking, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, err := unit.Bookings().ByID(execCtx, domainbooking.BookingID(cmd.BookingID))
	if err != nil {
		return nil, err
	}
	if b.RenterID != cmd.Actor.UserID {
		return nil, domainbooking.ErrForbidden
	}
	if b.Status != domainbooking.StatusPending {
		return nil, domainbooking.ErrInvalidTransition
	}
	return b, nil
}

func (h *CreateOrderHandler) result(b *domainbooking.Booking, orderRef string) *dto.PaymentOrder {
	return &dto.PaymentOrder{
		BookingID:        string(b.ID),
		OrderRef:         orderRef,
		AmountMinorUnits: b.TotalPrice.Amount,
		Currency:         b.TotalPrice.Currency,
		KeyID:            h.KeyID,
	}
}

func (h *CreateOrderHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

var (
	_ commands.Handler[CreateOrderCommand, *dto.PaymentOrder] = (*CreateOrderHandler)(nil)
	_ middleware.UnitScopedCommand                            = CreateOrderCommand{}
)
