package payments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"motorent/internal/app/commands"
	"motorent/internal/app/dto"
	"motorent/internal/app/handlers/support"
	"motorent/internal/app/outbox"
	"motorent/internal/app/uow"
	domainbooking "motorent/internal/domain/booking"
)

const reconcileKey = "payments.reconcile"

const DefaultPendingTimeout = 30 * time.Minute

// ReconcilePendingCommand fails bookings left pending past the payment timeout.
type ReconcilePendingCommand struct {
	Now time.Time
}

func (c ReconcilePendingCommand) Key() string { return reconcileKey }

// ReconcilePendingHandler runs each expiry in its own unit of work so one lost race
// does not abort the sweep. It must not be dispatched inside a Transaction.
type ReconcilePendingHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Timeout    time.Duration
	Logger     *slog.Logger
}

func (h *ReconcilePendingHandler) Handle(ctx context.Context, cmd ReconcilePendingCommand) (*dto.ReconcileResult, error) {
	now := cmd.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	cutoff := now.Add(-h.timeout())

	stale, err := h.listStale(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	result := &dto.ReconcileResult{Scanned: len(stale), Failed: []string{}}
	for _, candidate := range stale {
		expired, err := h.expire(ctx, candidate.ID, cutoff, now)
		if err != nil {
			if h.Logger != nil {
				h.Logger.Warn("pending booking not expired", "booking_id", candidate.ID, "error", err)
			}
			continue
		}
		if expired {
			result.Failed = append(result.Failed, string(candidate.ID))
		}
	}
	if h.Outbox != nil && len(result.Failed) > 0 {
		if err := h.Outbox.Flush(ctx); err != nil {
			return result, err
		}
	}
	if h.Logger != nil && len(result.Failed) > 0 {
		h.Logger.Info("stale pending bookings failed", "count", len(result.Failed), "cutoff", cutoff)
	}
	return result, nil
}

func (h *ReconcilePendingHandler) listStale(ctx context.Context, cutoff time.Time) ([]*domainbooking.Booking, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	return unit.Bookings().ListPendingBefore(execCtx, cutoff)
}

func (h *ReconcilePendingHandler) expire(ctx context.Context, id domainbooking.BookingID, cutoff, now time.Time) (bool, error) {
	expired := false
	err := support.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, id)
		if err != nil {
			return err
		}
		// Re-checked: a callback may have settled it since the scan.
		if b.Status != domainbooking.StatusPending || !b.CreatedAt.Before(cutoff) {
			return nil
		}
		if err := b.Fail(domainbooking.ReasonPaymentTimeout, now); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		expired = true
		return outbox.RecordPending(ctx, h.Outbox, h.Encoder, b)
	})
	if errors.Is(err, domainbooking.ErrConcurrentUpdate) {
		return false, nil
	}
	return expired, err
}

func (h *ReconcilePendingHandler) timeout() time.Duration {
	if h.Timeout > 0 {
		return h.Timeout
	}
	return DefaultPendingTimeout
}

var _ commands.Handler[ReconcilePendingCommand, *dto.ReconcileResult] = (*ReconcilePendingHandler)(nil)
