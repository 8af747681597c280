package booking

import (
	"context"
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
	domainassets "motorent/internal/domain/assets"
	domainbooking "motorent/internal/domain/booking"
	"motorent/internal/domain/identity"
	"motorent/internal/domain/pricing"
)

const createBookingKey = "booking.create"

var ErrOwnAsset = fmt.Errorf("%w: owners cannot book their own asset", domainbooking.ErrForbidden)

type CreateBookingCommand struct {
	BookingID       string `validate:"required"`
	Actor           identity.Identity
	AssetID         string    `validate:"required"`
	StartDate       time.Time `validate:"required"`
	EndDate         time.Time `validate:"required"`
	IdempotencyKeyV string
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

func (c CreateBookingCommand) ActorIdentity() identity.Identity { return c.Actor }

// ScopesOwnUnits keeps the catalog lookup outside the write unit.
func (c CreateBookingCommand) ScopesOwnUnits() bool { return true }

func (c CreateBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateBookingCommand) ResultPrototype() any { return &dto.BookingStatus{} }

// RequestFingerprint ignores BookingID, which the edge mints per request.
func (c CreateBookingCommand) RequestFingerprint() string {
	return c.AssetID + "|" + c.StartDate.UTC().Format(time.DateOnly) + "|" + c.EndDate.UTC().Format(time.DateOnly)
}

type CreateBookingHandler struct {
	UoWFactory uow.UoWFactory
	Catalog    policies.CatalogPort
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
	Logger     *slog.Logger
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.BookingStatus, error) {
	asset, err := h.Catalog.Asset(ctx, domainassets.AssetID(cmd.AssetID))
	if err != nil {
		return nil, err
	}
	if asset.OwnerID == cmd.Actor.UserID {
		return nil, ErrOwnAsset
	}
	if !asset.Available {
		return nil, domainbooking.ErrAssetUnavailable
	}
	quote, err := pricing.Compute(cmd.StartDate, cmd.EndDate, asset.RatePerDay)
	if err != nil {
		return nil, err
	}
	b, err := domainbooking.New(domainbooking.CreateParams{
		ID:        domainbooking.BookingID(cmd.BookingID),
		Asset:     asset,
		RenterID:  cmd.Actor.UserID,
		Quote:     quote,
		CreatedAt: h.now(),
	})
	if err != nil {
		return nil, err
	}

	err = support.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		if err := unit.Bookings().Create(ctx, b); err != nil {
			return err
		}
		return outbox.RecordPending(ctx, h.Outbox, h.Encoder, b)
	})
	if err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking created", "booking_id", b.ID, "asset_id", b.AssetID, "renter_id", b.RenterID, "total", b.TotalPrice.String())
	}
	return &dto.BookingStatus{
		BookingID:  string(b.ID),
		TotalPrice: dto.MapMoney(b.TotalPrice),
		Status:     string(b.Status),
	}, nil
}

func (h *CreateBookingHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

var _ commands.Handler[CreateBookingCommand, *dto.BookingStatus] = (*CreateBookingHandler)(nil)
var (
	_ middleware.IdempotentCommand = CreateBookingCommand{}
	_ middleware.UnitScopedCommand = CreateBookingCommand{}
)
