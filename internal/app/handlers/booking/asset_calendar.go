package booking

import (
	"context"
	"time"

	"motorent/internal/app/dto"
	"motorent/internal/app/handlers/support"
	"motorent/internal/app/policies"
	"motorent/internal/app/queries"
	"motorent/internal/app/uow"
	domainassets "motorent/internal/domain/assets"
	"motorent/internal/domain/availability"
	"motorent/internal/domain/pricing"
	"motorent/internal/domain/shared/daterange"
)

const (
	assetCalendarKey = "asset.calendar"
	quoteKey         = "asset.quote"
)

// AssetCalendarQuery lists the windows currently held on an asset.
type AssetCalendarQuery struct {
	AssetID string `validate:"required"`
}

func (q AssetCalendarQuery) Key() string { return assetCalendarKey }

type AssetCalendarHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *AssetCalendarHandler) Handle(ctx context.Context, q AssetCalendarQuery) (dto.AssetCalendar, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.AssetCalendar{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	held, err := unit.Bookings().ListBlockingByAsset(execCtx, domainassets.AssetID(q.AssetID))
	if err != nil {
		return dto.AssetCalendar{}, err
	}
	out := dto.AssetCalendar{AssetID: q.AssetID, Blocked: make([]dto.BlockedRange, 0, len(held))}
	for _, b := range held {
		occupied := b.Range.Occupied()
		out.Blocked = append(out.Blocked, dto.BlockedRange{StartDate: occupied.Start, EndDate: occupied.End, Status: string(b.Status)})
	}
	return out, nil
}

// QuoteQuery previews the price of a rental without holding the range.
type QuoteQuery struct {
	AssetID   string    `validate:"required"`
	StartDate time.Time `validate:"required"`
	EndDate   time.Time `validate:"required"`
}

func (q QuoteQuery) Key() string { return quoteKey }

type QuoteHandler struct {
	UoWFactory uow.UoWFactory
	Catalog    policies.CatalogPort
}

func (h *QuoteHandler) Handle(ctx context.Context, q QuoteQuery) (dto.Quote, error) {
	asset, err := h.Catalog.Asset(ctx, domainassets.AssetID(q.AssetID))
	if err != nil {
		return dto.Quote{}, err
	}
	quote, err := pricing.Compute(q.StartDate, q.EndDate, asset.RatePerDay)
	if err != nil {
		return dto.Quote{}, err
	}
	available, err := h.available(ctx, asset, quote.Range)
	if err != nil {
		return dto.Quote{}, err
	}
	return dto.MapQuote(q.AssetID, quote, available), nil
}

func (h *QuoteHandler) available(ctx context.Context, asset domainassets.Asset, dr daterange.DateRange) (bool, error) {
	if !asset.Available {
		return false, nil
	}
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return false, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	held, err := unit.Bookings().ListBlockingByAsset(execCtx, asset.ID)
	if err != nil {
		return false, err
	}
	return availability.IsAvailable(asset.ID, dr, held), nil
}

var _ queries.Handler[AssetCalendarQuery, dto.AssetCalendar] = (*AssetCalendarHandler)(nil)
var _ queries.Handler[QuoteQuery, dto.Quote] = (*QuoteHandler)(nil)
