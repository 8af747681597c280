package booking

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"motorent/internal/app/dto"
	"motorent/internal/app/handlers/support"
	"motorent/internal/app/queries"
	"motorent/internal/app/uow"
	domainbooking "motorent/internal/domain/booking"
	"motorent/internal/domain/identity"
)

const (
	listBookingsKey = "booking.list"
	getBookingKey   = "booking.get"

	ScopeMine        = "mine"
	ScopeForMyAssets = "for-my-assets"
)

var ErrInvalidScope = errors.New("booking: scope must be mine or for-my-assets")

type ListBookingsQuery struct {
	Actor identity.Identity
	Scope string
}

func (q ListBookingsQuery) Key() string { return listBookingsKey }

func (q ListBookingsQuery) ActorIdentity() identity.Identity { return q.Actor }

type ListBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *ListBookingsHandler) Handle(ctx context.Context, q ListBookingsQuery) (dto.BookingCollection, error) {
	scope, err := ResolveScope(q.Actor, q.Scope)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	items, err := ScopedBookings(execCtx, unit, q.Actor, scope)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if h.Logger != nil {
		h.Logger.Debug("bookings listed", "user_id", q.Actor.UserID, "scope", scope, "count", len(items))
	}
	return dto.MapBookings(items), nil
}

// ResolveScope defaults the scope from the caller's role. Only listers may read
// bookings made on their assets.
func ResolveScope(actor identity.Identity, raw string) (string, error) {
	scope := strings.ToLower(strings.TrimSpace(raw))
	switch scope {
	case "":
		if actor.IsLister() {
			return ScopeForMyAssets, nil
		}
		return ScopeMine, nil
	case ScopeMine:
		return scope, nil
	case ScopeForMyAssets:
		if !actor.IsLister() {
			return "", domainbooking.ErrForbidden
		}
		return scope, nil
	}
	return "", ErrInvalidScope
}

// ScopedBookings loads the caller's bookings, newest first.
func ScopedBookings(ctx context.Context, unit uow.UnitOfWork, actor identity.Identity, scope string) ([]*domainbooking.Booking, error) {
	var (
		items []*domainbooking.Booking
		err   error
	)
	if scope == ScopeForMyAssets {
		items, err = unit.Bookings().ListByOwner(ctx, actor.UserID)
	} else {
		items, err = unit.Bookings().ListByRenter(ctx, actor.UserID)
	}
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

type GetBookingQuery struct {
	Actor     identity.Identity
	BookingID string `validate:"required"`
}

func (q GetBookingQuery) Key() string { return getBookingKey }

func (q GetBookingQuery) ActorIdentity() identity.Identity { return q.Actor }

type GetBookingHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (dto.Booking, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Booking{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, err := unit.Bookings().ByID(execCtx, domainbooking.BookingID(q.BookingID))
	if err != nil {
		return dto.Booking{}, err
	}
	if !b.InvolvesUser(q.Actor.UserID) {
		return dto.Booking{}, domainbooking.ErrForbidden
	}
	return dto.MapBooking(b), nil
}

var _ queries.Handler[ListBookingsQuery, dto.BookingCollection] = (*ListBookingsHandler)(nil)
var _ queries.Handler[GetBookingQuery, dto.Booking] = (*GetBookingHandler)(nil)
