package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"motorent/internal/domain/assets"
	"motorent/internal/domain/pricing"
	"motorent/internal/domain/shared/daterange"
	"motorent/internal/domain/shared/events"
	"motorent/internal/domain/shared/money"
)

var (
	ErrAssetUnavailable  = errors.New("booking: asset unavailable for the requested range")
	ErrInvalidTransition = errors.New("booking: invalid state transition")
	ErrForbidden         = errors.New("booking: actor may not modify this booking")
	ErrBookingNotFound   = errors.New("booking: not found")
	ErrConcurrentUpdate  = errors.New("booking: concurrent update detected")
	ErrNonPositiveTotal  = fmt.Errorf("%w: booking total must be positive", pricing.ErrInvalidRate)
)

// Failure reasons recorded on failed bookings.
const (
	ReasonSignatureMismatch = "signature_mismatch"
	ReasonPaymentTimeout    = "payment_timeout"
)

type BookingID string

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusCancelled, StatusFailed}

// Blocking reports whether a booking in this status holds its range on the asset calendar.
func (s Status) Blocking() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusFailed
}

type Booking struct {
	ID            BookingID
	AssetID       assets.AssetID
	AssetTitle    string
	RenterID      string
	OwnerID       string
	Range         daterange.DateRange
	TotalPrice    money.Money
	Status        Status
	OrderRef      string
	PaymentRef    string
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int64
	events.EventRecorder
}

// Repository persists bookings. Create must check availability and insert atomically.
type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	ByOrderRef(ctx context.Context, orderRef string) (*Booking, error)
	Create(ctx context.Context, booking *Booking) error
	Save(ctx context.Context, booking *Booking) error
	ListByRenter(ctx context.Context, renterID string) ([]*Booking, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Booking, error)
	ListBlockingByAsset(ctx context.Context, assetID assets.AssetID) ([]*Booking, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*Booking, error)
}

type CreateParams struct {
	ID        BookingID
	Asset     assets.Asset
	RenterID  string
	Quote     pricing.Quote
	CreatedAt time.Time
}

// New builds a pending booking from a priced quote. Availability is the caller's concern.
func New(params CreateParams) (*Booking, error) {
	if params.ID == "" {
		return nil, errors.New("booking: id required")
	}
	if strings.TrimSpace(params.RenterID) == "" {
		return nil, errors.New("booking: renter id required")
	}
	if !params.Asset.Available {
		return nil, ErrAssetUnavailable
	}
	if !params.Quote.Total.IsPositive() {
		return nil, ErrNonPositiveTotal
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:         params.ID,
		AssetID:    params.Asset.ID,
		AssetTitle: params.Asset.DisplayName(),
		RenterID:   params.RenterID,
		OwnerID:    params.Asset.OwnerID,
		Range:      params.Quote.Range,
		TotalPrice: params.Quote.Total,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	b.Record(BookingRequested{
		BookingID: b.ID,
		AssetID:   b.AssetID,
		RenterID:  b.RenterID,
		OwnerID:   b.OwnerID,
		Range:     b.Range,
		Total:     b.TotalPrice,
		At:        now,
	})
	return b, nil
}

// AttachOrder records the gateway order once while the booking is pending.
func (b *Booking) AttachOrder(orderRef string, now time.Time) error {
	orderRef = strings.TrimSpace(orderRef)
	if orderRef == "" {
		return errors.New("booking: order ref required")
	}
	if b.Status != StatusPending || b.OrderRef != "" {
		return ErrInvalidTransition
	}
	b.OrderRef = orderRef
	b.touch(now)
	b.Record(OrderAttached{BookingID: b.ID, OrderRef: orderRef, Amount: b.TotalPrice, At: b.UpdatedAt})
	return nil
}

// Confirm settles the booking. Repeating it with the same payment ref is a no-op,
// so a redelivered gateway callback reports changed=false.
func (b *Booking) Confirm(paymentRef string, now time.Time) (changed bool, err error) {
	paymentRef = strings.TrimSpace(paymentRef)
	if paymentRef == "" {
		return false, errors.New("booking: payment ref required")
	}
	if b.Status == StatusConfirmed && b.PaymentRef == paymentRef {
		return false, nil
	}
	if b.Status != StatusPending || b.OrderRef == "" || b.PaymentRef != "" {
		return false, ErrInvalidTransition
	}
	b.Status = StatusConfirmed
	b.PaymentRef = paymentRef
	b.touch(now)
	b.Record(BookingConfirmed{
		BookingID:  b.ID,
		AssetID:    b.AssetID,
		OrderRef:   b.OrderRef,
		PaymentRef: paymentRef,
		Total:      b.TotalPrice,
		At:         b.UpdatedAt,
	})
	return true, nil
}

func (b *Booking) Fail(reason string, now time.Time) error {
	if b.Status != StatusPending {
		return ErrInvalidTransition
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unspecified"
	}
	b.Status = StatusFailed
	b.FailureReason = reason
	b.touch(now)
	b.Record(BookingFailed{BookingID: b.ID, OrderRef: b.OrderRef, Reason: reason, At: b.UpdatedAt})
	return nil
}

// Cancel is allowed to the renter or the asset owner while the booking is pending.
func (b *Booking) Cancel(actorID string, now time.Time) error {
	if !b.InvolvesUser(actorID) {
		return ErrForbidden
	}
	if b.Status != StatusPending {
		return ErrInvalidTransition
	}
	b.Status = StatusCancelled
	b.touch(now)
	b.Record(BookingCancelled{BookingID: b.ID, ActorID: actorID, At: b.UpdatedAt})
	return nil
}

// InvolvesUser reports whether the user is the renter or the owner.
func (b *Booking) InvolvesUser(userID string) bool {
	userID = strings.TrimSpace(userID)
	return userID != "" && (userID == b.RenterID || userID == b.OwnerID)
}

func (b *Booking) touch(now time.Time) {
	b.UpdatedAt = now.UTC()
}
