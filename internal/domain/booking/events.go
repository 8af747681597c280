package booking

import (
	"time"

	"motorent/internal/domain/assets"
	"motorent/internal/domain/shared/daterange"
	"motorent/internal/domain/shared/money"
)

type BookingRequested struct {
	BookingID BookingID           `json:"booking_id"`
	AssetID   assets.AssetID      `json:"asset_id"`
	RenterID  string              `json:"renter_id"`
	OwnerID   string              `json:"owner_id"`
	Range     daterange.DateRange `json:"range"`
	Total     money.Money         `json:"total"`
	At        time.Time           `json:"at"`
}

func (e BookingRequested) EventName() string { return "booking.requested" }

func (e BookingRequested) AggregateID() string { return string(e.BookingID) }

func (e BookingRequested) OccurredAt() time.Time { return e.At }

type OrderAttached struct {
	BookingID BookingID   `json:"booking_id"`
	OrderRef  string      `json:"order_ref"`
	Amount    money.Money `json:"amount"`
	At        time.Time   `json:"at"`
}

func (e OrderAttached) EventName() string { return "booking.order_attached" }

func (e OrderAttached) AggregateID() string { return string(e.BookingID) }

func (e OrderAttached) OccurredAt() time.Time { return e.At }

type BookingConfirmed struct {
	BookingID  BookingID      `json:"booking_id"`
	AssetID    assets.AssetID `json:"asset_id"`
	OrderRef   string         `json:"order_ref"`
	PaymentRef string         `json:"payment_ref"`
	Total      money.Money    `json:"total"`
	At         time.Time      `json:"at"`
}

func (e BookingConfirmed) EventName() string { return "booking.confirmed" }

func (e BookingConfirmed) AggregateID() string { return string(e.BookingID) }

func (e BookingConfirmed) OccurredAt() time.Time { return e.At }

type BookingFailed struct {
	BookingID BookingID `json:"booking_id"`
	OrderRef  string    `json:"order_ref,omitempty"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

func (e BookingFailed) EventName() string { return "booking.failed" }

func (e BookingFailed) AggregateID() string { return string(e.BookingID) }

func (e BookingFailed) OccurredAt() time.Time { return e.At }

type BookingCancelled struct {
	BookingID BookingID `json:"booking_id"`
	ActorID   string    `json:"actor_id"`
	At        time.Time `json:"at"`
}

func (e BookingCancelled) EventName() string { return "booking.cancelled" }

func (e BookingCancelled) AggregateID() string { return string(e.BookingID) }

func (e BookingCancelled) OccurredAt() time.Time { return e.At }
