package dto

import (
	"time"

	domainbooking "motorent/internal/domain/booking"
	"motorent/internal/domain/pricing"
	"motorent/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

type Booking struct {
	ID            string    `json:"id"`
	AssetID       string    `json:"asset_id"`
	AssetTitle    string    `json:"asset_title"`
	RenterID      string    `json:"renter_id"`
	OwnerID       string    `json:"owner_id"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	Days          int64     `json:"days"`
	TotalPrice    MoneyDTO  `json:"total_price"`
	Status        string    `json:"status"`
	OrderRef      string    `json:"order_ref,omitempty"`
	PaymentRef    string    `json:"payment_ref,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type BookingCollection struct {
	Items []Booking `json:"items"`
}

type Quote struct {
	AssetID   string    `json:"asset_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Days      int64     `json:"days"`
	DayRate   MoneyDTO  `json:"day_rate"`
	Total     MoneyDTO  `json:"total"`
	Available bool      `json:"available"`
}

// BlockedRange is a window held on an asset calendar by a pending or confirmed booking.
type BlockedRange struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Status    string    `json:"status"`
}

type AssetCalendar struct {
	AssetID string         `json:"asset_id"`
	Blocked []BlockedRange `json:"blocked"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{
		Amount:   value.Amount,
		Currency: value.Currency,
		Display:  value.String(),
	}
}

func MapBooking(b *domainbooking.Booking) Booking {
	return Booking{
		ID:            string(b.ID),
		AssetID:       string(b.AssetID),
		AssetTitle:    b.AssetTitle,
		RenterID:      b.RenterID,
		OwnerID:       b.OwnerID,
		StartDate:     b.Range.Start,
		EndDate:       b.Range.End,
		Days:          b.Range.Days(),
		TotalPrice:    MapMoney(b.TotalPrice),
		Status:        string(b.Status),
		OrderRef:      b.OrderRef,
		PaymentRef:    b.PaymentRef,
		FailureReason: b.FailureReason,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func MapBookings(items []*domainbooking.Booking) BookingCollection {
	out := make([]Booking, 0, len(items))
	for _, b := range items {
		out = append(out, MapBooking(b))
	}
	return BookingCollection{Items: out}
}

func MapQuote(assetID string, q pricing.Quote, available bool) Quote {
	return Quote{
		AssetID:   assetID,
		StartDate: q.Range.Start,
		EndDate:   q.Range.End,
		Days:      q.Days,
		DayRate:   MapMoney(q.DayRate),
		Total:     MapMoney(q.Total),
		Available: available,
	}
}
