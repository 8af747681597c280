package pricing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"motorent/internal/domain/shared/daterange"
	"motorent/internal/domain/shared/money"
)

var (
	ErrInvalidRange = errors.New("pricing: end date is before start date")
	ErrInvalidRate  = errors.New("pricing: rate per day must not be negative")
)

// Quote is the priced view of a rental window.
type Quote struct {
	Range   daterange.DateRange
	Days    int64
	DayRate money.Money
	Total   money.Money
}

// Compute prices a rental: billed days (minimum one) times the day rate, rounded
// half up to the currency minor unit. It is the only place a booking total is derived.
func Compute(start, end time.Time, ratePerDay decimal.Decimal) (Quote, error) {
	dr, err := daterange.New(start, end)
	if err != nil {
		return Quote{}, ErrInvalidRange
	}
	return ComputeRange(dr, ratePerDay)
}

// ComputeRange is Compute for an already validated range.
func ComputeRange(dr daterange.DateRange, ratePerDay decimal.Decimal) (Quote, error) {
	if err := dr.Validate(); err != nil {
		return Quote{}, ErrInvalidRange
	}
	if ratePerDay.IsNegative() {
		return Quote{}, ErrInvalidRate
	}
	days := dr.Days()
	total, err := money.FromMajor(ratePerDay.Mul(decimal.NewFromInt(days)), money.DefaultCurrency)
	if err != nil {
		return Quote{}, err
	}
	rate, err := money.FromMajor(ratePerDay, money.DefaultCurrency)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Range: dr, Days: days, DayRate: rate, Total: total}, nil
}
