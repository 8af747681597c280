package analytics

import (
	"errors"
	"sort"
	"time"

	"motorent/internal/domain/booking"
	"motorent/internal/domain/identity"
	"motorent/internal/domain/shared/money"
)

// MonthCount is one bucket of the chronological month series.
type MonthCount struct {
	Month string
	Count int
}

// AssetRevenue is confirmed revenue for one asset display name.
type AssetRevenue struct {
	Asset   string
	Revenue money.Money
}

// Report is the reduction of a booking snapshot.
type Report struct {
	ByStatus       map[booking.Status]int
	ByMonth        []MonthCount
	RevenueByAsset []AssetRevenue
	Totals         Totals
}

// Totals are the dashboard figures shown next to the charts.
type Totals struct {
	Bookings        int
	ConfirmedAmount money.Money
	UniqueRenters   int        // listers only
	NextUpcoming    *time.Time // takers only
}

var ErrInvalidFilter = errors.New("analytics: from must not be after to")

// Filter narrows the snapshot by booking start date; zero bounds are open.
type Filter struct {
	From time.Time
	To   time.Time
}

func (f Filter) Validate() error {
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return ErrInvalidFilter
	}
	return nil
}

func (f Filter) includes(b *booking.Booking) bool {
	start := b.Range.Start
	if !f.From.IsZero() && start.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && start.After(f.To) {
		return false
	}
	return true
}

// Apply returns the bookings that fall inside the filter.
func (f Filter) Apply(bookings []*booking.Booking) []*booking.Booking {
	out := make([]*booking.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b != nil && f.includes(b) {
			out = append(out, b)
		}
	}
	return out
}

// Aggregate reduces bookings into status counts, a sparse chronological month
// series and, for listers only, confirmed revenue per asset. It never mutates input.
func Aggregate(bookings []*booking.Booking, role identity.Role, now time.Time) Report {
	report := Report{
		ByStatus: make(map[booking.Status]int, len(booking.Statuses)),
		ByMonth:  []MonthCount{},
		Totals:   Totals{ConfirmedAmount: money.Money{Currency: money.DefaultCurrency}},
	}
	for _, s := range booking.Statuses {
		report.ByStatus[s] = 0
	}

	months := map[string]int{}
	revenue := map[string]int64{}
	renters := map[string]struct{}{}
	for _, b := range bookings {
		if b == nil {
			continue
		}
		report.Totals.Bookings++
		report.ByStatus[b.Status]++
		months[b.Range.MonthKey()]++
		renters[b.RenterID] = struct{}{}
		if b.Status != booking.StatusConfirmed {
			continue
		}
		report.Totals.ConfirmedAmount.Amount += b.TotalPrice.Amount
		revenue[b.AssetTitle] += b.TotalPrice.Amount
		if b.Range.Start.After(now) && (report.Totals.NextUpcoming == nil || b.Range.Start.Before(*report.Totals.NextUpcoming)) {
			start := b.Range.Start
			report.Totals.NextUpcoming = &start
		}
	}

	keys := make([]string, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		report.ByMonth = append(report.ByMonth, MonthCount{Month: k, Count: months[k]})
	}

	if role == identity.RoleLister {
		report.RevenueByAsset = make([]AssetRevenue, 0, len(revenue))
		for name, amount := range revenue {
			report.RevenueByAsset = append(report.RevenueByAsset, AssetRevenue{
				Asset:   name,
				Revenue: money.Money{Amount: amount, Currency: money.DefaultCurrency},
			})
		}
		sort.Slice(report.RevenueByAsset, func(i, j int) bool {
			a, b := report.RevenueByAsset[i], report.RevenueByAsset[j]
			if a.Revenue.Amount != b.Revenue.Amount {
				return a.Revenue.Amount > b.Revenue.Amount
			}
			return a.Asset < b.Asset
		})
		report.Totals.UniqueRenters = len(renters)
		report.Totals.NextUpcoming = nil
	}
	return report
}
