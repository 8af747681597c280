package dto

import (
	"time"

	domainanalytics "motorent/internal/domain/analytics"
	domainbooking "motorent/internal/domain/booking"
)

type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

type AssetRevenue struct {
	Asset   string   `json:"asset"`
	Revenue MoneyDTO `json:"revenue"`
}

type AnalyticsTotals struct {
	Bookings        int        `json:"bookings"`
	Confirmed       int        `json:"confirmed"`
	Pending         int        `json:"pending"`
	Cancelled       int        `json:"cancelled"`
	Failed          int        `json:"failed"`
	ConfirmedAmount MoneyDTO   `json:"confirmed_amount"`
	UniqueRenters   int        `json:"unique_renters,omitempty"`
	NextUpcoming    *time.Time `json:"next_upcoming,omitempty"`
}

type Analytics struct {
	Role           string          `json:"role"`
	ByStatus       map[string]int  `json:"by_status"`
	ByMonth        []MonthCount    `json:"by_month"`
	RevenueByAsset []AssetRevenue  `json:"revenue_by_asset,omitempty"`
	Totals         AnalyticsTotals `json:"totals"`
}

type Export struct {
	URL  string `json:"url"`
	Key  string `json:"key"`
	Rows int    `json:"rows"`
}

func MapAnalytics(role string, r domainanalytics.Report) Analytics {
	out := Analytics{
		Role:     role,
		ByStatus: make(map[string]int, len(r.ByStatus)),
		ByMonth:  make([]MonthCount, 0, len(r.ByMonth)),
		Totals: AnalyticsTotals{
			Bookings:        r.Totals.Bookings,
			Confirmed:       r.ByStatus[domainbooking.StatusConfirmed],
			Pending:         r.ByStatus[domainbooking.StatusPending],
			Cancelled:       r.ByStatus[domainbooking.StatusCancelled],
			Failed:          r.ByStatus[domainbooking.StatusFailed],
			ConfirmedAmount: MapMoney(r.Totals.ConfirmedAmount),
			UniqueRenters:   r.Totals.UniqueRenters,
			NextUpcoming:    r.Totals.NextUpcoming,
		},
	}
	for status, n := range r.ByStatus {
		out.ByStatus[string(status)] = n
	}
	for _, m := range r.ByMonth {
		out.ByMonth = append(out.ByMonth, MonthCount{Month: m.Month, Count: m.Count})
	}
	if r.RevenueByAsset != nil {
		out.RevenueByAsset = make([]AssetRevenue, 0, len(r.RevenueByAsset))
		for _, a := range r.RevenueByAsset {
			out.RevenueByAsset = append(out.RevenueByAsset, AssetRevenue{Asset: a.Asset, Revenue: MapMoney(a.Revenue)})
		}
	}
	return out
}
