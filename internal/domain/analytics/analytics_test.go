package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"motorent/internal/domain/booking"
	"motorent/internal/domain/identity"
	"motorent/internal/domain/shared/daterange"
	"motorent/internal/domain/shared/money"
)

var now = time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)

func mk(id, title, renter string, status booking.Status, start string, amount int64) *booking.Booking {
	s, err := time.Parse("2006-01-02", start)
	if err != nil {
		panic(err)
	}
	return &booking.Booking{
		ID:         booking.BookingID(id),
		AssetTitle: title,
		RenterID:   renter,
		Status:     status,
		Range:      daterange.DateRange{Start: s, End: s.Add(48 * time.Hour)},
		TotalPrice: money.Must(amount, money.DefaultCurrency),
	}
}

func fixtures() []*booking.Booking {
	return []*booking.Booking{
		mk("1", "Pulsar 150", "r1", booking.StatusConfirmed, "2025-03-02", 300000),
		mk("2", "Pulsar 150", "r2", booking.StatusConfirmed, "2025-01-10", 150000),
		mk("3", "Activa 6G", "r1", booking.StatusConfirmed, "2025-01-20", 90000),
		mk("4", "Activa 6G", "r3", booking.StatusPending, "2025-03-05", 90000),
		mk("5", "Activa 6G", "r3", booking.StatusFailed, "2024-12-28", 90000),
		mk("6", "Pulsar 150", "r2", booking.StatusCancelled, "2025-01-11", 150000),
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	r := Aggregate(nil, identity.RoleLister, now)
	require.Len(t, r.ByStatus, 4)
	for _, s := range booking.Statuses {
		require.Zero(t, r.ByStatus[s])
	}
	require.Empty(t, r.ByMonth)
	require.NotNil(t, r.RevenueByAsset)
	require.Empty(t, r.RevenueByAsset)
}

func TestStatusCountsSumToInput(t *testing.T) {
	in := fixtures()
	r := Aggregate(in, identity.RoleTaker, now)
	total := 0
	for _, n := range r.ByStatus {
		total += n
	}
	require.Equal(t, len(in), total)
	require.Equal(t, 3, r.ByStatus[booking.StatusConfirmed])
}

func TestByMonthIsChronologicalAndSparse(t *testing.T) {
	r := Aggregate(fixtures(), identity.RoleTaker, now)
	require.Equal(t, []MonthCount{
		{Month: "2024-12", Count: 1},
		{Month: "2025-01", Count: 3},
		{Month: "2025-03", Count: 2},
	}, r.ByMonth)
}

func TestRevenueByAssetListerOnly(t *testing.T) {
	taker := Aggregate(fixtures(), identity.RoleTaker, now)
	require.Nil(t, taker.RevenueByAsset)
	require.NotNil(t, taker.Totals.NextUpcoming)
	require.Equal(t, "2025-03-02", taker.Totals.NextUpcoming.Format("2006-01-02"))

	lister := Aggregate(fixtures(), identity.RoleLister, now)
	require.Equal(t, []AssetRevenue{
		{Asset: "Pulsar 150", Revenue: money.Must(450000, "INR")},
		{Asset: "Activa 6G", Revenue: money.Must(90000, "INR")},
	}, lister.RevenueByAsset)
	require.Equal(t, int64(540000), lister.Totals.ConfirmedAmount.Amount)
	require.Equal(t, 3, lister.Totals.UniqueRenters)
	require.Nil(t, lister.Totals.NextUpcoming)
}

func TestFilterByStartDate(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	got := Filter{From: from, To: to}.Apply(fixtures())
	require.Len(t, got, 3)

	require.Len(t, Filter{}.Apply(fixtures()), 6)
}

func TestFilterRejectsInvertedBounds(t *testing.T) {
	from := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.ErrorIs(t, Filter{From: from, To: to}.Validate(), ErrInvalidFilter)
	require.NoError(t, Filter{From: from}.Validate())
}
