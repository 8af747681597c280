package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"motorent/internal/domain/booking"
	"motorent/internal/domain/shared/daterange"
)

func rng(t *testing.T, start, end string) daterange.DateRange {
	t.Helper()
	s, err := time.Parse("2006-01-02", start)
	require.NoError(t, err)
	e, err := time.Parse("2006-01-02", end)
	require.NoError(t, err)
	dr, err := daterange.New(s, e)
	require.NoError(t, err)
	return dr
}

func TestIsAvailable(t *testing.T) {
	held := &booking.Booking{ID: "b1", AssetID: "bike-1", Range: rng(t, "2025-01-10", "2025-01-12"), Status: booking.StatusPending}

	require.False(t, IsAvailable("bike-1", rng(t, "2025-01-11", "2025-01-13"), []*booking.Booking{held}))
	require.True(t, IsAvailable("bike-1", rng(t, "2025-01-12", "2025-01-13"), []*booking.Booking{held}), "back-to-back ranges do not conflict")
	require.True(t, IsAvailable("bike-2", rng(t, "2025-01-11", "2025-01-13"), []*booking.Booking{held}), "other assets are independent")
}

func TestOnlyBlockingStatusesCount(t *testing.T) {
	candidate := rng(t, "2025-01-11", "2025-01-13")
	for _, status := range booking.Statuses {
		existing := []*booking.Booking{{ID: "b1", AssetID: "bike-1", Range: rng(t, "2025-01-10", "2025-01-12"), Status: status}}
		require.Equal(t, !status.Blocking(), IsAvailable("bike-1", candidate, existing), status)
	}
}

func TestConflictsListsOverlaps(t *testing.T) {
	existing := []*booking.Booking{
		{ID: "b1", AssetID: "bike-1", Range: rng(t, "2025-01-01", "2025-01-05"), Status: booking.StatusConfirmed},
		{ID: "b2", AssetID: "bike-1", Range: rng(t, "2025-01-04", "2025-01-08"), Status: booking.StatusPending},
		{ID: "b3", AssetID: "bike-1", Range: rng(t, "2025-01-09", "2025-01-10"), Status: booking.StatusConfirmed},
	}
	got := Conflicts("bike-1", rng(t, "2025-01-03", "2025-01-06"), existing)
	require.Len(t, got, 2)
	require.Equal(t, booking.BookingID("b1"), got[0].ID)
	require.Equal(t, booking.BookingID("b2"), got[1].ID)
}
