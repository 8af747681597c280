package booking

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"motorent/internal/domain/assets"
	"motorent/internal/domain/pricing"
)

var now = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

func newPending(t *testing.T) *Booking {
	t.Helper()
	q, err := pricing.Compute(
		time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC),
		decimal.NewFromInt(1500),
	)
	require.NoError(t, err)
	b, err := New(CreateParams{
		ID:        "bk-1",
		Asset:     assets.Asset{ID: "bike-1", OwnerID: "owner-1", Title: "Royal Enfield Classic 350", RatePerDay: decimal.NewFromInt(1500), Available: true},
		RenterID:  "renter-1",
		Quote:     q,
		CreatedAt: now,
	})
	require.NoError(t, err)
	return b
}

func TestNewCreatesPendingBooking(t *testing.T) {
	b := newPending(t)
	require.Equal(t, StatusPending, b.Status)
	require.Equal(t, "owner-1", b.OwnerID)
	require.Equal(t, "Royal Enfield Classic 350", b.AssetTitle)
	require.Equal(t, int64(300000), b.TotalPrice.Amount)

	evs := b.PendingEvents()
	require.Len(t, evs, 1)
	require.Equal(t, "booking.requested", evs[0].EventName())
}

func TestNewRejectsUnavailableAssetAndZeroTotal(t *testing.T) {
	q, err := pricing.Compute(now, now.Add(24*time.Hour), decimal.Zero)
	require.NoError(t, err)

	_, err = New(CreateParams{ID: "x", RenterID: "r", Asset: assets.Asset{ID: "a", Available: false}, Quote: q, CreatedAt: now})
	require.ErrorIs(t, err, ErrAssetUnavailable)

	_, err = New(CreateParams{ID: "x", RenterID: "r", Asset: assets.Asset{ID: "a", Available: true}, Quote: q, CreatedAt: now})
	require.ErrorIs(t, err, ErrNonPositiveTotal)
	require.ErrorIs(t, err, pricing.ErrInvalidRate)
}

func TestAttachOrderOnlyOnce(t *testing.T) {
	b := newPending(t)
	require.NoError(t, b.AttachOrder("order_1", now))
	require.ErrorIs(t, b.AttachOrder("order_2", now), ErrInvalidTransition)
	require.Equal(t, "order_1", b.OrderRef)
}

func TestConfirmRequiresOrder(t *testing.T) {
	b := newPending(t)
	_, err := b.Confirm("pay_1", now)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestConfirmIsIdempotentForSamePaymentRef(t *testing.T) {
	b := newPending(t)
	require.NoError(t, b.AttachOrder("order_1", now))
	b.ClearEvents()

	changed, err := b.Confirm("pay_1", now)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = b.Confirm("pay_1", now.Add(time.Minute))
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, StatusConfirmed, b.Status)
	require.Len(t, b.PendingEvents(), 1)

	_, err = b.Confirm("pay_2", now)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTerminalStatesAreClosed(t *testing.T) {
	confirmed := newPending(t)
	require.NoError(t, confirmed.AttachOrder("order_1", now))
	_, err := confirmed.Confirm("pay_1", now)
	require.NoError(t, err)

	failed := newPending(t)
	require.NoError(t, failed.Fail(ReasonSignatureMismatch, now))
	require.Equal(t, ReasonSignatureMismatch, failed.FailureReason)

	cancelled := newPending(t)
	require.NoError(t, cancelled.Cancel("renter-1", now))

	for _, b := range []*Booking{confirmed, failed, cancelled} {
		require.ErrorIs(t, b.Fail("again", now), ErrInvalidTransition, b.Status)
		require.ErrorIs(t, b.Cancel("renter-1", now), ErrInvalidTransition, b.Status)
		require.ErrorIs(t, b.AttachOrder("order_9", now), ErrInvalidTransition, b.Status)
	}
	_, err = failed.Confirm("pay_1", now)
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = cancelled.Confirm("pay_1", now)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelByOwnerOrRenterOnly(t *testing.T) {
	b := newPending(t)
	require.ErrorIs(t, b.Cancel("stranger", now), ErrForbidden)
	require.Equal(t, StatusPending, b.Status)

	require.NoError(t, b.Cancel("owner-1", now))
	require.Equal(t, StatusCancelled, b.Status)
}
