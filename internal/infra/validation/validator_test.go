package validation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	bookingapp "motorent/internal/app/handlers/booking"
	"motorent/internal/app/handlers/payments"
)

func TestValidateReportsFirstMissingField(t *testing.T) {
	v := New()
	ctx := context.Background()

	err := v.Validate(ctx, payments.VerifyPaymentCommand{OrderRef: "order_1", PaymentRef: "pay_1"})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.ErrorContains(t, err, "Signature")

	err = v.Validate(ctx, bookingapp.CreateBookingCommand{BookingID: "bk-1", AssetID: "bike-1", StartDate: time.Now()})
	require.ErrorContains(t, err, "EndDate")

	require.NoError(t, v.Validate(ctx, payments.VerifyPaymentCommand{OrderRef: "o", PaymentRef: "p", Signature: "s"}))
}
