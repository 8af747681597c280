package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFromMajorRoundsHalfUp(t *testing.T) {
	m, err := FromMajor(decimal.RequireFromString("10.005"), "inr")
	require.NoError(t, err)
	require.Equal(t, int64(1001), m.Amount)
	require.Equal(t, "INR", m.Currency)

	m, err = FromMajor(decimal.RequireFromString("10.004"), DefaultCurrency)
	require.NoError(t, err)
	require.Equal(t, int64(1000), m.Amount)
}

func TestAddRejectsCurrencyMismatch(t *testing.T) {
	_, err := Must(100, "INR").Add(Must(100, "USD"))
	require.ErrorIs(t, err, ErrCurrencyMismatch)

	sum, err := Must(150, "INR").Add(Must(50, "INR"))
	require.NoError(t, err)
	require.Equal(t, int64(200), sum.Amount)
}

func TestStringUsesTwoDecimals(t *testing.T) {
	require.Equal(t, "3000.00", Must(300000, DefaultCurrency).String())
	require.Equal(t, "0.05", Must(5, DefaultCurrency).String())
}

func TestNewRejectsBadCurrency(t *testing.T) {
	_, err := New(1, "RUPEE")
	require.ErrorIs(t, err, ErrInvalidCurrency)
}
