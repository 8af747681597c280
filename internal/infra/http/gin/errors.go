package ginserver

import (
	"errors"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	bookinghandlers "motorent/internal/app/handlers/booking"
	"motorent/internal/app/middleware"
	domainanalytics "motorent/internal/domain/analytics"
	domainassets "motorent/internal/domain/assets"
	domainbooking "motorent/internal/domain/booking"
	"motorent/internal/domain/identity"
	"motorent/internal/domain/payment"
	"motorent/internal/domain/pricing"
	"motorent/internal/domain/shared/daterange"
	"motorent/internal/infra/validation"
)

var errInvalidDate = errors.New("dates must be YYYY-MM-DD or RFC 3339")

var statusByError = []struct {
	err    error
	status int
}{
	{validation.ErrInvalidInput, http.StatusBadRequest},
	{errInvalidDate, http.StatusBadRequest},
	{pricing.ErrInvalidRange, http.StatusBadRequest},
	{pricing.ErrInvalidRate, http.StatusBadRequest},
	{daterange.ErrInvalidRange, http.StatusBadRequest},
	{bookinghandlers.ErrInvalidScope, http.StatusBadRequest},
	{domainanalytics.ErrInvalidFilter, http.StatusBadRequest},
	{identity.ErrUnauthenticated, http.StatusUnauthorized},
	{identity.ErrInvalidRole, http.StatusUnauthorized},
	{payment.ErrPaymentVerification, http.StatusPaymentRequired},
	{domainbooking.ErrForbidden, http.StatusForbidden},
	{domainbooking.ErrBookingNotFound, http.StatusNotFound},
	{domainassets.ErrAssetNotFound, http.StatusNotFound},
	{domainbooking.ErrAssetUnavailable, http.StatusConflict},
	{domainbooking.ErrInvalidTransition, http.StatusConflict},
	{domainbooking.ErrConcurrentUpdate, http.StatusConflict},
	{middleware.ErrIdempotencyKeyReused, http.StatusConflict},
	{payment.ErrGatewayUnavailable, http.StatusBadGateway},
}

func statusFor(err error) int {
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// writeError maps application errors to status codes. Unclassified errors are
// reported without their text.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	if status == http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// parseDate accepts a calendar date or an RFC 3339 timestamp. Empty input is the zero time.
func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errInvalidDate
	}
	return t.UTC(), nil
}
