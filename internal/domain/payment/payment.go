package payment

import (
	"errors"
	"fmt"
	"strings"

	"motorent/internal/domain/shared/money"
)

var (
	ErrGatewayUnavailable  = errors.New("payment: gateway unavailable")
	ErrPaymentVerification = errors.New("payment: verification failed")
)

// Order is what the gateway returns for a created payment order.
type Order struct {
	Ref    string
	Amount money.Money
	KeyID  string
}

// Callback is the untrusted confirmation relayed by the client after capture.
type Callback struct {
	OrderRef   string
	PaymentRef string
	Signature  string
}

func (c Callback) Normalize() Callback {
	return Callback{
		OrderRef:   strings.TrimSpace(c.OrderRef),
		PaymentRef: strings.TrimSpace(c.PaymentRef),
		Signature:  strings.ToLower(strings.TrimSpace(c.Signature)),
	}
}

// VerificationError carries the booking that was failed because of a bad callback.
// The failed status is committed before the error reaches the caller.
type VerificationError struct {
	BookingID string
	Reason    string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("payment: verification failed for booking %s: %s", e.BookingID, e.Reason)
}

func (e *VerificationError) Unwrap() error { return ErrPaymentVerification }

// KeepsChanges marks the error as one whose unit of work must still commit.
func (e *VerificationError) KeepsChanges() bool { return true }
