package policies

import (
	"context"

	"motorent/internal/domain/payment"
	"motorent/internal/domain/shared/money"
)

// PaymentGateway is the narrow surface of the external payment provider.
// CreateOrder must be bounded in time and report transport failures as
// payment.ErrGatewayUnavailable.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount money.Money, idempotencyKey string) (payment.Order, error)
	VerifySignature(cb payment.Callback) bool
}
