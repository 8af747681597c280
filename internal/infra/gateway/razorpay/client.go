package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"motorent/internal/app/policies"
	"motorent/internal/domain/payment"
	"motorent/internal/domain/shared/money"
	"motorent/internal/infra/security"
)

// Client talks to the orders API. In sandbox mode orders are minted locally and
// only signature verification uses the real algorithm.
type Client struct {
	HTTP    *http.Client
	BaseURL string
	KeyID   string
	Secret  string
	Sandbox bool
	Tracer  trace.Tracer
	Logger  *slog.Logger
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

func (c *Client) CreateOrder(ctx context.Context, amount money.Money, idempotencyKey string) (payment.Order, error) {
	ctx, span := c.tracer().Start(ctx, "razorpay.create_order", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.Int64("payment.amount_minor", amount.Amount),
		attribute.String("payment.currency", amount.Currency),
		attribute.Bool("payment.sandbox", c.Sandbox),
	)

	order, err := c.createOrder(ctx, amount, idempotencyKey)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if c.Logger != nil {
			c.Logger.Warn("gateway create order failed", "receipt", idempotencyKey, "error", err)
		}
		return payment.Order{}, err
	}
	span.SetAttributes(attribute.String("payment.order_ref", order.Ref))
	return order, nil
}

func (c *Client) createOrder(ctx context.Context, amount money.Money, receipt string) (payment.Order, error) {
	if !amount.IsPositive() {
		return payment.Order{}, fmt.Errorf("razorpay: amount must be positive, got %s", amount)
	}
	if c.Sandbox {
		token, err := security.RandomTokenGenerator{Size: 10}.NewToken()
		if err != nil {
			return payment.Order{}, fmt.Errorf("%w: %v", payment.ErrGatewayUnavailable, err)
		}
		return payment.Order{Ref: "order_" + token, Amount: amount, KeyID: c.KeyID}, nil
	}
	if c.HTTP == nil {
		return payment.Order{}, fmt.Errorf("%w: http client not configured", payment.ErrGatewayUnavailable)
	}

	body, err := json.Marshal(createOrderRequest{Amount: amount.Amount, Currency: amount.Currency, Receipt: receipt})
	if err != nil {
		return payment.Order{}, err
	}
	endpoint := strings.TrimRight(c.BaseURL, "/") + "/v1/orders"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return payment.Order{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.KeyID, c.Secret)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return payment.Order{}, fmt.Errorf("%w: %v", payment.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return payment.Order{}, fmt.Errorf("%w: status %d: %s", payment.ErrGatewayUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	var out orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return payment.Order{}, fmt.Errorf("%w: decode order: %v", payment.ErrGatewayUnavailable, err)
	}
	if out.ID == "" {
		return payment.Order{}, fmt.Errorf("%w: order id missing", payment.ErrGatewayUnavailable)
	}
	currency := out.Currency
	if currency == "" {
		currency = amount.Currency
	}
	return payment.Order{
		Ref:    out.ID,
		Amount: money.Money{Amount: out.Amount, Currency: strings.ToUpper(currency)},
		KeyID:  c.KeyID,
	}, nil
}

// VerifySignature checks hex(HMAC-SHA256(secret, order_ref|payment_ref)) in constant time.
func (c *Client) VerifySignature(cb payment.Callback) bool {
	cb = cb.Normalize()
	if c.Secret == "" || cb.OrderRef == "" || cb.PaymentRef == "" || cb.Signature == "" {
		return false
	}
	got, err := hex.DecodeString(cb.Signature)
	if err != nil {
		return false
	}
	return hmac.Equal(got, c.mac(cb.OrderRef, cb.PaymentRef))
}

// Sign produces the signature the gateway would attach to a successful payment.
func (c *Client) Sign(orderRef, paymentRef string) string {
	return hex.EncodeToString(c.mac(orderRef, paymentRef))
}

func (c *Client) mac(orderRef, paymentRef string) []byte {
	m := hmac.New(sha256.New, []byte(c.Secret))
	m.Write([]byte(orderRef + "|" + paymentRef))
	return m.Sum(nil)
}

func (c *Client) tracer() trace.Tracer {
	if c.Tracer != nil {
		return c.Tracer
	}
	return otel.Tracer("motorent/gateway")
}

// NewHTTPClient bounds every gateway call.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

var ErrNotConfigured = errors.New("razorpay: key secret required")

// New validates the credentials the client cannot work without.
func New(c Client) (*Client, error) {
	if c.Secret == "" {
		return nil, ErrNotConfigured
	}
	return &c, nil
}

var _ policies.PaymentGateway = (*Client)(nil)
