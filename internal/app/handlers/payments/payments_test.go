package payments

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	analyticsapp "motorent/internal/app/handlers/analytics"
	"motorent/internal/app/uow"
	"motorent/internal/domain/assets"
	domainbooking "motorent/internal/domain/booking"
	"motorent/internal/domain/identity"
	"motorent/internal/domain/payment"
	"motorent/internal/domain/pricing"
	"motorent/internal/domain/shared/money"
	"motorent/internal/infra/storage/memory"
)

var (
	createdAt = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	renter    = identity.Identity{UserID: "renter-1", Role: identity.RoleTaker}
	bike      = assets.Asset{ID: "bike-1", OwnerID: "owner-1", Title: "Classic 350", RatePerDay: decimal.NewFromInt(1500), Available: true}
)

type fakeGateway struct {
	createFn func(ctx context.Context, amount money.Money, key string) (payment.Order, error)
	verifyFn func(cb payment.Callback) bool
	creates  atomic.Int32
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amount money.Money, key string) (payment.Order, error) {
	g.creates.Add(1)
	if g.createFn != nil {
		return g.createFn(ctx, amount, key)
	}
	return payment.Order{Ref: "order_" + key, Amount: amount}, nil
}

func (g *fakeGateway) VerifySignature(cb payment.Callback) bool {
	if g.verifyFn != nil {
		return g.verifyFn(cb)
	}
	return cb.Signature == "good"
}

func seedPending(t *testing.T, store *memory.Store, id string, orderRef string) {
	t.Helper()
	q, err := pricing.Compute(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC), bike.RatePerDay)
	require.NoError(t, err)
	b, err := domainbooking.New(domainbooking.CreateParams{ID: domainbooking.BookingID(id), Asset: bike, RenterID: renter.UserID, Quote: q, CreatedAt: createdAt})
	require.NoError(t, err)
	if orderRef != "" {
		require.NoError(t, b.AttachOrder(orderRef, createdAt))
	}
	store.Seed(b)
}

func load(t *testing.T, store *memory.Store, id string) *domainbooking.Booking {
	t.Helper()
	ctx := context.Background()
	unit, err := store.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer func() { _ = unit.Rollback(ctx) }()
	b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(id))
	require.NoError(t, err)
	return b
}

func TestCreateOrderUsesServerTotalAndReusesOrder(t *testing.T) {
	store := memory.NewStore()
	seedPending(t, store, "bk-1", "")
	gw := &fakeGateway{}
	h := &CreateOrderHandler{UoWFactory: store, Gateway: gw, Outbox: store.Outbox(), KeyID: "rzp_test"}

	order, err := h.Handle(context.Background(), CreateOrderCommand{Actor: renter, BookingID: "bk-1"})
	require.NoError(t, err)
	require.Equal(t, "order_bk-1", order.OrderRef)
	require.Equal(t, int64(300000), order.AmountMinorUnits)
	require.Equal(t, "INR", order.Currency)
	require.Equal(t, "rzp_test", order.KeyID)

	again, err := h.Handle(context.Background(), CreateOrderCommand{Actor: renter, BookingID: "bk-1"})
	require.NoError(t, err)
	require.Equal(t, order.OrderRef, again.OrderRef)
	require.Equal(t, int32(1), gw.creates.Load())
	require.Equal(t, "order_bk-1", load(t, store, "bk-1").OrderRef)
}

func TestCreateOrderGatewayFailureLeavesBookingPending(t *testing.T) {
	store := memory.NewStore()
	seedPending(t, store, "bk-1", "")
	gw := &fakeGateway{createFn: func(context.Context, money.Money, string) (payment.Order, error) {
		return payment.Order{}, errors.New("dial tcp: i/o timeout")
	}}
	h := &CreateOrderHandler{UoWFactory: store, Gateway: gw, Outbox: store.Outbox()}

	_, err := h.Handle(context.Background(), CreateOrderCommand{Actor: renter, BookingID: "bk-1"})
	require.ErrorIs(t, err, payment.ErrGatewayUnavailable)

	b := load(t, store, "bk-1")
	require.Equal(t, domainbooking.StatusPending, b.Status)
	require.Empty(t, b.OrderRef)
}

func TestCreateOrderRequiresRenterAndPending(t *testing.T) {
	store := memory.NewStore()
	seedPending(t, store, "bk-1", "")
	h := &CreateOrderHandler{UoWFactory: store, Gateway: &fakeGateway{}, Outbox: store.Outbox()}
	ctx := context.Background()

	_, err := h.Handle(ctx, CreateOrderCommand{Actor: identity.Identity{UserID: "owner-1", Role: identity.RoleLister}, BookingID: "bk-1"})
	require.ErrorIs(t, err, domainbooking.ErrForbidden)

	unit, err := store.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	b, err := unit.Bookings().ByID(ctx, "bk-1")
	require.NoError(t, err)
	require.NoError(t, b.Cancel(renter.UserID, createdAt))
	require.NoError(t, unit.Bookings().Save(ctx, b))
	require.NoError(t, unit.Commit(ctx))

	_, err = h.Handle(ctx, CreateOrderCommand{Actor: renter, BookingID: "bk-1"})
	require.ErrorIs(t, err, domainbooking.ErrInvalidTransition)
}

func TestVerifyPaymentConfirmsIdempotently(t *testing.T) {
	store := memory.NewStore()
	seedPending(t, store, "bk-1", "order_1")
	h := &VerifyPaymentHandler{UoWFactory: store, Gateway: &fakeGateway{}, Outbox: store.Outbox()}
	cmd := VerifyPaymentCommand{OrderRef: "order_1", PaymentRef: "pay_1", Signature: "good"}

	var wg sync.WaitGroup
	results := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = h.Handle(context.Background(), cmd)
		}(i)
	}
	wg.Wait()
	for _, err := range results {
		require.NoError(t, err)
	}

	b := load(t, store, "bk-1")
	require.Equal(t, domainbooking.StatusConfirmed, b.Status)
	require.Equal(t, "pay_1", b.PaymentRef)

	confirmed := 0
	for _, rec := range store.Outbox().Records() {
		if rec.Name == "booking.confirmed" {
			confirmed++
		}
	}
	require.Equal(t, 1, confirmed)
}

func TestVerifyPaymentMismatchPersistsFailure(t *testing.T) {
	store := memory.NewStore()
	seedPending(t, store, "bk-1", "order_1")
	h := &VerifyPaymentHandler{UoWFactory: store, Gateway: &fakeGateway{}, Outbox: store.Outbox()}
	ctx := context.Background()

	_, err := h.Handle(ctx, VerifyPaymentCommand{OrderRef: "order_1", PaymentRef: "pay_1", Signature: "forged"})
	require.ErrorIs(t, err, payment.ErrPaymentVerification)
	var verr *payment.VerificationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "bk-1", verr.BookingID)

	b := load(t, store, "bk-1")
	require.Equal(t, domainbooking.StatusFailed, b.Status)
	require.Equal(t, domainbooking.ReasonSignatureMismatch, b.FailureReason)

	_, err = h.Handle(ctx, VerifyPaymentCommand{OrderRef: "order_1", PaymentRef: "pay_1", Signature: "good"})
	require.ErrorIs(t, err, domainbooking.ErrInvalidTransition)

	_, err = h.Handle(ctx, VerifyPaymentCommand{OrderRef: "order_unknown", PaymentRef: "pay_1", Signature: "good"})
	require.ErrorIs(t, err, payment.ErrPaymentVerification)
}

func TestReconcileFailsOnlyStalePending(t *testing.T) {
	store := memory.NewStore()
	seedPending(t, store, "bk-stale", "order_1")
	h := &ReconcilePendingHandler{UoWFactory: store, Outbox: store.Outbox(), Timeout: 30 * time.Minute}

	res, err := h.Handle(context.Background(), ReconcilePendingCommand{Now: createdAt.Add(10 * time.Minute)})
	require.NoError(t, err)
	require.Equal(t, 0, res.Scanned)
	require.Equal(t, domainbooking.StatusPending, load(t, store, "bk-stale").Status)

	res, err = h.Handle(context.Background(), ReconcilePendingCommand{Now: createdAt.Add(time.Hour)})
	require.NoError(t, err)
	require.Equal(t, []string{"bk-stale"}, res.Failed)

	b := load(t, store, "bk-stale")
	require.Equal(t, domainbooking.StatusFailed, b.Status)
	require.Equal(t, domainbooking.ReasonPaymentTimeout, b.FailureReason)

	res, err = h.Handle(context.Background(), ReconcilePendingCommand{Now: createdAt.Add(2 * time.Hour)})
	require.NoError(t, err)
	require.Empty(t, res.Failed)
}

func TestCreateOrderGatewayCallDoesNotBlockOtherWrites(t *testing.T) {
	store := memory.NewStore()
	seedPending(t, store, "bk-1", "")
	entered := make(chan struct{})
	release := make(chan struct{})
	gw := &fakeGateway{createFn: func(_ context.Context, amount money.Money, key string) (payment.Order, error) {
		close(entered)
		<-release
		return payment.Order{Ref: "order_" + key, Amount: amount}, nil
	}}
	h := &CreateOrderHandler{UoWFactory: store, Gateway: gw, Outbox: store.Outbox()}

	done := make(chan error, 1)
	go func() {
		_, err := h.Handle(context.Background(), CreateOrderCommand{Actor: renter, BookingID: "bk-1"})
		done <- err
	}()
	<-entered

	began := make(chan error, 1)
	go func() {
		ctx := context.Background()
		unit, err := store.Begin(ctx, uow.TxOptions{})
		if err == nil {
			err = unit.Commit(ctx)
		}
		began <- err
	}()
	select {
	case err := <-began:
		require.NoError(t, err)
	case <-time.After(time.Second):
		close(release)
		t.Fatal("write unit blocked behind the gateway call")
	}

	close(release)
	require.NoError(t, <-done)
	require.Equal(t, "order_bk-1", load(t, store, "bk-1").OrderRef)
}

func TestCreateOrderReturnsOrderAttachedWhileGatewayRan(t *testing.T) {
	store := memory.NewStore()
	seedPending(t, store, "bk-1", "")
	gw := &fakeGateway{createFn: func(ctx context.Context, amount money.Money, key string) (payment.Order, error) {
		unit, err := store.Begin(ctx, uow.TxOptions{})
		require.NoError(t, err)
		b, err := unit.Bookings().ByID(ctx, "bk-1")
		require.NoError(t, err)
		require.NoError(t, b.AttachOrder("order_first", createdAt))
		require.NoError(t, unit.Bookings().Save(ctx, b))
		require.NoError(t, unit.Commit(ctx))
		return payment.Order{Ref: "order_second", Amount: amount}, nil
	}}
	h := &CreateOrderHandler{UoWFactory: store, Gateway: gw, Outbox: store.Outbox()}

	order, err := h.Handle(context.Background(), CreateOrderCommand{Actor: renter, BookingID: "bk-1"})
	require.NoError(t, err)
	require.Equal(t, "order_first", order.OrderRef)
	require.Equal(t, "order_first", load(t, store, "bk-1").OrderRef)
}

func TestCreateOrderRejectsBookingCancelledWhileGatewayRan(t *testing.T) {
	store := memory.NewStore()
	seedPending(t, store, "bk-1", "")
	gw := &fakeGateway{createFn: func(ctx context.Context, amount money.Money, key string) (payment.Order, error) {
		unit, err := store.Begin(ctx, uow.TxOptions{})
		require.NoError(t, err)
		b, err := unit.Bookings().ByID(ctx, "bk-1")
		require.NoError(t, err)
		require.NoError(t, b.Cancel(renter.UserID, createdAt))
		require.NoError(t, unit.Bookings().Save(ctx, b))
		require.NoError(t, unit.Commit(ctx))
		return payment.Order{Ref: "order_" + key, Amount: amount}, nil
	}}
	h := &CreateOrderHandler{UoWFactory: store, Gateway: gw, Outbox: store.Outbox()}

	_, err := h.Handle(context.Background(), CreateOrderCommand{Actor: renter, BookingID: "bk-1"})
	require.ErrorIs(t, err, domainbooking.ErrInvalidTransition)
	b := load(t, store, "bk-1")
	require.Equal(t, domainbooking.StatusCancelled, b.Status)
	require.Empty(t, b.OrderRef)
}

func TestDuplicateVerifyCountsRevenueOnce(t *testing.T) {
	store := memory.NewStore()
	seedPending(t, store, "bk-1", "order_1")
	h := &VerifyPaymentHandler{UoWFactory: store, Gateway: &fakeGateway{}, Outbox: store.Outbox()}
	cmd := VerifyPaymentCommand{OrderRef: "order_1", PaymentRef: "pay_1", Signature: "good"}
	for i := 0; i < 3; i++ {
		_, err := h.Handle(context.Background(), cmd)
		require.NoError(t, err)
	}

	owner := identity.Identity{UserID: "owner-1", Role: identity.RoleLister}
	summary := &analyticsapp.SummaryHandler{UoWFactory: store, Now: func() time.Time { return createdAt }}
	report, err := summary.Handle(context.Background(), analyticsapp.AnalyticsQuery{Actor: owner})
	require.NoError(t, err)
	require.Equal(t, 1, report.Totals.Confirmed)
	require.Len(t, report.RevenueByAsset, 1)
	require.Equal(t, "Classic 350", report.RevenueByAsset[0].Asset)
	require.Equal(t, int64(300000), report.RevenueByAsset[0].Revenue.Amount)
	require.Equal(t, int64(300000), report.Totals.ConfirmedAmount.Amount)
}
