package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"motorent/internal/app/commands"
	"motorent/internal/app/dto"
	"motorent/internal/app/middleware"
	"motorent/internal/app/uow"
	"motorent/internal/domain/assets"
	domainbooking "motorent/internal/domain/booking"
	"motorent/internal/domain/identity"
	"motorent/internal/infra/storage/memory"
)

var (
	fixedNow = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	renter   = identity.Identity{UserID: "renter-1", Role: identity.RoleTaker}
	other    = identity.Identity{UserID: "renter-2", Role: identity.RoleTaker}
	owner    = identity.Identity{UserID: "owner-1", Role: identity.RoleLister}
)

type harness struct {
	store   *memory.Store
	catalog *memory.Catalog
	create  *CreateBookingHandler
	cancel  *CancelBookingHandler
	list    *ListBookingsHandler
	get     *GetBookingHandler
}

func newHarness() *harness {
	store := memory.NewStore()
	catalog := memory.NewCatalog(
		assets.Asset{ID: "bike-1", OwnerID: owner.UserID, Title: "Classic 350", RatePerDay: decimal.RequireFromString("1500.00"), Available: true},
		assets.Asset{ID: "bike-off", OwnerID: owner.UserID, Title: "Retired", RatePerDay: decimal.NewFromInt(900), Available: false},
	)
	clock := func() time.Time { return fixedNow }
	return &harness{
		store:   store,
		catalog: catalog,
		create:  &CreateBookingHandler{UoWFactory: store, Catalog: catalog, Outbox: store.Outbox(), Now: clock},
		cancel:  &CancelBookingHandler{UoWFactory: store, Outbox: store.Outbox(), Now: clock},
		list:    &ListBookingsHandler{UoWFactory: store},
		get:     &GetBookingHandler{UoWFactory: store},
	}
}

func day(d int) time.Time {
	return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC)
}

func (h *harness) book(t *testing.T, id string, actor identity.Identity, from, to int) error {
	t.Helper()
	_, err := h.create.Handle(context.Background(), CreateBookingCommand{
		BookingID: id,
		Actor:     actor,
		AssetID:   "bike-1",
		StartDate: day(from),
		EndDate:   day(to),
	})
	return err
}

func TestCreateBookingPricesFromCatalogRate(t *testing.T) {
	h := newHarness()
	res, err := h.create.Handle(context.Background(), CreateBookingCommand{
		BookingID: "bk-1",
		Actor:     renter,
		AssetID:   "bike-1",
		StartDate: day(10),
		EndDate:   day(12),
	})
	require.NoError(t, err)
	require.Equal(t, "pending", res.Status)
	require.Equal(t, int64(300000), res.TotalPrice.Amount)
	require.Equal(t, "3000.00", res.TotalPrice.Display)

	records := h.store.Outbox().Records()
	require.Len(t, records, 1)
	require.Equal(t, "booking.requested", records[0].Name)
}

func TestCreateBookingRejectsOverlapAndBadAssets(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.book(t, "bk-1", renter, 10, 12))

	err := h.book(t, "bk-2", other, 11, 13)
	require.ErrorIs(t, err, domainbooking.ErrAssetUnavailable)

	require.NoError(t, h.book(t, "bk-3", other, 12, 14), "ranges touching at the boundary do not overlap")

	err = h.book(t, "bk-4", owner, 20, 21)
	require.ErrorIs(t, err, domainbooking.ErrForbidden)

	_, err = h.create.Handle(context.Background(), CreateBookingCommand{BookingID: "bk-5", Actor: renter, AssetID: "bike-off", StartDate: day(20), EndDate: day(21)})
	require.ErrorIs(t, err, domainbooking.ErrAssetUnavailable)

	_, err = h.create.Handle(context.Background(), CreateBookingCommand{BookingID: "bk-6", Actor: renter, AssetID: "ghost", StartDate: day(20), EndDate: day(21)})
	require.ErrorIs(t, err, assets.ErrAssetNotFound)
}

func TestConcurrentCreatesHoldRangeOnce(t *testing.T) {
	h := newHarness()
	const n = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		won  int
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.create.Handle(context.Background(), CreateBookingCommand{
				BookingID: fmt.Sprintf("bk-%d", i),
				Actor:     identity.Identity{UserID: fmt.Sprintf("renter-%d", i), Role: identity.RoleTaker},
				AssetID:   "bike-1",
				StartDate: day(10),
				EndDate:   day(12),
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				won++
				return
			}
			errs = append(errs, err)
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, won)
	for _, err := range errs {
		require.True(t, errors.Is(err, domainbooking.ErrAssetUnavailable), err)
	}
}

func TestCancelBookingAuthorizationAndRelease(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.book(t, "bk-1", renter, 10, 12))

	_, err := h.cancel.Handle(ctx, CancelBookingCommand{Actor: other, BookingID: "bk-1"})
	require.ErrorIs(t, err, domainbooking.ErrForbidden)

	res, err := h.cancel.Handle(ctx, CancelBookingCommand{Actor: owner, BookingID: "bk-1"})
	require.NoError(t, err)
	require.Equal(t, "cancelled", res.Status)

	_, err = h.cancel.Handle(ctx, CancelBookingCommand{Actor: renter, BookingID: "bk-1"})
	require.ErrorIs(t, err, domainbooking.ErrInvalidTransition)

	require.NoError(t, h.book(t, "bk-2", other, 10, 12), "cancelled bookings release their range")

	_, err = h.cancel.Handle(ctx, CancelBookingCommand{Actor: renter, BookingID: "missing"})
	require.ErrorIs(t, err, domainbooking.ErrBookingNotFound)
}

func TestListBookingsScopes(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.book(t, "bk-1", renter, 10, 12))
	require.NoError(t, h.book(t, "bk-2", other, 14, 15))

	mine, err := h.list.Handle(ctx, ListBookingsQuery{Actor: renter})
	require.NoError(t, err)
	require.Len(t, mine.Items, 1)
	require.Equal(t, "bk-1", mine.Items[0].ID)

	owned, err := h.list.Handle(ctx, ListBookingsQuery{Actor: owner})
	require.NoError(t, err)
	require.Len(t, owned.Items, 2)

	_, err = h.list.Handle(ctx, ListBookingsQuery{Actor: renter, Scope: ScopeForMyAssets})
	require.ErrorIs(t, err, domainbooking.ErrForbidden)

	_, err = h.list.Handle(ctx, ListBookingsQuery{Actor: renter, Scope: "everything"})
	require.ErrorIs(t, err, ErrInvalidScope)
}

func TestGetBookingOnlyForParticipants(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.book(t, "bk-1", renter, 10, 12))

	got, err := h.get.Handle(ctx, GetBookingQuery{Actor: owner, BookingID: "bk-1"})
	require.NoError(t, err)
	require.Equal(t, int64(2), got.Days)

	_, err = h.get.Handle(ctx, GetBookingQuery{Actor: other, BookingID: "bk-1"})
	require.ErrorIs(t, err, domainbooking.ErrForbidden)
}

func TestQuoteAndCalendarReflectHeldRanges(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.book(t, "bk-1", renter, 10, 12))

	quotes := &QuoteHandler{UoWFactory: h.store, Catalog: h.catalog}
	q, err := quotes.Handle(ctx, QuoteQuery{AssetID: "bike-1", StartDate: day(11), EndDate: day(11)})
	require.NoError(t, err)
	require.Equal(t, int64(1), q.Days)
	require.Equal(t, int64(150000), q.Total.Amount)
	require.False(t, q.Available)

	q, err = quotes.Handle(ctx, QuoteQuery{AssetID: "bike-1", StartDate: day(20), EndDate: day(23)})
	require.NoError(t, err)
	require.Equal(t, int64(450000), q.Total.Amount)
	require.True(t, q.Available)

	cal, err := (&AssetCalendarHandler{UoWFactory: h.store}).Handle(ctx, AssetCalendarQuery{AssetID: "bike-1"})
	require.NoError(t, err)
	require.Len(t, cal.Blocked, 1)
	require.Equal(t, day(10), cal.Blocked[0].StartDate)
	require.Equal(t, day(12), cal.Blocked[0].EndDate)
}

type gatedCatalog struct {
	assetFn func(ctx context.Context, id assets.AssetID) (assets.Asset, error)
}

func (c gatedCatalog) Asset(ctx context.Context, id assets.AssetID) (assets.Asset, error) {
	return c.assetFn(ctx, id)
}

func TestCreateBookingLooksUpCatalogOutsideWriteUnit(t *testing.T) {
	h := newHarness()
	entered := make(chan struct{})
	release := make(chan struct{})
	h.create.Catalog = gatedCatalog{assetFn: func(ctx context.Context, id assets.AssetID) (assets.Asset, error) {
		close(entered)
		<-release
		return h.catalog.Asset(ctx, id)
	}}
	cmdBus := commands.NewInMemoryBus()
	commands.RegisterHandler[CreateBookingCommand, *dto.BookingStatus](cmdBus, h.create)
	bus := middleware.ChainCommands(cmdBus, middleware.Transaction(h.store, middleware.ReadOnlyOptions))

	done := make(chan error, 1)
	go func() {
		_, err := commands.Dispatch[CreateBookingCommand, *dto.BookingStatus](context.Background(), bus, CreateBookingCommand{
			BookingID: "bk-1", Actor: renter, AssetID: "bike-1", StartDate: day(10), EndDate: day(12),
		})
		done <- err
	}()
	<-entered

	began := make(chan error, 1)
	go func() {
		ctx := context.Background()
		unit, err := h.store.Begin(ctx, uow.TxOptions{})
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
		t.Fatal("write unit blocked behind the catalog lookup")
	}

	close(release)
	require.NoError(t, <-done)
	b, err := h.get.Handle(context.Background(), GetBookingQuery{Actor: renter, BookingID: "bk-1"})
	require.NoError(t, err)
	require.Equal(t, "pending", b.Status)
}
