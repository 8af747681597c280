package analytics

import (
	"context"
	"log/slog"
	"time"

	"motorent/internal/app/dto"
	bookinghandlers "motorent/internal/app/handlers/booking"
	"motorent/internal/app/handlers/support"
	"motorent/internal/app/queries"
	"motorent/internal/app/uow"
	domainanalytics "motorent/internal/domain/analytics"
	domainbooking "motorent/internal/domain/booking"
	"motorent/internal/domain/identity"
)

const summaryKey = "analytics.summary"

// AnalyticsQuery reads the caller's dashboard. From and To bound the booking
// start date inclusively; zero values leave that side open.
type AnalyticsQuery struct {
	Actor identity.Identity
	From  time.Time
	To    time.Time
}

func (q AnalyticsQuery) Key() string { return summaryKey }

func (q AnalyticsQuery) ActorIdentity() identity.Identity { return q.Actor }

func (q AnalyticsQuery) filter() domainanalytics.Filter {
	return domainanalytics.Filter{From: q.From, To: q.To}
}

type SummaryHandler struct {
	UoWFactory uow.UoWFactory
	Now        func() time.Time
	Logger     *slog.Logger
}

func (h *SummaryHandler) Handle(ctx context.Context, q AnalyticsQuery) (dto.Analytics, error) {
	items, err := loadSnapshot(ctx, h.UoWFactory, q.Actor, q.filter())
	if err != nil {
		return dto.Analytics{}, err
	}
	report := domainanalytics.Aggregate(items, q.Actor.Role, now(h.Now))
	if h.Logger != nil {
		h.Logger.Debug("analytics computed", "user_id", q.Actor.UserID, "role", q.Actor.Role, "bookings", report.Totals.Bookings)
	}
	return dto.MapAnalytics(string(q.Actor.Role), report), nil
}

// loadSnapshot returns the role-scoped bookings the caller may aggregate.
func loadSnapshot(ctx context.Context, factory uow.UoWFactory, actor identity.Identity, f domainanalytics.Filter) ([]*domainbooking.Booking, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	scope, err := bookinghandlers.ResolveScope(actor, "")
	if err != nil {
		return nil, err
	}
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, factory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	items, err := bookinghandlers.ScopedBookings(execCtx, unit, actor, scope)
	if err != nil {
		return nil, err
	}
	return f.Apply(items), nil
}

func now(fn func() time.Time) time.Time {
	if fn != nil {
		return fn().UTC()
	}
	return time.Now().UTC()
}

var _ queries.Handler[AnalyticsQuery, dto.Analytics] = (*SummaryHandler)(nil)
