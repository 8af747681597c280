package memory

import (
	"context"
	"sort"
	"time"

	"motorent/internal/domain/assets"
	"motorent/internal/domain/availability"
	domainbooking "motorent/internal/domain/booking"
	"motorent/internal/domain/shared/events"
)

// BookingRepository is the unit-scoped view of the store. Reads see the unit's
// own staged writes on top of committed state.
type BookingRepository struct {
	unit *Unit
}

// ByID fetches a booking.
func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	b, ok := r.unit.lookup(id)
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return clone(b), nil
}

func (r *BookingRepository) ByOrderRef(ctx context.Context, orderRef string) (*domainbooking.Booking, error) {
	for _, b := range r.unit.snapshot() {
		if orderRef != "" && b.OrderRef == orderRef {
			return clone(b), nil
		}
	}
	return nil, domainbooking.ErrBookingNotFound
}

// Create inserts a booking after re-checking the asset calendar inside the unit.
func (r *BookingRepository) Create(ctx context.Context, b *domainbooking.Booking) error {
	if err := r.unit.writable(); err != nil {
		return err
	}
	if _, exists := r.unit.lookup(b.ID); exists {
		return domainbooking.ErrConcurrentUpdate
	}
	if !availability.IsAvailable(b.AssetID, b.Range, r.blocking(b.AssetID)) {
		return domainbooking.ErrAssetUnavailable
	}
	b.Version = 1
	r.unit.stage(b)
	return nil
}

// Save stores the booking when its version still matches the stored one.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	if err := r.unit.writable(); err != nil {
		return err
	}
	current, ok := r.unit.lookup(b.ID)
	if !ok {
		return domainbooking.ErrBookingNotFound
	}
	if current.Version != b.Version {
		return domainbooking.ErrConcurrentUpdate
	}
	if b.OrderRef != "" {
		for _, other := range r.unit.snapshot() {
			if other.ID != b.ID && other.OrderRef == b.OrderRef {
				return domainbooking.ErrConcurrentUpdate
			}
		}
	}
	b.Version++
	r.unit.stage(b)
	return nil
}

func (r *BookingRepository) ListByRenter(ctx context.Context, renterID string) ([]*domainbooking.Booking, error) {
	return r.filter(func(b *domainbooking.Booking) bool { return b.RenterID == renterID }), nil
}

func (r *BookingRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domainbooking.Booking, error) {
	return r.filter(func(b *domainbooking.Booking) bool { return b.OwnerID == ownerID }), nil
}

func (r *BookingRepository) ListBlockingByAsset(ctx context.Context, assetID assets.AssetID) ([]*domainbooking.Booking, error) {
	return r.filter(func(b *domainbooking.Booking) bool {
		return b.AssetID == assetID && b.Status.Blocking()
	}), nil
}

func (r *BookingRepository) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*domainbooking.Booking, error) {
	return r.filter(func(b *domainbooking.Booking) bool {
		return b.Status == domainbooking.StatusPending && b.CreatedAt.Before(cutoff)
	}), nil
}

func (r *BookingRepository) blocking(assetID assets.AssetID) []*domainbooking.Booking {
	out := []*domainbooking.Booking{}
	for _, b := range r.unit.snapshot() {
		if b.AssetID == assetID && b.Status.Blocking() {
			out = append(out, b)
		}
	}
	return out
}

func (r *BookingRepository) filter(keep func(*domainbooking.Booking) bool) []*domainbooking.Booking {
	out := []*domainbooking.Booking{}
	for _, b := range r.unit.snapshot() {
		if keep(b) {
			out = append(out, clone(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// clone detaches a stored snapshot so callers cannot mutate committed state.
func clone(b *domainbooking.Booking) *domainbooking.Booking {
	c := *b
	c.EventRecorder = events.EventRecorder{}
	return &c
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
