package availability

import (
	"motorent/internal/domain/assets"
	"motorent/internal/domain/booking"
	"motorent/internal/domain/shared/daterange"
)

// IsAvailable reports whether the range is free on the asset's calendar given the
// bookings already held. Only pending and confirmed bookings block.
func IsAvailable(assetID assets.AssetID, candidate daterange.DateRange, existing []*booking.Booking) bool {
	return len(Conflicts(assetID, candidate, existing)) == 0
}

// Conflicts returns the bookings that block the candidate range.
func Conflicts(assetID assets.AssetID, candidate daterange.DateRange, existing []*booking.Booking) []*booking.Booking {
	var out []*booking.Booking
	for _, b := range existing {
		if b == nil || b.AssetID != assetID || !b.Status.Blocking() {
			continue
		}
		if b.Range.Overlaps(candidate) {
			out = append(out, b)
		}
	}
	return out
}
