package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	domainassets "motorent/internal/domain/assets"
	domainbooking "motorent/internal/domain/booking"
	"motorent/internal/domain/shared/daterange"
	"motorent/internal/domain/shared/money"
)

type bookingRow struct {
	ID            string `gorm:"primaryKey;size:64"`
	AssetID       string `gorm:"size:64;not null;index:idx_bookings_asset_status,priority:1"`
	AssetTitle    string
	RenterID      string    `gorm:"size:64;not null;index"`
	OwnerID       string    `gorm:"size:64;not null;index"`
	StartAt       time.Time `gorm:"not null"`
	EndAt         time.Time `gorm:"not null"`
	OccupiedStart time.Time `gorm:"not null"`
	OccupiedEnd   time.Time `gorm:"not null"`
	TotalAmount   int64     `gorm:"not null"`
	Currency      string    `gorm:"size:3;not null"`
	Status        string    `gorm:"size:16;not null;index:idx_bookings_asset_status,priority:2;index:idx_bookings_status_created,priority:1"`
	OrderRef      *string   `gorm:"size:128;uniqueIndex"`
	PaymentRef    string    `gorm:"size:128"`
	FailureReason string    `gorm:"size:64"`
	CreatedAt     time.Time `gorm:"autoCreateTime:false;index:idx_bookings_status_created,priority:2"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime:false"`
	Version       int64     `gorm:"not null"`
}

func (bookingRow) TableName() string { return "bookings" }

// BookingRepository runs against the transaction of the unit that created it.
type BookingRepository struct {
	tx *gorm.DB
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	return r.first(ctx, "id = ?", string(id))
}

func (r *BookingRepository) ByOrderRef(ctx context.Context, orderRef string) (*domainbooking.Booking, error) {
	if orderRef == "" {
		return nil, domainbooking.ErrBookingNotFound
	}
	return r.first(ctx, "order_ref = ?", orderRef)
}

// Create serializes writers per asset with a transaction-scoped advisory lock,
// then checks overlap against blocking bookings before inserting.
func (r *BookingRepository) Create(ctx context.Context, b *domainbooking.Booking) error {
	db := r.tx.WithContext(ctx)
	if err := db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", string(b.AssetID)).Error; err != nil {
		return err
	}
	occupied := b.Range.Occupied()
	var n int64
	err := db.Model(&bookingRow{}).
		Where("asset_id = ? AND status IN ?", string(b.AssetID), blockingStatuses()).
		Where("occupied_start < ? AND occupied_end > ?", occupied.End, occupied.Start).
		Count(&n).Error
	if err != nil {
		return err
	}
	if n > 0 {
		return domainbooking.ErrAssetUnavailable
	}
	row := newBookingRow(b)
	row.Version = 1
	if err := db.Create(&row).Error; err != nil {
		return mapErr(err)
	}
	b.Version = 1
	return nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	row := newBookingRow(b)
	res := r.tx.WithContext(ctx).Model(&bookingRow{}).
		Where("id = ? AND version = ?", row.ID, b.Version).
		Updates(map[string]any{
			"status":         row.Status,
			"order_ref":      row.OrderRef,
			"payment_ref":    row.PaymentRef,
			"failure_reason": row.FailureReason,
			"updated_at":     row.UpdatedAt,
			"version":        b.Version + 1,
		})
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version++
	return nil
}

func (r *BookingRepository) ListByRenter(ctx context.Context, renterID string) ([]*domainbooking.Booking, error) {
	return r.find(ctx, "renter_id = ?", renterID)
}

func (r *BookingRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domainbooking.Booking, error) {
	return r.find(ctx, "owner_id = ?", ownerID)
}

func (r *BookingRepository) ListBlockingByAsset(ctx context.Context, assetID domainassets.AssetID) ([]*domainbooking.Booking, error) {
	return r.find(ctx, "asset_id = ? AND status IN ?", string(assetID), blockingStatuses())
}

func (r *BookingRepository) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*domainbooking.Booking, error) {
	return r.find(ctx, "status = ? AND created_at < ?", string(domainbooking.StatusPending), cutoff)
}

func (r *BookingRepository) first(ctx context.Context, query string, args ...any) (*domainbooking.Booking, error) {
	var row bookingRow
	if err := r.tx.WithContext(ctx).Where(query, args...).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return row.toAggregate(), nil
}

func (r *BookingRepository) find(ctx context.Context, query string, args ...any) ([]*domainbooking.Booking, error) {
	var rows []bookingRow
	if err := r.tx.WithContext(ctx).Where(query, args...).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*domainbooking.Booking, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toAggregate())
	}
	return out, nil
}

func blockingStatuses() []string {
	return []string{string(domainbooking.StatusPending), string(domainbooking.StatusConfirmed)}
}

// mapErr reports a duplicate order reference or id as a concurrent update.
func mapErr(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Join(domainbooking.ErrConcurrentUpdate, err)
	}
	return err
}

func newBookingRow(b *domainbooking.Booking) bookingRow {
	occupied := b.Range.Occupied()
	row := bookingRow{
		ID:            string(b.ID),
		AssetID:       string(b.AssetID),
		AssetTitle:    b.AssetTitle,
		RenterID:      b.RenterID,
		OwnerID:       b.OwnerID,
		StartAt:       b.Range.Start.UTC(),
		EndAt:         b.Range.End.UTC(),
		OccupiedStart: occupied.Start.UTC(),
		OccupiedEnd:   occupied.End.UTC(),
		TotalAmount:   b.TotalPrice.Amount,
		Currency:      b.TotalPrice.Currency,
		Status:        string(b.Status),
		PaymentRef:    b.PaymentRef,
		FailureReason: b.FailureReason,
		CreatedAt:     b.CreatedAt.UTC(),
		UpdatedAt:     b.UpdatedAt.UTC(),
		Version:       b.Version,
	}
	if b.OrderRef != "" {
		ref := b.OrderRef
		row.OrderRef = &ref
	}
	return row
}

func (r bookingRow) toAggregate() *domainbooking.Booking {
	b := &domainbooking.Booking{
		ID:            domainbooking.BookingID(r.ID),
		AssetID:       domainassets.AssetID(r.AssetID),
		AssetTitle:    r.AssetTitle,
		RenterID:      r.RenterID,
		OwnerID:       r.OwnerID,
		Range:         daterange.DateRange{Start: r.StartAt.UTC(), End: r.EndAt.UTC()},
		TotalPrice:    money.Money{Amount: r.TotalAmount, Currency: r.Currency},
		Status:        domainbooking.Status(r.Status),
		PaymentRef:    r.PaymentRef,
		FailureReason: r.FailureReason,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
		Version:       r.Version,
	}
	if r.OrderRef != nil {
		b.OrderRef = *r.OrderRef
	}
	return b
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
