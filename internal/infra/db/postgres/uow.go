package postgres

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"

	"motorent/internal/app/uow"
	domainbooking "motorent/internal/domain/booking"
)

var ErrUnitOfWorkNotConfigured = errors.New("postgres: unit of work factory missing database")

type Factory struct {
	DB *gorm.DB
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	txOpts := &sql.TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: opts.ReadOnly}
	tx := f.DB.WithContext(ctx).Begin(txOpts)
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &Unit{tx: tx, bookings: &BookingRepository{tx: tx}}, nil
}

type Unit struct {
	tx       *gorm.DB
	bookings *BookingRepository
}

func (u *Unit) Bookings() domainbooking.Repository {
	return u.bookings
}

func (u *Unit) Commit(context.Context) error {
	return u.tx.Commit().Error
}

func (u *Unit) Rollback(context.Context) error {
	err := u.tx.Rollback().Error
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// txFrom returns the transaction of the postgres unit in ctx, or db.
func txFrom(ctx context.Context, db *gorm.DB) *gorm.DB {
	if unit, ok := uow.FromContext(ctx); ok {
		if pu, ok := unit.(*Unit); ok {
			return pu.tx.WithContext(ctx)
		}
	}
	return db.WithContext(ctx)
}

var _ uow.UoWFactory = Factory{}
