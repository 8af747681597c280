package uow

import (
	"context"

	domainbooking "motorent/internal/domain/booking"
)

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Bookings() domainbooking.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}

// ContextInjector is implemented by units that bind a driver session to the context.
type ContextInjector interface {
	InjectContext(ctx context.Context) context.Context
}

// Inject returns ctx carrying the unit's driver session, when it has one.
func Inject(ctx context.Context, unit UnitOfWork) context.Context {
	if injector, ok := unit.(ContextInjector); ok {
		return injector.InjectContext(ctx)
	}
	return ctx
}
