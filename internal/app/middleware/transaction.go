package middleware

import (
	"context"

	"motorent/internal/app/commands"
	"motorent/internal/app/uow"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// ReadOnlyCommand is implemented by commands that only read bookings.
type ReadOnlyCommand interface {
	ReadOnly() bool
}

// UnitScopedCommand is implemented by commands whose handlers open their own short
// units around remote calls. Transaction passes them through untouched.
type UnitScopedCommand interface {
	ScopesOwnUnits() bool
}

// ReadOnlyOptions opens a read-only unit for commands that declare ReadOnly.
func ReadOnlyOptions(cmd commands.Command) uow.TxOptions {
	if ro, ok := cmd.(ReadOnlyCommand); ok && ro.ReadOnly() {
		return uow.TxOptions{ReadOnly: true}
	}
	return uow.TxOptions{}
}

// Transaction runs each command inside its own unit of work.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if scoped, ok := cmd.(UnitScopedCommand); ok && scoped.ScopesOwnUnits() {
				return next.Dispatch(ctx, cmd)
			}
			var opts uow.TxOptions
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			var res any
			err := uow.Run(ctx, factory, opts, func(ctx context.Context, _ uow.UnitOfWork) error {
				var err error
				res, err = next.Dispatch(ctx, cmd)
				return err
			})
			if err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}
