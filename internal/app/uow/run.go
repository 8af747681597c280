package uow

import (
	"context"
	"errors"
)

// Bind returns ctx carrying unit and, when the unit has one, its driver session.
func Bind(ctx context.Context, unit UnitOfWork) context.Context {
	return ContextWithUnitOfWork(Inject(ctx, unit), unit)
}

// Run begins a unit, binds it to ctx and hands it to fn. The unit commits when fn
// succeeds or fails with a PersistentError, and rolls back otherwise. fn's error
// is returned either way.
func Run(ctx context.Context, factory UoWFactory, opts TxOptions, fn func(ctx context.Context, unit UnitOfWork) error) error {
	if factory == nil {
		return ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return err
	}
	execCtx := Bind(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()

	err = fn(execCtx, unit)
	if err != nil && !KeepsChanges(err) {
		return err
	}
	if commitErr := unit.Commit(execCtx); commitErr != nil {
		return errors.Join(err, commitErr)
	}
	committed = true
	return err
}
