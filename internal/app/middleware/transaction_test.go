package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"motorent/internal/app/commands"
	"motorent/internal/app/uow"
	domainbooking "motorent/internal/domain/booking"
)

type exportCmd struct{ createCmd }

func (exportCmd) ReadOnly() bool { return true }

type remoteCmd struct{ createCmd }

func (remoteCmd) ScopesOwnUnits() bool { return true }

func TestTransactionOpensReadOnlyUnitForReadOnlyCommands(t *testing.T) {
	unit := &fakeUnit{}
	base := &countingBus{fn: func(int) (any, error) { return nil, nil }}
	bus := ChainCommands(base, Transaction(fakeFactory{unit: unit}, ReadOnlyOptions))

	_, err := bus.Dispatch(context.Background(), exportCmd{})
	require.NoError(t, err)
	require.True(t, unit.opts.ReadOnly)

	_, err = bus.Dispatch(context.Background(), createCmd{})
	require.NoError(t, err)
	require.False(t, unit.opts.ReadOnly)
	require.Equal(t, 2, unit.committed)
}

func TestTransactionLeavesUnitScopedCommandsToTheirHandler(t *testing.T) {
	unit := &fakeUnit{}
	var bound bool
	base := commandFunc(func(ctx context.Context, _ commands.Command) (any, error) {
		_, bound = uow.FromContext(ctx)
		return "ok", nil
	})
	bus := ChainCommands(base, Transaction(fakeFactory{unit: unit}, ReadOnlyOptions))

	res, err := bus.Dispatch(context.Background(), remoteCmd{})
	require.NoError(t, err)
	require.Equal(t, "ok", res)
	require.False(t, bound)
	require.Zero(t, unit.begun)
}

func isConflict(err error) bool { return errors.Is(err, domainbooking.ErrConcurrentUpdate) }

func TestRetryOnConflictRerunsInFreshUnit(t *testing.T) {
	unit := &fakeUnit{}
	base := &countingBus{fn: func(n int) (any, error) {
		if n == 1 {
			return nil, domainbooking.ErrConcurrentUpdate
		}
		return &createResult{ID: "bk-1"}, nil
	}}
	bus := ChainCommands(base, RetryOnConflict(3, 0, isConflict), Transaction(fakeFactory{unit: unit}, nil))

	res, err := bus.Dispatch(context.Background(), createCmd{})
	require.NoError(t, err)
	require.Equal(t, "bk-1", res.(*createResult).ID)
	require.Equal(t, 2, base.calls)
	require.Equal(t, 2, unit.begun)
	require.Equal(t, 1, unit.rolledBack)
	require.Equal(t, 1, unit.committed)
}

func TestRetryOnConflictStopsAfterAttempts(t *testing.T) {
	base := &countingBus{fn: func(int) (any, error) { return nil, domainbooking.ErrConcurrentUpdate }}
	bus := ChainCommands(base, RetryOnConflict(3, 0, isConflict))

	_, err := bus.Dispatch(context.Background(), createCmd{})
	require.ErrorIs(t, err, domainbooking.ErrConcurrentUpdate)
	require.Equal(t, 3, base.calls)
}

func TestRetryOnConflictIgnoresOtherErrors(t *testing.T) {
	base := &countingBus{fn: func(int) (any, error) { return nil, domainbooking.ErrAssetUnavailable }}
	bus := ChainCommands(base, RetryOnConflict(3, 0, isConflict))

	_, err := bus.Dispatch(context.Background(), createCmd{})
	require.ErrorIs(t, err, domainbooking.ErrAssetUnavailable)
	require.Equal(t, 1, base.calls)
}

func TestRetryOnConflictHonoursCancelledContext(t *testing.T) {
	base := &countingBus{fn: func(int) (any, error) { return nil, domainbooking.ErrConcurrentUpdate }}
	bus := ChainCommands(base, RetryOnConflict(3, 50*time.Millisecond, isConflict))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := bus.Dispatch(ctx, createCmd{})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, base.calls)
}
