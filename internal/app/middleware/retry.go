package middleware

import (
	"context"
	"time"

	"motorent/internal/app/commands"
)

// RetryOnConflict re-runs a command whose unit of work lost an optimistic
// concurrency race. It must wrap Transaction so every attempt reloads state in a
// fresh unit.
func RetryOnConflict(attempts int, backoff time.Duration, isConflict func(error) bool) CommandMiddleware {
	if attempts < 1 {
		attempts = 1
	}
	if isConflict == nil {
		panic("middleware: conflict classifier required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			var (
				res any
				err error
			)
			for i := 0; i < attempts; i++ {
				res, err = nextFn(ctx, cmd)
				if err == nil || !isConflict(err) {
					return res, err
				}
				if backoff > 0 {
					select {
					case <-ctx.Done():
						return nil, ctx.Err()
					case <-time.After(backoff * time.Duration(i+1)):
					}
				}
			}
			return res, err
		})
	}
}
