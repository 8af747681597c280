package middleware

import (
	"context"
	"errors"

	"motorent/internal/app/commands"
	"motorent/internal/app/outbox"
	"motorent/internal/app/uow"
)

// OutboxFlush hands recorded events to the outbox once the handler has succeeded.
func OutboxFlush(box outbox.Outbox) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := nextFn(ctx, cmd)
			if err != nil {
				if uow.KeepsChanges(err) {
					if flushErr := box.Flush(ctx); flushErr != nil {
						return nil, errors.Join(err, flushErr)
					}
				}
				return nil, err
			}
			if err := box.Flush(ctx); err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}
