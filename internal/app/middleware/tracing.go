package middleware

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"motorent/internal/app/commands"
	"motorent/internal/app/queries"
)

// Tracing opens a span per command and logs its outcome.
func Tracing(tracer trace.Tracer, logger *slog.Logger) CommandMiddleware {
	if tracer == nil {
		panic("middleware: tracer required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			ctx, span := tracer.Start(ctx, "command "+cmd.Key(), trace.WithAttributes(attribute.String("command.key", cmd.Key())))
			defer span.End()
			start := time.Now()
			res, err := nextFn(ctx, cmd)
			observe(span, logger, "command", cmd.Key(), start, err)
			return res, err
		})
	}
}

// QueryTracing is Tracing for the query bus.
func QueryTracing(tracer trace.Tracer, logger *slog.Logger) QueryMiddleware {
	if tracer == nil {
		panic("middleware: tracer required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			ctx, span := tracer.Start(ctx, "query "+q.Key(), trace.WithAttributes(attribute.String("query.key", q.Key())))
			defer span.End()
			start := time.Now()
			res, err := nextFn(ctx, q)
			observe(span, logger, "query", q.Key(), start, err)
			return res, err
		})
	}
}

func observe(span trace.Span, logger *slog.Logger, kind, key string, start time.Time, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if logger == nil {
		return
	}
	if err != nil {
		logger.Warn(kind+" failed", "key", key, "duration", time.Since(start), "error", err)
		return
	}
	logger.Debug(kind+" handled", "key", key, "duration", time.Since(start))
}
