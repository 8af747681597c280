package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	domainbooking "motorent/internal/domain/booking"
)

func TestTracingRecordsSpanPerCommand(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)).Tracer("test")
	base := &countingBus{fn: func(n int) (any, error) {
		if n == 2 {
			return nil, domainbooking.ErrAssetUnavailable
		}
		return nil, nil
	}}
	bus := ChainCommands(base, Tracing(tracer, nil))

	_, err := bus.Dispatch(context.Background(), createCmd{})
	require.NoError(t, err)
	_, err = bus.Dispatch(context.Background(), createCmd{})
	require.ErrorIs(t, err, domainbooking.ErrAssetUnavailable)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	require.Equal(t, "command test.create", spans[0].Name())
	require.Equal(t, codes.Unset, spans[0].Status().Code)
	require.Equal(t, codes.Error, spans[1].Status().Code)
	require.Len(t, spans[1].Events(), 1, "error recorded on span")
}
